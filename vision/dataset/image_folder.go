package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions are the file types picked up from class directories
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff"}

// Subset names one side of a validation split
type Subset int

const (
	TrainingSubset Subset = iota
	ValidationSubset
)

func (s Subset) String() string {
	switch s {
	case TrainingSubset:
		return "training"
	case ValidationSubset:
		return "validation"
	default:
		return fmt.Sprintf("Subset(%d)", int(s))
	}
}

// ImageFolderDataset represents a dataset loaded from a directory structure
// where each subdirectory represents a class. Classes are indexed in
// alphabetical order of their directory names.
type ImageFolderDataset struct {
	imagePaths []string
	labels     []int
	classNames []string
	classToIdx map[string]int
}

// NewImageFolderDataset creates a dataset from a directory structure
func NewImageFolderDataset(root string, extensions []string) (*ImageFolderDataset, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}

	dataset := &ImageFolderDataset{
		classToIdx: make(map[string]int),
	}

	// os.ReadDir returns entries sorted by name
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		className := entry.Name()
		classIdx := len(dataset.classNames)
		dataset.classNames = append(dataset.classNames, className)
		dataset.classToIdx[className] = classIdx

		files, err := os.ReadDir(filepath.Join(root, className))
		if err != nil {
			return nil, fmt.Errorf("failed to list class %s: %w", className, err)
		}

		for _, file := range files {
			if file.IsDir() || !allowed[strings.ToLower(filepath.Ext(file.Name()))] {
				continue
			}
			dataset.imagePaths = append(dataset.imagePaths, filepath.Join(root, className, file.Name()))
			dataset.labels = append(dataset.labels, classIdx)
		}
	}

	if len(dataset.imagePaths) == 0 {
		return nil, fmt.Errorf("no images found in %s", root)
	}

	return dataset, nil
}

// Len returns the number of items in the dataset
func (d *ImageFolderDataset) Len() int {
	return len(d.imagePaths)
}

// GetItem returns the image path and label at the given index
func (d *ImageFolderDataset) GetItem(index int) (string, int, error) {
	if index < 0 || index >= len(d.imagePaths) {
		return "", 0, fmt.Errorf("index %d out of range [0, %d)", index, len(d.imagePaths))
	}
	return d.imagePaths[index], d.labels[index], nil
}

// NumClasses returns the number of classes
func (d *ImageFolderDataset) NumClasses() int {
	return len(d.classNames)
}

// ClassNames returns the list of class names
func (d *ImageFolderDataset) ClassNames() []string {
	return d.classNames
}

// ClassDistribution returns the distribution of samples per class
func (d *ImageFolderDataset) ClassDistribution() map[string]int {
	dist := make(map[string]int)
	for _, label := range d.labels {
		dist[d.classNames[label]]++
	}
	return dist
}

// ValidationSubset carves a validation set out of every class: the first
// int(fraction*n) files of a class (in name order) are the validation side,
// the remaining files the training side.
func (d *ImageFolderDataset) ValidationSubset(fraction float64, subset Subset) (*ImageFolderDataset, error) {
	if fraction < 0 || fraction >= 1 {
		return nil, fmt.Errorf("validation fraction must be in [0, 1), got %v", fraction)
	}

	byClass := make([][]string, len(d.classNames))
	for i, path := range d.imagePaths {
		byClass[d.labels[i]] = append(byClass[d.labels[i]], path)
	}

	result := &ImageFolderDataset{
		classNames: d.classNames,
		classToIdx: d.classToIdx,
	}

	for label, paths := range byClass {
		sorted := append([]string(nil), paths...)
		sort.Strings(sorted)

		cut := int(fraction * float64(len(sorted)))
		var picked []string
		if subset == ValidationSubset {
			picked = sorted[:cut]
		} else {
			picked = sorted[cut:]
		}

		for _, path := range picked {
			result.imagePaths = append(result.imagePaths, path)
			result.labels = append(result.labels, label)
		}
	}

	return result, nil
}

// String returns a string representation of the dataset
func (d *ImageFolderDataset) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ImageFolderDataset: %d samples, %d classes\n", len(d.imagePaths), len(d.classNames)))
	sb.WriteString("Class distribution:\n")

	dist := d.ClassDistribution()
	for _, className := range d.classNames {
		sb.WriteString(fmt.Sprintf("  %s: %d samples\n", className, dist[className]))
	}

	return sb.String()
}
