package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveHoldout writes the base names of paths as a JSON array
func SaveHoldout(path string, paths []string) error {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create holdout directory: %w", err)
	}

	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode holdout list: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write holdout list: %w", err)
	}
	return nil
}

// LoadHoldout reads a list written by SaveHoldout
func LoadHoldout(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read holdout list: %w", err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to decode holdout list %s: %w", path, err)
	}
	return names, nil
}

// NewDatasetFromLists labels names[i] with class i and resolves them against classDirs[i]
func NewDatasetFromLists(classNames, classDirs []string, names [][]string) (*ImageFolderDataset, error) {
	if len(classNames) != len(classDirs) || len(classDirs) != len(names) {
		return nil, fmt.Errorf("class count mismatch: %d names, %d dirs, %d lists",
			len(classNames), len(classDirs), len(names))
	}

	dataset := &ImageFolderDataset{
		classNames: classNames,
		classToIdx: make(map[string]int, len(classNames)),
	}

	for label, className := range classNames {
		dataset.classToIdx[className] = label
		for _, name := range names[label] {
			dataset.imagePaths = append(dataset.imagePaths, filepath.Join(classDirs[label], name))
			dataset.labels = append(dataset.labels, label)
		}
	}

	if len(dataset.imagePaths) == 0 {
		return nil, fmt.Errorf("holdout lists are empty")
	}
	return dataset, nil
}
