package dataset

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyResolutionTable is returned when averaging a table with no images
var ErrEmptyResolutionTable = errors.New("resolution table is empty")

// Resolution is an image size in pixels
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ResolutionTable counts how many images have each exact resolution
type ResolutionTable map[Resolution]int

// Total returns the number of images counted in the table
func (t ResolutionTable) Total() int {
	total := 0
	for _, count := range t {
		total += count
	}
	return total
}

// Merge adds the counts of other into t
func (t ResolutionTable) Merge(other ResolutionTable) {
	for res, count := range other {
		t[res] += count
	}
}

// MergeTables sums several tables into a new one
func MergeTables(tables ...ResolutionTable) ResolutionTable {
	merged := make(ResolutionTable)
	for _, table := range tables {
		merged.Merge(table)
	}
	return merged
}

// AverageResolution returns the count-weighted average width and height, truncated
func AverageResolution(table ResolutionTable) (Resolution, error) {
	var width, height, counter int
	for res, count := range table {
		counter += count
		width += res.Width * count
		height += res.Height * count
	}

	if counter == 0 {
		return Resolution{}, ErrEmptyResolutionTable
	}

	return Resolution{Width: width / counter, Height: height / counter}, nil
}

// ScanOptions controls how thoroughly each file is checked
type ScanOptions struct {
	// Strict decodes all pixel data instead of only the header, catching
	// truncated files that would otherwise fail later during training.
	Strict bool
}

// ScanResult holds the outcome of scanning one directory
type ScanResult struct {
	Valid       []string
	Corrupted   []string
	Resolutions ResolutionTable
}

// ScanDirectory tries to open every entry of dir as an image. Openable files
// are listed in Valid and counted in Resolutions, everything else lands in
// Corrupted. Paths are dir joined with the entry name.
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	result := &ScanResult{
		Valid:       make([]string, 0, len(names)),
		Resolutions: make(ResolutionTable),
	}

	for _, name := range names {
		path := filepath.Join(dir, name)

		res, err := imageResolution(path, opts.Strict)
		if err != nil {
			result.Corrupted = append(result.Corrupted, path)
			continue
		}

		result.Resolutions[res]++
		result.Valid = append(result.Valid, path)
	}

	return result, nil
}

// imageResolution opens path and reads its size
func imageResolution(path string, strict bool) (Resolution, error) {
	file, err := os.Open(path)
	if err != nil {
		return Resolution{}, err
	}
	defer file.Close()

	if strict {
		img, _, err := image.Decode(file)
		if err != nil {
			return Resolution{}, err
		}
		bounds := img.Bounds()
		return Resolution{Width: bounds.Dx(), Height: bounds.Dy()}, nil
	}

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Width: cfg.Width, Height: cfg.Height}, nil
}
