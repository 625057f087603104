package dataset

import (
	"fmt"
)

// CatsDogsDataset is a specialized dataset for the cats vs dogs classification task
type CatsDogsDataset struct {
	*ImageFolderDataset
}

// NewCatsDogsDataset loads a split directory holding exactly two class
// subdirectories (cats = 0, dogs = 1 by name order).
func NewCatsDogsDataset(dataDir string) (*CatsDogsDataset, error) {
	folder, err := NewImageFolderDataset(dataDir, nil)
	if err != nil {
		return nil, err
	}
	return WrapCatsDogs(folder)
}

// WrapCatsDogs checks that an image folder dataset is binary
func WrapCatsDogs(folder *ImageFolderDataset) (*CatsDogsDataset, error) {
	if folder.NumClasses() != 2 {
		return nil, fmt.Errorf("expected 2 classes, found %d: %v", folder.NumClasses(), folder.ClassNames())
	}
	return &CatsDogsDataset{ImageFolderDataset: folder}, nil
}

// Summary returns a summary of the dataset
func (d *CatsDogsDataset) Summary() string {
	dist := d.ClassDistribution()
	names := d.ClassNames()
	return fmt.Sprintf("Cats & Dogs Dataset: %d total images (%d %s, %d %s)",
		d.Len(), dist[names[0]], names[0], dist[names[1]], names[1])
}
