package dataloader

import (
	"fmt"

	"github.com/tsawler/catsdogs/config"
	"github.com/tsawler/catsdogs/vision/dataset"
	"github.com/tsawler/catsdogs/vision/preprocessing"
)

// AugmentConfig converts the configured augmentation ranges
func AugmentConfig(aug config.AugmentationConfig) *preprocessing.AugmentConfig {
	return &preprocessing.AugmentConfig{
		RotationRange:    aug.RotationRange,
		ShearRange:       aug.ShearRange,
		ZoomRange:        aug.ZoomRange,
		HorizontalFlip:   aug.HorizontalFlip,
		WidthShiftRange:  aug.WidthShiftRange,
		HeightShiftRange: aug.HeightShiftRange,
	}
}

// LoaderConfig returns the DataLoader settings shared by every loader of a run
func LoaderConfig(cfg config.Config) Config {
	return Config{
		BatchSize:    cfg.BatchSize,
		Shuffle:      true,
		Seed:         cfg.Seed,
		MaxCacheSize: cfg.MaxCacheSize,
		Width:        cfg.TargetWidth,
		Height:       cfg.TargetHeight,
		Rescale:      cfg.Rescale,
		NumWorkers:   cfg.NumWorkers,
	}
}

// CreateTrainAndValidationLoaders builds the training and validation loaders
// over a class-per-directory tree. The validation side is the first
// cfg.ValidationSplit of every class's files. Both sides are augmented, as
// they come from the same generator settings; without augmentation they share
// one cache.
func CreateTrainAndValidationLoaders(dir string, cfg config.Config) (*DataLoader, *DataLoader, error) {
	folder, err := dataset.NewImageFolderDataset(dir, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load training images: %w", err)
	}

	trainSet, err := folder.ValidationSubset(cfg.ValidationSplit, dataset.TrainingSubset)
	if err != nil {
		return nil, nil, err
	}
	valSet, err := folder.ValidationSubset(cfg.ValidationSplit, dataset.ValidationSubset)
	if err != nil {
		return nil, nil, err
	}

	fmt.Printf("Found %d images belonging to %d classes.\n", trainSet.Len(), trainSet.NumClasses())
	fmt.Printf("Found %d images belonging to %d classes.\n", valSet.Len(), valSet.NumClasses())

	base := LoaderConfig(cfg)
	base.Augment = AugmentConfig(cfg.Augmentation)

	trainLoader, err := NewDataLoader(trainSet, base)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create training loader: %w", err)
	}

	valConfig := base
	valConfig.Seed = cfg.Seed + 2
	valConfig.CacheManager = trainLoader.GetCacheManager()
	valLoader, err := NewDataLoader(valSet, valConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create validation loader: %w", err)
	}

	return trainLoader, valLoader, nil
}

// CreateTestLoader builds an un-augmented loader over a class-per-directory tree
func CreateTestLoader(dir string, cfg config.Config) (*DataLoader, error) {
	folder, err := dataset.NewImageFolderDataset(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load test images: %w", err)
	}
	fmt.Printf("Found %d images belonging to %d classes.\n", folder.Len(), folder.NumClasses())

	return NewDataLoader(folder, LoaderConfig(cfg))
}

// CreateHoldoutLoader builds an un-augmented loader over the held-out file
// lists saved by the preparation step, resolved against the source class
// directories
func CreateHoldoutLoader(cfg config.Config) (*DataLoader, error) {
	lists := make([][]string, len(cfg.SplitClasses))
	dirs := make([]string, len(cfg.SplitClasses))
	for i := range cfg.SplitClasses {
		names, err := dataset.LoadHoldout(cfg.HoldoutPath(i))
		if err != nil {
			return nil, err
		}
		lists[i] = names
		dirs[i] = cfg.ClassImageDir(i)
	}

	held, err := dataset.NewDatasetFromLists(cfg.SplitClasses, dirs, lists)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Found %d validated image filenames belonging to %d classes.\n", held.Len(), held.NumClasses())

	return NewDataLoader(held, LoaderConfig(cfg))
}
