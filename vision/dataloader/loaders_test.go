package dataloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tsawler/catsdogs/config"
	"github.com/tsawler/catsdogs/vision/dataset"
)

// writeClassTree creates root/<class>/<class>_<i>.png for both classes
func writeClassTree(t *testing.T, root string, classes []string, n int) {
	t.Helper()
	for label, class := range classes {
		dir := filepath.Join(root, class)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
		for i := 0; i < n; i++ {
			writeLabelPNG(t, filepath.Join(dir, class+"_"+string(rune('a'+i))+".png"), label)
		}
	}
}

func smallConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.BatchSize = 4
	cfg.TargetWidth = 8
	cfg.TargetHeight = 8
	cfg.ValidationSplit = 0.2
	cfg.ResultsDir = t.TempDir()
	cfg.ImagesDir = t.TempDir()
	return cfg
}

func TestCreateTrainAndValidationLoaders(t *testing.T) {
	cfg := smallConfig(t)
	root := t.TempDir()
	writeClassTree(t, root, []string{"cats", "dogs"}, 10)

	train, val, err := CreateTrainAndValidationLoaders(root, cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// int(0.2 * 10) = 2 per class
	if val.NumSamples() != 4 {
		t.Errorf("Expected 4 validation samples, got %d", val.NumSamples())
	}
	if train.NumSamples() != 16 {
		t.Errorf("Expected 16 training samples, got %d", train.NumSamples())
	}
	if train.Len() != 4 || val.Len() != 1 {
		t.Errorf("Expected 4 and 1 batches, got %d and %d", train.Len(), val.Len())
	}
	if train.GetCacheManager() != nil || val.GetCacheManager() != nil {
		t.Error("Augmented loaders should not cache")
	}

	batch, err := train.Next()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if batch.Height != 8 || batch.Width != 8 {
		t.Errorf("Expected 8x8 images, got %dx%d", batch.Width, batch.Height)
	}

	t.Run("SharedCacheWithoutAugmentation", func(t *testing.T) {
		plain := cfg
		plain.Augmentation = config.AugmentationConfig{}
		train, val, err := CreateTrainAndValidationLoaders(root, plain)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if train.GetCacheManager() == nil || train.GetCacheManager() != val.GetCacheManager() {
			t.Error("Plain loaders should share one cache")
		}
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		if _, _, err := CreateTrainAndValidationLoaders(filepath.Join(root, "missing"), cfg); err == nil {
			t.Error("Expected error for missing directory")
		}
	})
}

func TestCreateTestLoader(t *testing.T) {
	cfg := smallConfig(t)
	root := t.TempDir()
	writeClassTree(t, root, []string{"cats", "dogs"}, 3)

	loader, err := CreateTestLoader(root, cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if loader.NumSamples() != 6 || loader.Len() != 2 {
		t.Errorf("Expected 6 samples in 2 batches, got %d in %d", loader.NumSamples(), loader.Len())
	}
	if loader.GetCacheManager() == nil {
		t.Error("Test loader should cache")
	}
}

func TestCreateHoldoutLoader(t *testing.T) {
	cfg := smallConfig(t)
	writeClassTree(t, cfg.ImagesDir, cfg.ClassDirs, 3)

	catNames := []string{filepath.Join(cfg.ClassImageDir(0), "Cat_a.png")}
	dogNames := []string{
		filepath.Join(cfg.ClassImageDir(1), "Dog_a.png"),
		filepath.Join(cfg.ClassImageDir(1), "Dog_b.png"),
	}
	if err := dataset.SaveHoldout(cfg.HoldoutPath(0), catNames); err != nil {
		t.Fatalf("Failed to save holdout: %v", err)
	}
	if err := dataset.SaveHoldout(cfg.HoldoutPath(1), dogNames); err != nil {
		t.Fatalf("Failed to save holdout: %v", err)
	}

	loader, err := CreateHoldoutLoader(cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if loader.NumSamples() != 3 {
		t.Fatalf("Expected 3 samples, got %d", loader.NumSamples())
	}

	batch, err := loader.Next()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	ones := 0
	for _, label := range batch.Labels {
		if label == 1 {
			ones++
		}
	}
	if ones != 2 {
		t.Errorf("Expected 2 dog labels, got %d", ones)
	}
	checkAlignment(t, batch)

	t.Run("MissingList", func(t *testing.T) {
		empty := smallConfig(t)
		if _, err := CreateHoldoutLoader(empty); err == nil {
			t.Error("Expected error when holdout lists are missing")
		}
	})
}
