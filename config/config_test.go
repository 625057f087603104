package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"TrainFraction", cfg.TrainFraction, 0.85},
		{"BatchSize", cfg.BatchSize, 64},
		{"TargetWidth", cfg.TargetWidth, 128},
		{"TargetHeight", cfg.TargetHeight, 128},
		{"MaxEpochs", cfg.MaxEpochs, 100},
		{"Patience", cfg.Patience, 10},
		{"Seed", cfg.Seed, int64(42)},
		{"CorruptedSuffix", cfg.CorruptedSuffix, "jpg"},
		{"PlotServiceURL", cfg.PlotServiceURL, ""},
		{"LRSchedule", cfg.LRSchedule, "constant"},
		{"Optimizer", cfg.Optimizer, "adam"},
		{"PrefetchDepth", cfg.PrefetchDepth, 2},
	}

	for _, test := range tests {
		if test.got != test.expected {
			t.Errorf("%s: expected %v, got %v", test.name, test.expected, test.got)
		}
	}

	shape := cfg.InputShape()
	if len(shape) != 3 || shape[0] != 3 || shape[1] != 128 || shape[2] != 128 {
		t.Errorf("Expected input shape [3 128 128], got %v", shape)
	}
}

func TestLoad(t *testing.T) {
	t.Run("EmptyPath", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if cfg.BatchSize != 64 {
			t.Errorf("Expected default batch size, got %d", cfg.BatchSize)
		}
	})

	t.Run("Overlay", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		content := `{"batch_size": 16, "train_fraction": 0.5, "augmentation": {"rotation_range": 30}, "plot_service_url": "http://localhost:8080"}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if cfg.BatchSize != 16 {
			t.Errorf("Expected batch size 16, got %d", cfg.BatchSize)
		}
		if cfg.TrainFraction != 0.5 {
			t.Errorf("Expected train fraction 0.5, got %v", cfg.TrainFraction)
		}
		if cfg.PlotServiceURL != "http://localhost:8080" {
			t.Errorf("Expected plot service URL, got %q", cfg.PlotServiceURL)
		}
		if cfg.Augmentation.RotationRange != 30 {
			t.Errorf("Expected rotation range 30, got %v", cfg.Augmentation.RotationRange)
		}
		// Untouched fields keep their defaults
		if cfg.TargetWidth != 128 {
			t.Errorf("Expected default width 128, got %d", cfg.TargetWidth)
		}
		if !cfg.Augmentation.HorizontalFlip {
			t.Error("Expected default horizontal flip to survive a partial overlay")
		}
	})

	t.Run("InvalidValues", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		content := `{"batch_size": 0, "train_fraction": 1.5}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}

		_, err := Load(path)
		if err == nil {
			t.Fatal("Expected validation error")
		}
		if !strings.Contains(err.Error(), "batch_size") || !strings.Contains(err.Error(), "train_fraction") {
			t.Errorf("Expected both problems reported, got: %v", err)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
			t.Error("Expected error for missing file")
		}
	})
}

func TestPaths(t *testing.T) {
	cfg := Default()

	if got := cfg.ClassImageDir(1); got != filepath.Join("dataset", "PetImages", "Dog") {
		t.Errorf("Unexpected class dir: %s", got)
	}
	if got := cfg.HoldoutPath(0); got != filepath.Join("results", "cats_test.json") {
		t.Errorf("Unexpected holdout path: %s", got)
	}
	if got := cfg.CheckpointPath(); got != filepath.Join("trained model", "classifier.json") {
		t.Errorf("Unexpected checkpoint path: %s", got)
	}
	if got := cfg.ONNXPath(); got != filepath.Join("trained model", "classifier.onnx") {
		t.Errorf("Unexpected ONNX path: %s", got)
	}
}
