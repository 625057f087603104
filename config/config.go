package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDatasetURL is the Microsoft mirror of the Kaggle cats and dogs archive
const DefaultDatasetURL = "https://download.microsoft.com/download/3/E/1/3E1C3F21-ECDB-4869-8368-6DEBA77B919F/kagglecatsanddogs_5340.zip"

// AugmentationConfig holds the random transformations applied to training images
// Angles are in degrees, shifts are fractions of the image size and the zoom
// factor is sampled in [1-ZoomRange, 1+ZoomRange].
type AugmentationConfig struct {
	RotationRange    float64 `json:"rotation_range"`
	ShearRange       float64 `json:"shear_range"`
	ZoomRange        float64 `json:"zoom_range"`
	HorizontalFlip   bool    `json:"horizontal_flip"`
	WidthShiftRange  float64 `json:"width_shift_range"`
	HeightShiftRange float64 `json:"height_shift_range"`
}

// Config holds every path and hyperparameter used by the pipeline stages
type Config struct {
	// Dataset acquisition
	DatasetURL  string `json:"dataset_url"`
	ArchivePath string `json:"archive_path"`
	DatasetRoot string `json:"dataset_root"`

	// Source images, one directory per class. ClassDirs[i] holds label i.
	ImagesDir string   `json:"images_dir"`
	ClassDirs []string `json:"class_dirs"`

	// Split destinations. SplitClasses[i] is the subdirectory for ClassDirs[i].
	TrainDir     string   `json:"train_dir"`
	TestDir      string   `json:"test_dir"`
	SplitClasses []string `json:"split_classes"`

	// Outputs
	ResultsDir string `json:"results_dir"`
	ModelDir   string `json:"model_dir"`
	ModelName  string `json:"model_name"`

	// Dataset preparation
	TrainFraction   float64 `json:"train_fraction"`
	Seed            int64   `json:"seed"`
	CorruptedSuffix string  `json:"corrupted_suffix"`
	StrictScan      bool    `json:"strict_scan"`

	// Generators
	BatchSize       int                `json:"batch_size"`
	TargetWidth     int                `json:"target_width"`
	TargetHeight    int                `json:"target_height"`
	Rescale         float32            `json:"rescale"`
	ValidationSplit float64            `json:"validation_split"`
	Augmentation    AugmentationConfig `json:"augmentation"`
	NumWorkers      int                `json:"num_workers"`
	MaxCacheSize    int                `json:"max_cache_size"`
	PrefetchDepth   int                `json:"prefetch_depth"` // 0 disables background prefetching

	// Training
	MaxEpochs    int     `json:"max_epochs"`
	Patience     int     `json:"patience"`
	LearningRate float64 `json:"learning_rate"`
	Optimizer    string  `json:"optimizer"`   // adam, sgd, momentum or rmsprop
	LRSchedule   string  `json:"lr_schedule"` // constant, step, exponential, cosine or plateau

	// Inference
	ONNXRuntimeLibrary string `json:"onnxruntime_library"`
	ServeAddr          string `json:"serve_addr"`

	// PlotServiceURL is an optional plotting sidecar that receives every plot
	PlotServiceURL string `json:"plot_service_url"`
}

// Default returns the configuration of the reference cats vs dogs run
func Default() Config {
	return Config{
		DatasetURL:  DefaultDatasetURL,
		ArchivePath: "dataset.zip",
		DatasetRoot: "dataset",

		ImagesDir: filepath.Join("dataset", "PetImages"),
		ClassDirs: []string{"Cat", "Dog"},

		TrainDir:     filepath.Join("dataset", "train"),
		TestDir:      filepath.Join("dataset", "test"),
		SplitClasses: []string{"cats", "dogs"},

		ResultsDir: "results",
		ModelDir:   "trained model",
		ModelName:  "classifier",

		TrainFraction:   0.85,
		Seed:            42,
		CorruptedSuffix: "jpg",

		BatchSize:       64,
		TargetWidth:     128,
		TargetHeight:    128,
		Rescale:         1.0 / 255,
		ValidationSplit: 0.15,
		Augmentation: AugmentationConfig{
			RotationRange:    15,
			ShearRange:       0.1,
			ZoomRange:        0.2,
			HorizontalFlip:   true,
			WidthShiftRange:  0.1,
			HeightShiftRange: 0.1,
		},
		NumWorkers:    4,
		MaxCacheSize:  2000,
		PrefetchDepth: 2,

		MaxEpochs:    100,
		Patience:     10,
		LearningRate: 0.001,
		Optimizer:    "adam",
		LRSchedule:   "constant",

		ServeAddr: "127.0.0.1:8080",
	}
}

// Load reads a JSON file and overlays it on the defaults.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values no stage can work with
func (c Config) Validate() error {
	var errs []error

	if c.TrainFraction < 0 || c.TrainFraction > 1 {
		errs = append(errs, fmt.Errorf("train_fraction must be in [0, 1], got %v", c.TrainFraction))
	}
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		errs = append(errs, fmt.Errorf("validation_split must be in [0, 1), got %v", c.ValidationSplit))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}
	if c.TargetWidth <= 0 || c.TargetHeight <= 0 {
		errs = append(errs, fmt.Errorf("target resolution must be positive, got %dx%d", c.TargetWidth, c.TargetHeight))
	}
	if c.MaxEpochs <= 0 {
		errs = append(errs, fmt.Errorf("max_epochs must be positive, got %d", c.MaxEpochs))
	}
	if c.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("learning_rate must be positive, got %v", c.LearningRate))
	}
	if c.PrefetchDepth < 0 {
		errs = append(errs, fmt.Errorf("prefetch_depth cannot be negative, got %d", c.PrefetchDepth))
	}
	if c.Patience < 0 {
		errs = append(errs, fmt.Errorf("patience cannot be negative, got %d", c.Patience))
	}
	if len(c.ClassDirs) != 2 || len(c.SplitClasses) != 2 {
		errs = append(errs, fmt.Errorf("exactly two classes are required, got %d source and %d split classes",
			len(c.ClassDirs), len(c.SplitClasses)))
	}
	if len(c.CorruptedSuffix) != 3 {
		errs = append(errs, fmt.Errorf("corrupted_suffix must be 3 characters, got %q", c.CorruptedSuffix))
	}

	return errors.Join(errs...)
}

// InputShape is the CHW shape of one preprocessed image
func (c Config) InputShape() []int {
	return []int{3, c.TargetHeight, c.TargetWidth}
}

// ClassImageDir returns the source directory of class i
func (c Config) ClassImageDir(i int) string {
	return filepath.Join(c.ImagesDir, c.ClassDirs[i])
}

// HoldoutPath returns the file holding the test file names of class i
func (c Config) HoldoutPath(i int) string {
	return filepath.Join(c.ResultsDir, c.SplitClasses[i]+"_test.json")
}

// CheckpointPath is where the trained model checkpoint is written
func (c Config) CheckpointPath() string {
	return filepath.Join(c.ModelDir, c.ModelName+".json")
}

// ONNXPath is where the ONNX export of the trained model is written
func (c Config) ONNXPath() string {
	return filepath.Join(c.ModelDir, c.ModelName+".onnx")
}

// PlotDir is where plot documents are written
func (c Config) PlotDir() string {
	return filepath.Join(c.ResultsDir, "plots")
}
