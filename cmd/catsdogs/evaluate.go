package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/tsawler/catsdogs/checkpoints"
	"github.com/tsawler/catsdogs/config"
	"github.com/tsawler/catsdogs/inference"
	"github.com/tsawler/catsdogs/training"
	"github.com/tsawler/catsdogs/vision/dataloader"
)

func runEvaluate(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	useONNX := fs.Bool("onnx", false, "evaluate the ONNX export through onnxruntime")
	useTestDir := fs.Bool("testdir", false, "evaluate on the test split directory instead of the held-out lists")
	fs.Parse(args)

	classifier, _, closeFn, err := loadClassifier(cfg, *useONNX)
	if err != nil {
		return err
	}
	defer closeFn()

	loader, err := testLoader(cfg, !*useTestDir)
	if err != nil {
		return err
	}
	return evaluate(ctx, cfg, classifier, loader)
}

func testLoader(cfg config.Config, holdout bool) (*dataloader.DataLoader, error) {
	if holdout {
		return dataloader.CreateHoldoutLoader(cfg)
	}
	return dataloader.CreateTestLoader(cfg.TestDir, cfg)
}

func evaluate(ctx context.Context, cfg config.Config, classifier training.Classifier, loader *dataloader.DataLoader) error {
	result, err := training.Evaluate(ctx, classifier, loader)
	if err != nil {
		return err
	}
	fmt.Print(result)

	publishPlots(ctx, cfg,
		training.ConfusionMatrixPlot(result, cfg.SplitClasses, cfg.ModelName),
		training.ROCCurvePlot(result, cfg.ModelName),
	)
	return nil
}

// loadClassifier returns the saved model, its class names and a release function
func loadClassifier(cfg config.Config, useONNX bool) (training.Classifier, []string, func(), error) {
	if useONNX {
		checkpoint, err := checkpoints.NewCheckpointSaver(checkpoints.FormatONNX).LoadCheckpoint(cfg.ONNXPath())
		if err != nil {
			return nil, nil, nil, err
		}
		clf, err := inference.NewONNXClassifier(cfg.ONNXPath(), cfg.ONNXRuntimeLibrary, cfg.BatchSize, checkpoint.ModelSpec.InputShape)
		if err != nil {
			return nil, nil, nil, err
		}
		fmt.Printf("📦 Loaded ONNX model %s\n", cfg.ONNXPath())
		return clf, classNames(cfg, checkpoint), clf.Close, nil
	}

	checkpoint, err := checkpoints.NewCheckpointSaver(checkpoints.FormatJSON).LoadCheckpoint(cfg.CheckpointPath())
	if err != nil {
		return nil, nil, nil, err
	}
	model, err := checkpoint.ToLogisticModel()
	if err != nil {
		return nil, nil, nil, err
	}
	fmt.Printf("📦 Loaded checkpoint %s (best epoch %d)\n", cfg.CheckpointPath(), checkpoint.TrainingState.BestEpoch)
	return model, classNames(cfg, checkpoint), func() {}, nil
}

func classNames(cfg config.Config, checkpoint *checkpoints.Checkpoint) []string {
	if len(checkpoint.ModelSpec.ClassNames) > 0 {
		return checkpoint.ModelSpec.ClassNames
	}
	return cfg.SplitClasses
}
