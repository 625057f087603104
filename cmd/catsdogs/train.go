package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/tsawler/catsdogs/async"
	"github.com/tsawler/catsdogs/checkpoints"
	"github.com/tsawler/catsdogs/config"
	"github.com/tsawler/catsdogs/training"
	"github.com/tsawler/catsdogs/vision/dataloader"
)

func runTrain(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	fs.Parse(args)

	_, history, err := train(ctx, cfg)
	if err != nil {
		return err
	}
	publishPlots(ctx, cfg, trainingPlot(cfg, history))
	return nil
}

// train fits a logistic classifier on the train split and saves the
// checkpoint and its ONNX export
func train(ctx context.Context, cfg config.Config) (*training.LogisticModel, *training.History, error) {
	fmt.Println("\n--- Image Data Generators ---")
	trainLoader, valLoader, err := dataloader.CreateTrainAndValidationLoaders(cfg.TrainDir, cfg)
	if err != nil {
		return nil, nil, err
	}

	// The input shape comes from a real batch, as the generators decide it
	first, err := trainLoader.Next()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read a first batch: %w", err)
	}
	inputShape := []int{first.Channels, first.Height, first.Width}
	trainLoader.Reset()

	fmt.Println("\n--- Model training ---")
	fmt.Printf("🧠 Logistic classifier on %v inputs, %d train and %d validation batches\n",
		inputShape, trainLoader.Len(), valLoader.Len())

	optimizer, err := training.NewOptimizer(cfg.Optimizer, cfg.LearningRate)
	if err != nil {
		return nil, nil, err
	}
	model, err := training.NewLogisticModelWithOptimizer(inputShape, optimizer, cfg.Seed)
	if err != nil {
		return nil, nil, err
	}

	scheduler, err := training.NewScheduler(cfg.LRSchedule, cfg.MaxEpochs)
	if err != nil {
		return nil, nil, err
	}

	trainer := training.NewTrainer(training.TrainingConfig{
		MaxEpochs:   cfg.MaxEpochs,
		Patience:    cfg.Patience,
		RestoreBest: true,
		Verbose:     true,
		Scheduler:   scheduler,
	})

	var source training.BatchSource = trainLoader
	if cfg.PrefetchDepth > 0 {
		prefetcher, err := async.NewPrefetchLoader(trainLoader, cfg.PrefetchDepth)
		if err != nil {
			return nil, nil, err
		}
		if err := prefetcher.Start(); err != nil {
			return nil, nil, err
		}
		defer func() {
			prefetcher.Stop()
			fmt.Println(prefetcher.Stats())
		}()
		source = prefetcher
	}

	history, err := trainer.Fit(ctx, model, source, valLoader)
	if err != nil {
		return nil, nil, err
	}
	fmt.Println(trainLoader.Stats())

	checkpoint := checkpoints.FromLogisticModel(model, history, cfg.LearningRate, cfg.SplitClasses)
	checkpoint.Metadata.Description = fmt.Sprintf("%s trained for %d epochs", cfg.ModelName, history.Epochs())

	if err := checkpoints.NewCheckpointSaver(checkpoints.FormatJSON).SaveCheckpoint(checkpoint, cfg.CheckpointPath()); err != nil {
		return nil, nil, err
	}
	fmt.Printf("💾 Saved checkpoint to %s\n", cfg.CheckpointPath())

	if err := checkpoints.NewCheckpointSaver(checkpoints.FormatONNX).SaveCheckpoint(checkpoint, cfg.ONNXPath()); err != nil {
		return nil, nil, err
	}
	fmt.Printf("💾 Saved ONNX model to %s\n", cfg.ONNXPath())

	return model, history, nil
}

func trainingPlot(cfg config.Config, history *training.History) training.PlotData {
	return training.TrainingCurvesPlot(history, cfg.ModelName)
}
