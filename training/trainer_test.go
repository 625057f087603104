package training

import (
	"context"
	"errors"
	"testing"
)

func constantSources() (*cyclicSource, *cyclicSource) {
	train := &cyclicSource{batches: []*Batch{scalarBatch([]float32{0}, []float32{1})}}
	val := &cyclicSource{batches: []*Batch{scalarBatch([]float32{0, 0}, []float32{1, 1})}}
	return train, val
}

func quietConfig(maxEpochs, patience int) TrainingConfig {
	return TrainingConfig{MaxEpochs: maxEpochs, Patience: patience, RestoreBest: true}
}

func TestTrainerEarlyStopping(t *testing.T) {
	// With all validation labels 1 the validation loss is -log(p), so it is
	// lowest at p=0.8 (epoch index 2) and then rises for three epochs
	learner := &scriptedLearner{script: []float32{0.6, 0.7, 0.8, 0.75, 0.7, 0.65, 0.9}}
	train, val := constantSources()

	history, err := NewTrainer(quietConfig(20, 3)).Fit(context.Background(), learner, train, val)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !history.EarlyStopped {
		t.Error("Expected early stopping")
	}
	if history.StoppedEpoch != 5 {
		t.Errorf("Expected stop at epoch index 5, got %d", history.StoppedEpoch)
	}
	if history.BestEpoch != 2 {
		t.Errorf("Expected best epoch index 2, got %d", history.BestEpoch)
	}
	if history.Epochs() != 6 || len(history.ValLoss) != 6 || len(history.ValAccuracy) != 6 {
		t.Errorf("Expected 6 recorded epochs, got %d", history.Epochs())
	}
	if !learner.restored || learner.current != 0.8 {
		t.Errorf("Expected weights of the best epoch restored, got %v", learner.current)
	}
	if train.calls != 6 || val.calls != 6 {
		t.Errorf("Expected one batch per epoch, got train %d val %d", train.calls, val.calls)
	}
}

func TestTrainerRestoresWithoutEarlyStop(t *testing.T) {
	learner := &scriptedLearner{script: []float32{0.6, 0.9, 0.7}}
	train, val := constantSources()

	history, err := NewTrainer(quietConfig(3, 10)).Fit(context.Background(), learner, train, val)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if history.EarlyStopped {
		t.Error("Did not expect early stopping")
	}
	if history.StoppedEpoch != 2 {
		t.Errorf("Expected last epoch index 2, got %d", history.StoppedEpoch)
	}
	if history.BestEpoch != 1 || learner.current != 0.9 {
		t.Errorf("Expected epoch 1 weights restored, best %d current %v", history.BestEpoch, learner.current)
	}
}

func TestTrainerWithoutRestore(t *testing.T) {
	learner := &scriptedLearner{script: []float32{0.9, 0.7}}
	train, val := constantSources()

	config := quietConfig(2, 10)
	config.RestoreBest = false
	if _, err := NewTrainer(config).Fit(context.Background(), learner, train, val); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if learner.restored || learner.current != 0.7 {
		t.Errorf("Expected final weights kept, got %v", learner.current)
	}
}

func TestTrainerEqualLossIsNotImprovement(t *testing.T) {
	learner := &scriptedLearner{script: []float32{0.7, 0.7, 0.7}}
	train, val := constantSources()

	history, err := NewTrainer(quietConfig(10, 2)).Fit(context.Background(), learner, train, val)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if history.BestEpoch != 0 || history.StoppedEpoch != 2 {
		t.Errorf("Expected best 0 and stop 2, got %d and %d", history.BestEpoch, history.StoppedEpoch)
	}
}

func TestTrainerMetrics(t *testing.T) {
	learner := &scriptedLearner{script: []float32{0.6, 0.9}}
	train, val := constantSources()
	trainer := NewTrainer(quietConfig(2, 10))

	history, err := trainer.Fit(context.Background(), learner, train, val)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	metrics := trainer.GetMetrics()
	if len(metrics) != 2 {
		t.Fatalf("Expected 2 epochs of metrics, got %d", len(metrics))
	}
	if metrics[1].ValidLoss != history.ValLoss[1] || metrics[1].TrainLoss != 0.5 {
		t.Errorf("Metrics disagree with history: %+v", metrics[1])
	}
	if metrics[1].ValidAccuracy != 1 {
		t.Errorf("Expected validation accuracy 1 at p=0.9, got %f", metrics[1].ValidAccuracy)
	}
}

func TestTrainerErrors(t *testing.T) {
	t.Run("NoEpochs", func(t *testing.T) {
		train, val := constantSources()
		if _, err := NewTrainer(quietConfig(0, 1)).Fit(context.Background(), &scriptedLearner{script: []float32{0.5}}, train, val); err == nil {
			t.Error("Expected error for zero epochs")
		}
	})

	t.Run("EmptySource", func(t *testing.T) {
		_, val := constantSources()
		empty := &cyclicSource{}
		if _, err := NewTrainer(quietConfig(1, 1)).Fit(context.Background(), &scriptedLearner{script: []float32{0.5}}, empty, val); err == nil {
			t.Error("Expected error for empty training source")
		}
	})

	t.Run("SourceError", func(t *testing.T) {
		train, val := constantSources()
		train.err = ErrEmptyBatch
		_, err := NewTrainer(quietConfig(1, 1)).Fit(context.Background(), &scriptedLearner{script: []float32{0.5}}, train, val)
		if !errors.Is(err, ErrEmptyBatch) {
			t.Errorf("Expected ErrEmptyBatch, got %v", err)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		train, val := constantSources()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewTrainer(quietConfig(5, 1)).Fit(ctx, &scriptedLearner{script: []float32{0.5}}, train, val)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}

func TestTrainerFitsLogisticModel(t *testing.T) {
	model, err := NewLogisticModel([]int{2, 1, 1}, 0.1, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	train := &cyclicSource{batches: []*Batch{separableBatch()}}
	val := &cyclicSource{batches: []*Batch{separableBatch()}}

	history, err := NewTrainer(quietConfig(50, 5)).Fit(context.Background(), model, train, val)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if history.ValLoss[history.BestEpoch] >= history.ValLoss[0] {
		t.Errorf("Validation loss did not improve: %v", history.ValLoss)
	}
}
