package training

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tsawler/catsdogs/progress"
)

// TrainingConfig holds configuration for training
type TrainingConfig struct {
	MaxEpochs   int
	Patience    int  // Epochs without a lower validation loss before stopping
	RestoreBest bool // Restore the weights of the best epoch when training ends
	Verbose     bool // Draw a progress bar for every epoch

	// Scheduler sets the learning rate of each epoch when the learner
	// implements LearningRateAdjuster. Nil keeps the rate fixed.
	Scheduler LRScheduler
}

// DefaultTrainingConfig stops after 10 epochs without improvement and keeps the best weights
func DefaultTrainingConfig(maxEpochs int) TrainingConfig {
	return TrainingConfig{
		MaxEpochs:   maxEpochs,
		Patience:    10,
		RestoreBest: true,
		Verbose:     true,
	}
}

// TrainingMetrics holds metrics for a single epoch
type TrainingMetrics struct {
	Epoch         int
	TrainLoss     float64
	TrainAccuracy float64
	ValidLoss     float64
	ValidAccuracy float64
	LearningRate  float64
	EpochDuration time.Duration
	BatchCount    int
}

// History is the per-epoch record returned by Fit. BestEpoch and
// StoppedEpoch are 0-based indices into the slices.
type History struct {
	Loss         []float64
	ValLoss      []float64
	Accuracy     []float64
	ValAccuracy  []float64
	BestEpoch    int
	StoppedEpoch int
	EarlyStopped bool

	// LearningRates is only filled when the learner's rate can be read
	LearningRates []float64
}

// Epochs returns the number of completed epochs
func (h *History) Epochs() int {
	return len(h.Loss)
}

// Trainer manages the training process
type Trainer struct {
	config  TrainingConfig
	metrics []TrainingMetrics
}

// NewTrainer creates a new Trainer
func NewTrainer(config TrainingConfig) *Trainer {
	return &Trainer{config: config}
}

// Fit trains learner for up to MaxEpochs epochs of train.Len() steps each,
// validating on val.Len() batches after every epoch. Training stops early
// once the validation loss has not decreased for Patience epochs.
func (t *Trainer) Fit(ctx context.Context, learner Learner, train, val BatchSource) (*History, error) {
	if t.config.MaxEpochs <= 0 {
		return nil, fmt.Errorf("max epochs must be positive, got %d", t.config.MaxEpochs)
	}
	if train.Len() == 0 || val.Len() == 0 {
		return nil, fmt.Errorf("training and validation sources must not be empty")
	}

	history := &History{BestEpoch: -1, StoppedEpoch: -1}
	t.metrics = t.metrics[:0]

	bestValidLoss := math.Inf(1)
	var bestWeights []float32
	patienceCounter := 0

	adjuster, adjustable := learner.(LearningRateAdjuster)
	var baseLR float64
	if adjustable {
		baseLR = adjuster.LearningRate()
	}

	for epoch := 0; epoch < t.config.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return history, err
		}
		epochStart := time.Now()

		var lr float64
		if adjustable {
			if t.config.Scheduler != nil {
				adjuster.SetLearningRate(t.config.Scheduler.LearningRate(epoch, baseLR))
			}
			lr = adjuster.LearningRate()
			history.LearningRates = append(history.LearningRates, lr)
		}

		trainLoss, trainAcc, err := t.trainEpoch(ctx, learner, train, epoch)
		if err != nil {
			return history, fmt.Errorf("training epoch %d failed: %w", epoch+1, err)
		}

		validLoss, validAcc, err := t.validateEpoch(ctx, learner, val)
		if err != nil {
			return history, fmt.Errorf("validation epoch %d failed: %w", epoch+1, err)
		}

		metrics := TrainingMetrics{
			Epoch:         epoch,
			TrainLoss:     trainLoss,
			TrainAccuracy: trainAcc,
			ValidLoss:     validLoss,
			ValidAccuracy: validAcc,
			LearningRate:  lr,
			EpochDuration: time.Since(epochStart),
			BatchCount:    train.Len(),
		}
		t.metrics = append(t.metrics, metrics)

		history.Loss = append(history.Loss, trainLoss)
		history.Accuracy = append(history.Accuracy, trainAcc)
		history.ValLoss = append(history.ValLoss, validLoss)
		history.ValAccuracy = append(history.ValAccuracy, validAcc)

		t.printEpochSummary(metrics)

		if t.config.Scheduler != nil {
			t.config.Scheduler.Observe(validLoss)
		}

		if validLoss < bestValidLoss {
			bestValidLoss = validLoss
			history.BestEpoch = epoch
			bestWeights = learner.Snapshot()
			patienceCounter = 0
			continue
		}

		patienceCounter++
		if patienceCounter >= t.config.Patience {
			history.StoppedEpoch = epoch
			history.EarlyStopped = true
			fmt.Printf("Early stopping triggered after %d epochs\n", epoch+1)
			break
		}
	}

	if history.StoppedEpoch < 0 {
		history.StoppedEpoch = history.Epochs() - 1
	}

	if t.config.RestoreBest && bestWeights != nil {
		if err := learner.Restore(bestWeights); err != nil {
			return history, fmt.Errorf("failed to restore best weights: %w", err)
		}
		fmt.Printf("Restored weights from epoch %d (val_loss=%.4f)\n", history.BestEpoch+1, bestValidLoss)
	}

	return history, nil
}

// trainEpoch runs one training epoch and returns sample-weighted loss and accuracy
func (t *Trainer) trainEpoch(ctx context.Context, learner Learner, train BatchSource, epoch int) (float64, float64, error) {
	steps := train.Len()
	var totalLoss, totalCorrect float64
	var totalSamples int

	var bar *progress.Bar
	if t.config.Verbose {
		bar = progress.NewBar(fmt.Sprintf("Epoch %d/%d", epoch+1, t.config.MaxEpochs), steps, "batch")
	}

	for step := 0; step < steps; step++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		batch, err := train.Next()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to load batch %d: %w", step, err)
		}

		loss, acc, err := learner.TrainBatch(batch)
		if err != nil {
			return 0, 0, fmt.Errorf("batch %d: %w", step, err)
		}

		totalLoss += loss * float64(batch.Size)
		totalCorrect += acc * float64(batch.Size)
		totalSamples += batch.Size

		if bar != nil {
			bar.Update(step+1, map[string]float64{
				"loss": totalLoss / float64(totalSamples),
				"acc":  totalCorrect / float64(totalSamples),
			})
		}
	}
	if bar != nil {
		bar.Finish()
	}

	return totalLoss / float64(totalSamples), totalCorrect / float64(totalSamples), nil
}

// validateEpoch measures mean binary cross-entropy and accuracy over one pass of val
func (t *Trainer) validateEpoch(ctx context.Context, learner Learner, val BatchSource) (float64, float64, error) {
	var totalLoss, totalCorrect float64
	var totalSamples int

	for step := 0; step < val.Len(); step++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		batch, err := val.Next()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to load batch %d: %w", step, err)
		}

		probs, err := learner.Predict(batch.Images, batch.Size)
		if err != nil {
			return 0, 0, fmt.Errorf("prediction failed on batch %d: %w", step, err)
		}
		loss, err := BinaryCrossEntropy(probs, batch.Labels)
		if err != nil {
			return 0, 0, err
		}

		totalLoss += loss * float64(batch.Size)
		totalCorrect += BinaryAccuracy(probs, batch.Labels) * float64(batch.Size)
		totalSamples += batch.Size
	}

	return totalLoss / float64(totalSamples), totalCorrect / float64(totalSamples), nil
}

// printEpochSummary prints a summary of the epoch results
func (t *Trainer) printEpochSummary(metrics TrainingMetrics) {
	fmt.Printf("Epoch %d/%d: ", metrics.Epoch+1, t.config.MaxEpochs)
	fmt.Printf("Train Loss=%.4f, Train Acc=%.2f%%", metrics.TrainLoss, metrics.TrainAccuracy*100)
	fmt.Printf(", Valid Loss=%.4f, Valid Acc=%.2f%%", metrics.ValidLoss, metrics.ValidAccuracy*100)
	if metrics.LearningRate > 0 {
		fmt.Printf(", LR=%.6f", metrics.LearningRate)
	}
	fmt.Printf(", Time=%v, Batches=%d\n", metrics.EpochDuration.Round(time.Millisecond), metrics.BatchCount)
}

// GetMetrics returns all training metrics
func (t *Trainer) GetMetrics() []TrainingMetrics {
	return t.metrics
}
