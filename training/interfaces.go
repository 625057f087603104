package training

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBatch is returned by a BatchSource that could not decode any item of a batch
	ErrEmptyBatch = errors.New("batch contains no decodable images")

	// ErrLengthMismatch is returned when predictions and labels disagree in length
	ErrLengthMismatch = errors.New("prediction and label counts differ")
)

// Batch is a group of images in NCHW order with their binary labels
type Batch struct {
	Images   []float32
	Labels   []float32
	Size     int
	Channels int
	Height   int
	Width    int
}

// ImageSize is the number of values in one image
func (b *Batch) ImageSize() int {
	return b.Channels * b.Height * b.Width
}

// Image returns the values of image i
func (b *Batch) Image(i int) []float32 {
	n := b.ImageSize()
	return b.Images[i*n : (i+1)*n]
}

// Validate checks that the buffers match the declared shape
func (b *Batch) Validate() error {
	if b.Size <= 0 {
		return fmt.Errorf("%w: size %d", ErrEmptyBatch, b.Size)
	}
	if len(b.Images) != b.Size*b.ImageSize() {
		return fmt.Errorf("batch holds %d image values, expected %d", len(b.Images), b.Size*b.ImageSize())
	}
	if len(b.Labels) != b.Size {
		return fmt.Errorf("batch holds %d labels, expected %d", len(b.Labels), b.Size)
	}
	return nil
}

// Classifier outputs P(class 1) for each of n images laid out in NCHW order
type Classifier interface {
	Predict(images []float32, n int) ([]float32, error)
}

// Learner is a Classifier that can be trained one batch at a time and whose
// weights can be captured and restored
type Learner interface {
	Classifier
	TrainBatch(batch *Batch) (loss, accuracy float64, err error)
	Snapshot() []float32
	Restore(weights []float32) error
}

// LearningRateAdjuster is implemented by learners whose optimizer step size
// can be changed between epochs
type LearningRateAdjuster interface {
	LearningRate() float64
	SetLearningRate(lr float64)
}

// BatchSource yields batches forever. One epoch is Len() calls to Next.
type BatchSource interface {
	Len() int
	Next() (*Batch, error)
}

// ModelFactory builds an untrained learner for images of the given CHW shape
type ModelFactory func(inputShape []int) (Learner, error)
