package training

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// LogisticModel is a single dense unit with a sigmoid output over the
// flattened image. It is the baseline Learner used when no other model is
// plugged in.
type LogisticModel struct {
	mu         sync.Mutex
	inputShape []int
	// params holds the weights followed by the bias
	params    []float32
	optimizer Optimizer
}

// NewLogisticModel creates a model with Glorot-uniform weights and zero bias,
// trained with Adam
func NewLogisticModel(inputShape []int, learningRate float64, seed int64) (*LogisticModel, error) {
	if learningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %v", learningRate)
	}
	return NewLogisticModelWithOptimizer(inputShape, NewDefaultAdam(learningRate), seed)
}

// NewLogisticModelWithOptimizer is NewLogisticModel with a caller-chosen optimizer
func NewLogisticModelWithOptimizer(inputShape []int, optimizer Optimizer, seed int64) (*LogisticModel, error) {
	features, err := featureCount(inputShape)
	if err != nil {
		return nil, err
	}
	if optimizer == nil {
		return nil, fmt.Errorf("optimizer is nil")
	}

	rng := rand.New(rand.NewSource(seed))
	limit := math.Sqrt(6.0 / float64(features+1))
	params := make([]float32, features+1)
	for i := 0; i < features; i++ {
		params[i] = float32((rng.Float64()*2 - 1) * limit)
	}

	return &LogisticModel{
		inputShape: append([]int(nil), inputShape...),
		params:     params,
		optimizer:  optimizer,
	}, nil
}

// NewLogisticModelFromWeights rebuilds a trained model
func NewLogisticModelFromWeights(inputShape []int, weights []float32, bias float32) (*LogisticModel, error) {
	features, err := featureCount(inputShape)
	if err != nil {
		return nil, err
	}
	if len(weights) != features {
		return nil, fmt.Errorf("expected %d weights for shape %v, got %d", features, inputShape, len(weights))
	}

	params := make([]float32, features+1)
	copy(params, weights)
	params[features] = bias

	return &LogisticModel{
		inputShape: append([]int(nil), inputShape...),
		params:     params,
		optimizer:  NewDefaultAdam(0.001),
	}, nil
}

// LogisticFactory returns a ModelFactory building logistic models
func LogisticFactory(learningRate float64, seed int64) ModelFactory {
	return func(inputShape []int) (Learner, error) {
		return NewLogisticModel(inputShape, learningRate, seed)
	}
}

func featureCount(inputShape []int) (int, error) {
	if len(inputShape) == 0 {
		return 0, fmt.Errorf("input shape is empty")
	}
	features := 1
	for _, dim := range inputShape {
		if dim <= 0 {
			return 0, fmt.Errorf("invalid input shape %v", inputShape)
		}
		features *= dim
	}
	return features, nil
}

// InputShape returns the CHW shape the model was built for
func (m *LogisticModel) InputShape() []int {
	return append([]int(nil), m.inputShape...)
}

// Weights returns copies of the weight vector and the bias
func (m *LogisticModel) Weights() ([]float32, float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.params) - 1
	return append([]float32(nil), m.params[:n]...), m.params[n]
}

// Predict returns P(class 1) for n images
func (m *LogisticModel) Predict(images []float32, n int) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forward(images, n)
}

func (m *LogisticModel) forward(images []float32, n int) ([]float32, error) {
	features := len(m.params) - 1
	if n < 0 || len(images) != n*features {
		return nil, fmt.Errorf("expected %d values for %d images, got %d", n*features, n, len(images))
	}

	bias := float64(m.params[features])
	probs := make([]float32, n)
	for i := 0; i < n; i++ {
		image := images[i*features : (i+1)*features]
		z := bias
		for j, x := range image {
			z += float64(m.params[j]) * float64(x)
		}
		probs[i] = float32(Sigmoid(z))
	}
	return probs, nil
}

// TrainBatch takes one optimizer step on the batch. The returned loss and
// accuracy are measured before the update.
func (m *LogisticModel) TrainBatch(batch *Batch) (float64, float64, error) {
	if err := batch.Validate(); err != nil {
		return 0, 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	probs, err := m.forward(batch.Images, batch.Size)
	if err != nil {
		return 0, 0, err
	}
	loss, err := BinaryCrossEntropy(probs, batch.Labels)
	if err != nil {
		return 0, 0, err
	}
	accuracy := BinaryAccuracy(probs, batch.Labels)

	// d(BCE)/dz = p - y for a sigmoid output
	features := len(m.params) - 1
	grads := make([]float64, features+1)
	for i := 0; i < batch.Size; i++ {
		delta := float64(probs[i]) - float64(batch.Labels[i])
		for j, x := range batch.Image(i) {
			grads[j] += delta * float64(x)
		}
		grads[features] += delta
	}

	scaled := make([]float32, len(grads))
	for j, g := range grads {
		scaled[j] = float32(g / float64(batch.Size))
	}
	if err := m.optimizer.Step(m.params, scaled); err != nil {
		return 0, 0, fmt.Errorf("optimizer step failed: %w", err)
	}

	return loss, accuracy, nil
}

// LearningRate returns the optimizer step size
func (m *LogisticModel) LearningRate() float64 {
	return m.optimizer.GetLR()
}

// SetLearningRate changes the optimizer step size
func (m *LogisticModel) SetLearningRate(lr float64) {
	m.optimizer.SetLR(lr)
}

// Snapshot returns a copy of every parameter
func (m *LogisticModel) Snapshot() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float32(nil), m.params...)
}

// Restore replaces every parameter with a snapshot
func (m *LogisticModel) Restore(weights []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(weights) != len(m.params) {
		return fmt.Errorf("snapshot holds %d values, model has %d", len(weights), len(m.params))
	}
	copy(m.params, weights)
	return nil
}
