package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tsawler/catsdogs/training"
)

// CheckpointFormat defines the serialization format
type CheckpointFormat int

const (
	FormatJSON CheckpointFormat = iota
	FormatONNX
)

func (cf CheckpointFormat) String() string {
	switch cf {
	case FormatJSON:
		return "JSON"
	case FormatONNX:
		return "ONNX"
	default:
		return "Unknown"
	}
}

// LogisticKind names the flatten, dense(1), sigmoid architecture
const LogisticKind = "logistic"

// Weight tensor names of the logistic model
const (
	denseWeightName = "dense.weight"
	denseBiasName   = "dense.bias"
)

// ModelSpec describes the architecture a checkpoint holds weights for
type ModelSpec struct {
	Kind        string   `json:"kind"`
	InputShape  []int    `json:"input_shape"` // CHW
	OutputShape []int    `json:"output_shape"`
	ClassNames  []string `json:"class_names,omitempty"`
}

// Checkpoint represents a trained model with its training summary
type Checkpoint struct {
	ModelSpec     ModelSpec          `json:"model_spec"`
	Weights       []WeightTensor     `json:"weights"`
	TrainingState TrainingState      `json:"training_state"`
	Metadata      CheckpointMetadata `json:"metadata"`
}

// WeightTensor represents a model parameter tensor with its data
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
	Layer string    `json:"layer"`
	Type  string    `json:"type"` // "weight" or "bias"
}

// TrainingState summarises the run that produced the weights. Epochs are 1-based.
type TrainingState struct {
	BestEpoch    int     `json:"best_epoch"`
	EpochsRun    int     `json:"epochs_run"`
	EarlyStopped bool    `json:"early_stopped"`
	LearningRate float64 `json:"learning_rate"`
	BestLoss     float64 `json:"best_loss"`
	BestAccuracy float64 `json:"best_accuracy"`
}

// CheckpointMetadata contains checkpoint metadata
type CheckpointMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// FromLogisticModel captures a trained logistic model. history may be nil.
func FromLogisticModel(model *training.LogisticModel, history *training.History, learningRate float64, classNames []string) *Checkpoint {
	weights, bias := model.Weights()

	state := TrainingState{LearningRate: learningRate}
	if history != nil {
		state.EpochsRun = history.Epochs()
		state.EarlyStopped = history.EarlyStopped
		if history.BestEpoch >= 0 {
			state.BestEpoch = history.BestEpoch + 1
			state.BestLoss = history.ValLoss[history.BestEpoch]
			state.BestAccuracy = history.ValAccuracy[history.BestEpoch]
		}
	}

	return &Checkpoint{
		ModelSpec: ModelSpec{
			Kind:        LogisticKind,
			InputShape:  model.InputShape(),
			OutputShape: []int{1},
			ClassNames:  append([]string(nil), classNames...),
		},
		Weights: []WeightTensor{
			{Name: denseWeightName, Shape: []int{1, len(weights)}, Data: weights, Layer: "dense", Type: "weight"},
			{Name: denseBiasName, Shape: []int{1}, Data: []float32{bias}, Layer: "dense", Type: "bias"},
		},
		TrainingState: state,
	}
}

// Weight returns the tensor with the given name
func (c *Checkpoint) Weight(name string) (WeightTensor, bool) {
	for _, w := range c.Weights {
		if w.Name == name {
			return w, true
		}
	}
	return WeightTensor{}, false
}

// Validate checks that the weights fit the declared architecture
func (c *Checkpoint) Validate() error {
	if c.ModelSpec.Kind != LogisticKind {
		return fmt.Errorf("unsupported model kind %q", c.ModelSpec.Kind)
	}

	if len(c.ModelSpec.InputShape) == 0 {
		return fmt.Errorf("input shape is empty")
	}
	features := 1
	for _, dim := range c.ModelSpec.InputShape {
		if dim <= 0 {
			return fmt.Errorf("invalid input shape %v", c.ModelSpec.InputShape)
		}
		features *= dim
	}

	weight, ok := c.Weight(denseWeightName)
	if !ok {
		return fmt.Errorf("checkpoint has no %s tensor", denseWeightName)
	}
	if len(weight.Data) != features {
		return fmt.Errorf("%s holds %d values, input shape %v needs %d",
			denseWeightName, len(weight.Data), c.ModelSpec.InputShape, features)
	}

	bias, ok := c.Weight(denseBiasName)
	if !ok {
		return fmt.Errorf("checkpoint has no %s tensor", denseBiasName)
	}
	if len(bias.Data) != 1 {
		return fmt.Errorf("%s holds %d values, expected 1", denseBiasName, len(bias.Data))
	}
	return nil
}

// ToLogisticModel rebuilds the model the checkpoint was taken from
func (c *Checkpoint) ToLogisticModel() (*training.LogisticModel, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	weight, _ := c.Weight(denseWeightName)
	bias, _ := c.Weight(denseBiasName)
	return training.NewLogisticModelFromWeights(c.ModelSpec.InputShape, weight.Data, bias.Data[0])
}

// CheckpointSaver handles saving model checkpoints in various formats
type CheckpointSaver struct {
	format CheckpointFormat
}

// NewCheckpointSaver creates a new checkpoint saver for the specified format
func NewCheckpointSaver(format CheckpointFormat) *CheckpointSaver {
	return &CheckpointSaver{
		format: format,
	}
}

// SaveCheckpoint saves a checkpoint, creating the parent directory if needed
func (cs *CheckpointSaver) SaveCheckpoint(checkpoint *Checkpoint, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	switch cs.format {
	case FormatJSON:
		return cs.saveJSON(checkpoint, path)
	case FormatONNX:
		return ExportLogisticONNX(checkpoint, path)
	default:
		return fmt.Errorf("unsupported checkpoint format: %s", cs.format.String())
	}
}

// LoadCheckpoint loads a model checkpoint
func (cs *CheckpointSaver) LoadCheckpoint(path string) (*Checkpoint, error) {
	switch cs.format {
	case FormatJSON:
		return cs.loadJSON(path)
	case FormatONNX:
		return ImportLogisticONNX(path)
	default:
		return nil, fmt.Errorf("unsupported checkpoint format: %s", cs.format.String())
	}
}

func (cs *CheckpointSaver) saveJSON(checkpoint *Checkpoint, path string) error {
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = "catsdogs"
		checkpoint.Metadata.Version = "1.0.0"
		checkpoint.Metadata.CreatedAt = time.Now()
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(checkpoint); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return nil
}

func (cs *CheckpointSaver) loadJSON(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if err := checkpoint.Validate(); err != nil {
		return nil, fmt.Errorf("invalid checkpoint %s: %w", path, err)
	}
	return &checkpoint, nil
}
