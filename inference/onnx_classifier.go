package inference

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXClassifier runs an exported classifier through onnxruntime. The
// session has a fixed batch size; shorter inputs are zero padded.
type ONNXClassifier struct {
	mu        sync.Mutex
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	output    *ort.Tensor[float32]
	batch     int
	imageSize int
}

// NewONNXClassifier loads modelPath for inputs of the given CHW shape.
// libraryPath points at the onnxruntime shared library; empty uses the
// platform default.
func NewONNXClassifier(modelPath, libraryPath string, batch int, shape []int) (*ONNXClassifier, error) {
	if batch <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batch)
	}
	if len(shape) != 3 {
		return nil, fmt.Errorf("expected a CHW shape, got %v", shape)
	}

	if !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputShape := ort.NewShape(int64(batch), int64(shape[0]), int64(shape[1]), int64(shape[2]))
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(batch), 1))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXClassifier{
		session:   session,
		input:     input,
		output:    output,
		batch:     batch,
		imageSize: shape[0] * shape[1] * shape[2],
	}, nil
}

// Predict returns P(class 1) for n images in NCHW order
func (c *ONNXClassifier) Predict(images []float32, n int) ([]float32, error) {
	if n < 0 || len(images) != n*c.imageSize {
		return nil, fmt.Errorf("expected %d values for %d images, got %d", n*c.imageSize, n, len(images))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	probs := make([]float32, 0, n)
	inputData := c.input.GetData()
	for start := 0; start < n; start += c.batch {
		count := min(c.batch, n-start)

		copied := copy(inputData, images[start*c.imageSize:(start+count)*c.imageSize])
		clear(inputData[copied:])

		if err := c.session.Run(); err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}
		probs = append(probs, c.output.GetData()[:count]...)
	}
	return probs, nil
}

// Close releases the session, its tensors and the onnxruntime environment
func (c *ONNXClassifier) Close() {
	if c.input != nil {
		c.input.Destroy()
	}
	if c.output != nil {
		c.output.Destroy()
	}
	if c.session != nil {
		c.session.Destroy()
	}
	ort.DestroyEnvironment()
}
