package training

import "fmt"

// cyclicSource replays a fixed list of batches forever and counts Next calls
type cyclicSource struct {
	batches []*Batch
	pos     int
	calls   int
	err     error
}

func (s *cyclicSource) Len() int {
	return len(s.batches)
}

func (s *cyclicSource) Next() (*Batch, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	b := s.batches[s.pos%len(s.batches)]
	s.pos++
	return b, nil
}

// scalarBatch builds a batch of 1x1x1 images holding the given values
func scalarBatch(values []float32, labels []float32) *Batch {
	return &Batch{
		Images:   values,
		Labels:   labels,
		Size:     len(values),
		Channels: 1,
		Height:   1,
		Width:    1,
	}
}

// echoClassifier predicts each image's single value as its probability
type echoClassifier struct{}

func (echoClassifier) Predict(images []float32, n int) ([]float32, error) {
	if len(images) != n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(images))
	}
	return append([]float32(nil), images...), nil
}

// scriptedLearner predicts a constant probability that changes to the next
// scripted value on every TrainBatch call
type scriptedLearner struct {
	script     []float32
	trainCalls int
	current    float32
	restored   bool
}

func (l *scriptedLearner) Predict(images []float32, n int) ([]float32, error) {
	probs := make([]float32, n)
	for i := range probs {
		probs[i] = l.current
	}
	return probs, nil
}

func (l *scriptedLearner) TrainBatch(batch *Batch) (float64, float64, error) {
	l.current = l.script[l.trainCalls%len(l.script)]
	l.trainCalls++
	return 0.5, 0.5, nil
}

func (l *scriptedLearner) Snapshot() []float32 {
	return []float32{l.current}
}

func (l *scriptedLearner) Restore(weights []float32) error {
	if len(weights) != 1 {
		return fmt.Errorf("expected 1 weight, got %d", len(weights))
	}
	l.current = weights[0]
	l.restored = true
	return nil
}
