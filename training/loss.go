package training

import (
	"fmt"
	"math"
)

// lossEpsilon clips probabilities away from 0 and 1 before taking logs
const lossEpsilon = 1e-7

// BinaryCrossEntropy returns the mean of -[y*log(p) + (1-y)*log(1-p)]
func BinaryCrossEntropy(probabilities, labels []float32) (float64, error) {
	if len(probabilities) != len(labels) {
		return 0, fmt.Errorf("%w: %d probabilities, %d labels", ErrLengthMismatch, len(probabilities), len(labels))
	}
	if len(probabilities) == 0 {
		return 0, nil
	}

	total := 0.0
	for i, p := range probabilities {
		prob := math.Min(math.Max(float64(p), lossEpsilon), 1-lossEpsilon)
		y := float64(labels[i])
		total -= y*math.Log(prob) + (1-y)*math.Log(1-prob)
	}
	return total / float64(len(probabilities)), nil
}

// BinaryAccuracy returns the fraction of thresholded probabilities matching the labels
func BinaryAccuracy(probabilities, labels []float32) float64 {
	if len(probabilities) == 0 || len(probabilities) != len(labels) {
		return 0
	}
	correct := 0
	for i, p := range probabilities {
		predicted := float32(0)
		if p >= DecisionThreshold {
			predicted = 1
		}
		if predicted == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(probabilities))
}

// Sigmoid is the logistic function, computed without overflow for large |x|
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
