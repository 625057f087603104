package training

import (
	"context"
	"fmt"
	"strings"

	"github.com/tsawler/catsdogs/progress"
)

// EvaluationResult holds the metrics of one pass over a test set
type EvaluationResult struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	AUC       float64
	Confusion *ConfusionMatrix

	Probabilities []float32
	Predictions   []int
	Labels        []int
}

// EvaluatePredictions computes every metric from probabilities of class 1 and true labels
func EvaluatePredictions(probabilities []float32, labels []int) (*EvaluationResult, error) {
	if len(probabilities) != len(labels) {
		return nil, fmt.Errorf("%w: %d probabilities, %d labels", ErrLengthMismatch, len(probabilities), len(labels))
	}

	predictions := Threshold(probabilities)
	confusion := NewConfusionMatrix()
	if err := confusion.Update(labels, predictions); err != nil {
		return nil, err
	}

	return &EvaluationResult{
		Accuracy:      confusion.GetMetric(Accuracy),
		Precision:     confusion.GetMetric(Precision),
		Recall:        confusion.GetMetric(Recall),
		F1:            confusion.GetMetric(F1Score),
		AUC:           CalculateAUCROC(probabilities, labels),
		Confusion:     confusion,
		Probabilities: probabilities,
		Predictions:   predictions,
		Labels:        labels,
	}, nil
}

// Evaluate runs clf over exactly src.Len() batches and scores the predictions.
// The source may cycle, so it is never read past one pass.
func Evaluate(ctx context.Context, clf Classifier, src BatchSource) (*EvaluationResult, error) {
	steps := src.Len()
	var probabilities []float32
	var labels []int

	bar := progress.NewBar("Evaluating", steps, "batch")
	for step := 0; step < steps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := src.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to load batch %d: %w", step, err)
		}

		probs, err := clf.Predict(batch.Images, batch.Size)
		if err != nil {
			return nil, fmt.Errorf("prediction failed on batch %d: %w", step, err)
		}
		if len(probs) != batch.Size {
			return nil, fmt.Errorf("%w: batch %d has %d images, got %d predictions",
				ErrLengthMismatch, step, batch.Size, len(probs))
		}

		probabilities = append(probabilities, probs...)
		for _, label := range batch.Labels {
			labels = append(labels, int(label))
		}
		bar.Update(step+1, nil)
	}
	bar.Finish()

	return EvaluatePredictions(probabilities, labels)
}

// String formats the result the way the command line reports it
func (r *EvaluationResult) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Accuracy: %.4f\n", r.Accuracy))
	sb.WriteString(fmt.Sprintf("Precision: %.4f\n", r.Precision))
	sb.WriteString(fmt.Sprintf("Recall: %.4f\n", r.Recall))
	sb.WriteString(fmt.Sprintf("F1-score: %.4f\n", r.F1))
	sb.WriteString(fmt.Sprintf("AUC-ROC: %.4f\n", r.AUC))
	sb.WriteString(fmt.Sprintf("Confusion Matrix:\n%s\n", r.Confusion))
	return sb.String()
}
