package training

import (
	"fmt"
	"sort"
)

// DecisionThreshold separates class 0 from class 1. Probabilities below it are class 0.
const DecisionThreshold = 0.5

// MetricType represents the binary classification metrics
type MetricType int

const (
	Accuracy MetricType = iota
	Precision
	Recall
	F1Score
	Specificity
	NPV // Negative Predictive Value
)

func (mt MetricType) String() string {
	switch mt {
	case Accuracy:
		return "Accuracy"
	case Precision:
		return "Precision"
	case Recall:
		return "Recall"
	case F1Score:
		return "F1Score"
	case Specificity:
		return "Specificity"
	case NPV:
		return "NPV"
	default:
		return fmt.Sprintf("Unknown(%d)", int(mt))
	}
}

// ConfusionMatrix counts binary outcomes with class 1 as the positive class
type ConfusionMatrix struct {
	Matrix       [2][2]int // [true_class][predicted_class]
	TotalSamples int
}

// NewConfusionMatrix creates an empty confusion matrix
func NewConfusionMatrix() *ConfusionMatrix {
	return &ConfusionMatrix{}
}

// Add records one outcome
func (cm *ConfusionMatrix) Add(trueClass, predClass int) error {
	if trueClass < 0 || trueClass > 1 || predClass < 0 || predClass > 1 {
		return fmt.Errorf("class out of range: true %d, predicted %d", trueClass, predClass)
	}
	cm.Matrix[trueClass][predClass]++
	cm.TotalSamples++
	return nil
}

// Update records parallel sequences of true and predicted classes
func (cm *ConfusionMatrix) Update(trueClasses, predClasses []int) error {
	if len(trueClasses) != len(predClasses) {
		return fmt.Errorf("%w: %d labels, %d predictions", ErrLengthMismatch, len(trueClasses), len(predClasses))
	}
	for i := range trueClasses {
		if err := cm.Add(trueClasses[i], predClasses[i]); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return nil
}

// Reset clears the confusion matrix
func (cm *ConfusionMatrix) Reset() {
	cm.Matrix = [2][2]int{}
	cm.TotalSamples = 0
}

// Rows returns the matrix as nested slices
func (cm *ConfusionMatrix) Rows() [][]int {
	return [][]int{
		{cm.Matrix[0][0], cm.Matrix[0][1]},
		{cm.Matrix[1][0], cm.Matrix[1][1]},
	}
}

// GetMetric computes a metric. Zero denominators give 0.
func (cm *ConfusionMatrix) GetMetric(metric MetricType) float64 {
	tn := float64(cm.Matrix[0][0])
	fp := float64(cm.Matrix[0][1])
	fn := float64(cm.Matrix[1][0])
	tp := float64(cm.Matrix[1][1])

	switch metric {
	case Accuracy:
		return ratio(tp+tn, float64(cm.TotalSamples))
	case Precision:
		return ratio(tp, tp+fp)
	case Recall:
		return ratio(tp, tp+fn)
	case F1Score:
		precision := ratio(tp, tp+fp)
		recall := ratio(tp, tp+fn)
		return ratio(2*precision*recall, precision+recall)
	case Specificity:
		return ratio(tn, tn+fp)
	case NPV:
		return ratio(tn, tn+fn)
	default:
		return 0.0
	}
}

// GetAccuracy returns overall classification accuracy
func (cm *ConfusionMatrix) GetAccuracy() float64 {
	return cm.GetMetric(Accuracy)
}

func (cm *ConfusionMatrix) String() string {
	return fmt.Sprintf("[[%d %d]\n [%d %d]]", cm.Matrix[0][0], cm.Matrix[0][1], cm.Matrix[1][0], cm.Matrix[1][1])
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0.0
	}
	return num / den
}

// Threshold converts probabilities of class 1 into class predictions
func Threshold(probabilities []float32) []int {
	classes := make([]int, len(probabilities))
	for i, p := range probabilities {
		if p >= DecisionThreshold {
			classes[i] = 1
		}
	}
	return classes
}

// ROCPoint represents a point on the ROC curve
type ROCPoint struct {
	Threshold float32
	TPR       float64 // True Positive Rate (Recall)
	FPR       float64 // False Positive Rate (1 - Specificity)
}

// CalculateROC returns the ROC curve from (0,0) to (1,1). Equal scores form a
// single point. Nil is returned unless both classes are present.
func CalculateROC(scores []float32, labels []int) []ROCPoint {
	if len(scores) != len(labels) {
		return nil
	}

	order := make([]int, len(scores))
	totalPos, totalNeg := 0, 0
	for i := range order {
		order[i] = i
		if labels[i] == 1 {
			totalPos++
		} else {
			totalNeg++
		}
	}
	if totalPos == 0 || totalNeg == 0 {
		return nil
	}

	// Descending score
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	points := []ROCPoint{{Threshold: 1, TPR: 0, FPR: 0}}
	tp, fp := 0, 0
	for i, idx := range order {
		if labels[idx] == 1 {
			tp++
		} else {
			fp++
		}
		if i+1 < len(order) && scores[order[i+1]] == scores[idx] {
			continue
		}
		points = append(points, ROCPoint{
			Threshold: scores[idx],
			TPR:       float64(tp) / float64(totalPos),
			FPR:       float64(fp) / float64(totalNeg),
		})
	}
	return points
}

// CalculateAUCROC calculates the area under the ROC curve with the trapezoidal rule.
// It returns 0 when only one class is present.
func CalculateAUCROC(scores []float32, labels []int) float64 {
	points := CalculateROC(scores, labels)
	auc := 0.0
	for i := 1; i < len(points); i++ {
		auc += (points[i].FPR - points[i-1].FPR) * (points[i].TPR + points[i-1].TPR) / 2.0
	}
	return auc
}
