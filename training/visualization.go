package training

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PlotType represents the plots the pipeline produces
type PlotType string

const (
	PlotTrainingCurves  PlotType = "training_curves"
	PlotConfusionMatrix PlotType = "confusion_matrix"
	PlotROCCurve        PlotType = "roc_curve"
)

// PlotData is a self-describing plot document that a renderer can draw
type PlotData struct {
	PlotType  PlotType  `json:"plot_type"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	ModelName string    `json:"model_name"`

	Series []SeriesData `json:"series"`
	Config PlotConfig   `json:"config"`

	Metrics map[string]interface{} `json:"metrics,omitempty"`
}

// SeriesData represents a single data series in a plot
type SeriesData struct {
	Name  string                 `json:"name"`
	Type  string                 `json:"type"` // "line", "heatmap"
	Data  []DataPoint            `json:"data"`
	Style map[string]interface{} `json:"style,omitempty"`
}

// DataPoint represents a single data point
type DataPoint struct {
	X     interface{} `json:"x"`
	Y     interface{} `json:"y"`
	Z     interface{} `json:"z,omitempty"`
	Label string      `json:"label,omitempty"`
}

// PlotConfig contains plot-specific configuration
type PlotConfig struct {
	XAxisLabel    string                 `json:"x_axis_label"`
	YAxisLabel    string                 `json:"y_axis_label"`
	XAxisScale    string                 `json:"x_axis_scale"`
	YAxisScale    string                 `json:"y_axis_scale"`
	ShowLegend    bool                   `json:"show_legend"`
	ShowGrid      bool                   `json:"show_grid"`
	Width         int                    `json:"width"`
	Height        int                    `json:"height"`
	CustomOptions map[string]interface{} `json:"custom_options,omitempty"`
}

func lineSeries(name, color string, dashed bool, values []float64) SeriesData {
	style := map[string]interface{}{
		"color":      color,
		"line_width": 2,
	}
	if dashed {
		style["line_style"] = "dashed"
	}

	data := make([]DataPoint, len(values))
	for i, v := range values {
		data[i] = DataPoint{X: i + 1, Y: v}
	}
	return SeriesData{Name: name, Type: "line", Data: data, Style: style}
}

// TrainingCurvesPlot draws train and validation loss and accuracy per epoch
func TrainingCurvesPlot(history *History, modelName string) PlotData {
	metrics := map[string]interface{}{
		"epochs":        history.Epochs(),
		"early_stopped": history.EarlyStopped,
	}
	if history.BestEpoch >= 0 {
		metrics["best_epoch"] = history.BestEpoch + 1
		metrics["best_val_loss"] = history.ValLoss[history.BestEpoch]
	}

	return PlotData{
		PlotType:  PlotTrainingCurves,
		Title:     fmt.Sprintf("Training Curves - %s", modelName),
		Timestamp: time.Now(),
		ModelName: modelName,
		Series: []SeriesData{
			lineSeries("Train Loss", "#FF6B6B", false, history.Loss),
			lineSeries("Validation Loss", "#FF9F43", true, history.ValLoss),
			lineSeries("Train Accuracy", "#4ECDC4", false, history.Accuracy),
			lineSeries("Validation Accuracy", "#5F27CD", true, history.ValAccuracy),
		},
		Config: PlotConfig{
			XAxisLabel: "Epochs",
			YAxisLabel: "Metrics",
			XAxisScale: "linear",
			YAxisScale: "linear",
			ShowLegend: true,
			ShowGrid:   true,
			Width:      1500,
			Height:     800,
		},
		Metrics: metrics,
	}
}

// ConfusionMatrixPlot draws the evaluation confusion matrix as a heatmap
func ConfusionMatrixPlot(result *EvaluationResult, classNames []string, modelName string) PlotData {
	rows := result.Confusion.Rows()
	var data []DataPoint
	for i, row := range rows {
		for j, value := range row {
			data = append(data, DataPoint{
				X:     j,
				Y:     i,
				Z:     value,
				Label: fmt.Sprintf("True: %s, Pred: %s", className(classNames, i), className(classNames, j)),
			})
		}
	}

	return PlotData{
		PlotType:  PlotConfusionMatrix,
		Title:     fmt.Sprintf("Confusion Matrix - %s", modelName),
		Timestamp: time.Now(),
		ModelName: modelName,
		Series: []SeriesData{{
			Name:  "Confusion Matrix",
			Type:  "heatmap",
			Data:  data,
			Style: map[string]interface{}{"colorscale": "Blues"},
		}},
		Config: PlotConfig{
			XAxisLabel: "Predicted Class",
			YAxisLabel: "True Class",
			XAxisScale: "linear",
			YAxisScale: "linear",
			Width:      600,
			Height:     600,
			CustomOptions: map[string]interface{}{
				"class_names": classNames,
			},
		},
		Metrics: map[string]interface{}{
			"accuracy":  result.Accuracy,
			"precision": result.Precision,
			"recall":    result.Recall,
			"f1":        result.F1,
		},
	}
}

// ROCCurvePlot draws the ROC curve of an evaluation
func ROCCurvePlot(result *EvaluationResult, modelName string) PlotData {
	points := CalculateROC(result.Probabilities, result.Labels)
	curve := make([]DataPoint, len(points))
	for i, p := range points {
		curve[i] = DataPoint{X: p.FPR, Y: p.TPR, Label: fmt.Sprintf("threshold %.3f", p.Threshold)}
	}

	return PlotData{
		PlotType:  PlotROCCurve,
		Title:     fmt.Sprintf("ROC Curve - %s", modelName),
		Timestamp: time.Now(),
		ModelName: modelName,
		Series: []SeriesData{
			{
				Name:  fmt.Sprintf("ROC (AUC = %.3f)", result.AUC),
				Type:  "line",
				Data:  curve,
				Style: map[string]interface{}{"color": "#4ECDC4", "line_width": 2},
			},
			{
				Name:  "Random",
				Type:  "line",
				Data:  []DataPoint{{X: 0.0, Y: 0.0}, {X: 1.0, Y: 1.0}},
				Style: map[string]interface{}{"color": "#999999", "line_style": "dashed"},
			},
		},
		Config: PlotConfig{
			XAxisLabel: "False Positive Rate",
			YAxisLabel: "True Positive Rate",
			XAxisScale: "linear",
			YAxisScale: "linear",
			ShowLegend: true,
			ShowGrid:   true,
			Width:      600,
			Height:     600,
		},
		Metrics: map[string]interface{}{"auc": result.AUC},
	}
}

func className(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("%d", i)
}

// ToJSON converts plot data to JSON string
func (pd PlotData) ToJSON() (string, error) {
	jsonData, err := json.MarshalIndent(pd, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plot data to JSON: %w", err)
	}
	return string(jsonData), nil
}

// SavePlot writes the plot to dir/<plot_type>.json and returns the path
func SavePlot(dir string, plot PlotData) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create plot directory: %w", err)
	}

	data, err := plot.ToJSON()
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, string(plot.PlotType)+".json")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return "", fmt.Errorf("failed to write plot: %w", err)
	}
	return path, nil
}
