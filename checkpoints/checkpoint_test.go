package checkpoints

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/catsdogs/training"
	"google.golang.org/protobuf/encoding/protowire"
)

func testCheckpoint(t *testing.T) *Checkpoint {
	t.Helper()
	weights := make([]float32, 12)
	for i := range weights {
		weights[i] = float32(i%5)*0.1 - 0.2
	}
	model, err := training.NewLogisticModelFromWeights([]int{3, 2, 2}, weights, 0.25)
	if err != nil {
		t.Fatalf("Failed to create model: %v", err)
	}

	history := &training.History{
		Loss:        []float64{0.7, 0.6},
		ValLoss:     []float64{0.68, 0.65},
		Accuracy:    []float64{0.5, 0.6},
		ValAccuracy: []float64{0.55, 0.6},
		BestEpoch:   1,
	}
	return FromLogisticModel(model, history, 0.001, []string{"cats", "dogs"})
}

func TestFromLogisticModel(t *testing.T) {
	checkpoint := testCheckpoint(t)

	if err := checkpoint.Validate(); err != nil {
		t.Fatalf("Checkpoint should be valid: %v", err)
	}
	if checkpoint.TrainingState.BestEpoch != 2 || checkpoint.TrainingState.EpochsRun != 2 {
		t.Errorf("Unexpected training state %+v", checkpoint.TrainingState)
	}
	if checkpoint.TrainingState.BestLoss != 0.65 {
		t.Errorf("Expected best loss 0.65, got %f", checkpoint.TrainingState.BestLoss)
	}

	weight, ok := checkpoint.Weight("dense.weight")
	if !ok || len(weight.Shape) != 2 || weight.Shape[1] != 12 {
		t.Errorf("Unexpected weight tensor %+v", weight)
	}
}

func TestCheckpointJSONSaveLoad(t *testing.T) {
	checkpoint := testCheckpoint(t)
	path := filepath.Join(t.TempDir(), "trained model", "classifier.json")

	saver := NewCheckpointSaver(FormatJSON)
	if err := saver.SaveCheckpoint(checkpoint, path); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	loaded, err := saver.LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}

	if loaded.Metadata.Framework != "catsdogs" {
		t.Errorf("Expected metadata to be filled in, got %+v", loaded.Metadata)
	}
	if strings.Join(loaded.ModelSpec.ClassNames, ",") != "cats,dogs" {
		t.Errorf("Unexpected class names %v", loaded.ModelSpec.ClassNames)
	}

	original, err := checkpoint.ToLogisticModel()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	restored, err := loaded.ToLogisticModel()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	images := make([]float32, 24)
	for i := range images {
		images[i] = float32(i) / 24
	}
	want, _ := original.Predict(images, 2)
	got, _ := restored.Predict(images, 2)
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("Prediction %d differs after reload: %f vs %f", i, want[i], got[i])
		}
	}
}

func TestCheckpointValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Checkpoint)
	}{
		{"UnknownKind", func(c *Checkpoint) { c.ModelSpec.Kind = "cnn" }},
		{"EmptyShape", func(c *Checkpoint) { c.ModelSpec.InputShape = nil }},
		{"BadShape", func(c *Checkpoint) { c.ModelSpec.InputShape = []int{3, 0, 2} }},
		{"WrongWeightCount", func(c *Checkpoint) { c.Weights[0].Data = c.Weights[0].Data[:5] }},
		{"MissingBias", func(c *Checkpoint) { c.Weights = c.Weights[:1] }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			checkpoint := testCheckpoint(t)
			test.mutate(checkpoint)
			if err := checkpoint.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"model_spec": {"kind": "logistic"}}`), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := NewCheckpointSaver(FormatJSON).LoadCheckpoint(path); err == nil {
		t.Error("Expected error for checkpoint without weights")
	}
}

// graphFields returns the decoded fields of the graph inside an encoded model
func graphFields(t *testing.T, model []byte) []field {
	t.Helper()
	fields, err := parseFields(model)
	if err != nil {
		t.Fatalf("Model does not parse: %v", err)
	}
	for _, f := range fields {
		if f.num == modelGraph {
			graph, err := parseFields(f.bytes)
			if err != nil {
				t.Fatalf("Graph does not parse: %v", err)
			}
			return graph
		}
	}
	t.Fatal("Model has no graph")
	return nil
}

func TestMarshalLogisticONNX(t *testing.T) {
	data, err := MarshalLogisticONNX(testCheckpoint(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	model, err := parseFields(data)
	if err != nil {
		t.Fatalf("Model does not parse: %v", err)
	}
	var irVersion uint64
	var opset []byte
	for _, f := range model {
		switch f.num {
		case modelIRVersion:
			irVersion = f.u64
		case modelOpsetImport:
			opset = f.bytes
		}
	}
	if irVersion != onnxIRVersion {
		t.Errorf("Expected IR version %d, got %d", onnxIRVersion, irVersion)
	}
	opsetFields, err := parseFields(opset)
	if err != nil {
		t.Fatalf("Opset does not parse: %v", err)
	}
	foundVersion := false
	for _, f := range opsetFields {
		if f.num == opsetVersion && f.u64 == onnxOpsetVersion {
			foundVersion = true
		}
	}
	if !foundVersion {
		t.Error("Expected opset 13 import")
	}

	var opTypes []string
	for _, f := range graphFields(t, data) {
		if f.num != graphNode {
			continue
		}
		node, err := parseFields(f.bytes)
		if err != nil {
			t.Fatalf("Node does not parse: %v", err)
		}
		for _, nf := range node {
			if nf.num == nodeOpType {
				opTypes = append(opTypes, string(nf.bytes))
			}
		}
	}
	if strings.Join(opTypes, ",") != "Flatten,Gemm,Sigmoid" {
		t.Errorf("Expected Flatten,Gemm,Sigmoid, got %v", opTypes)
	}
}

func TestONNXInputHasDynamicBatch(t *testing.T) {
	data, err := MarshalLogisticONNX(testCheckpoint(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, f := range graphFields(t, data) {
		if f.num != graphInput {
			continue
		}
		name, dims, err := parseValueInfo(f.bytes)
		if err != nil {
			t.Fatalf("Input does not parse: %v", err)
		}
		if name != onnxInputName {
			t.Errorf("Expected input named %q, got %q", onnxInputName, name)
		}
		if len(dims) != 3 || dims[0] != 3 || dims[1] != 2 || dims[2] != 2 {
			t.Errorf("Expected fixed dims [3 2 2], got %v", dims)
		}

		// The first dimension is symbolic
		typ, _ := nestedMessage(f.bytes, valueInfoType)
		tensor, _ := nestedMessage(typ, typeTensorType)
		shape, _ := nestedMessage(tensor, tensorShape)
		first, _ := nestedMessage(shape, shapeDim)
		param, _ := nestedMessage(first, dimParam)
		if string(param) != onnxBatchParam {
			t.Errorf("Expected batch dim_param %q, got %q", onnxBatchParam, param)
		}
		return
	}
	t.Fatal("Graph has no input")
}

func TestONNXRoundTrip(t *testing.T) {
	checkpoint := testCheckpoint(t)
	path := filepath.Join(t.TempDir(), "classifier.onnx")

	saver := NewCheckpointSaver(FormatONNX)
	if err := saver.SaveCheckpoint(checkpoint, path); err != nil {
		t.Fatalf("Failed to export: %v", err)
	}

	imported, err := saver.LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("Failed to import: %v", err)
	}

	want, _ := checkpoint.Weight("dense.weight")
	got, ok := imported.Weight("dense.weight")
	if !ok {
		t.Fatal("Imported checkpoint has no dense.weight")
	}
	for i := range want.Data {
		if math.Float32bits(want.Data[i]) != math.Float32bits(got.Data[i]) {
			t.Fatalf("Weight %d differs: %f vs %f", i, want.Data[i], got.Data[i])
		}
	}
	if len(got.Shape) != 2 || got.Shape[0] != 1 || got.Shape[1] != 12 {
		t.Errorf("Unexpected weight shape %v", got.Shape)
	}

	bias, _ := imported.Weight("dense.bias")
	if bias.Data[0] != 0.25 || bias.Type != "bias" {
		t.Errorf("Unexpected bias %+v", bias)
	}
	if strings.Join(imported.ModelSpec.ClassNames, ",") != "cats,dogs" {
		t.Errorf("Class names not carried through metadata: %v", imported.ModelSpec.ClassNames)
	}
	if !strings.Contains(imported.Metadata.Description, "catsdogs") {
		t.Errorf("Expected producer in description, got %q", imported.Metadata.Description)
	}
}

func TestImportLogisticONNXErrors(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.onnx")
	if err := os.WriteFile(garbage, []byte{0xff, 0xff, 0xff}, 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := ImportLogisticONNX(garbage); err == nil {
		t.Error("Expected error for invalid protobuf data")
	}

	var noGraph []byte
	noGraph = protowire.AppendTag(noGraph, modelIRVersion, protowire.VarintType)
	noGraph = protowire.AppendVarint(noGraph, 7)
	empty := filepath.Join(dir, "empty.onnx")
	if err := os.WriteFile(empty, noGraph, 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := ImportLogisticONNX(empty); err == nil {
		t.Error("Expected error for model without graph")
	}

	if _, err := ImportLogisticONNX(filepath.Join(dir, "missing.onnx")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestCheckpointFormatString(t *testing.T) {
	if FormatJSON.String() != "JSON" || FormatONNX.String() != "ONNX" || CheckpointFormat(9).String() != "Unknown" {
		t.Error("Unexpected format names")
	}
}
