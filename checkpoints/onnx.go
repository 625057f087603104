package checkpoints

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// ONNX constants used by the exported graph
const (
	onnxIRVersion    = 7
	onnxOpsetVersion = 13
	onnxProducerName = "catsdogs"

	onnxFloat       = 1 // TensorProto.DataType FLOAT
	onnxAttrInt     = 2 // AttributeProto.AttributeType INT
	onnxBatchParam  = "N"
	onnxInputName   = "input"
	onnxOutputName  = "output"
	classNamesKey   = "class_names"
	flattenOutput   = "flatten_output"
	denseOutputName = "dense_output"
)

// Field numbers from onnx.proto
const (
	modelIRVersion       protowire.Number = 1
	modelProducerName    protowire.Number = 2
	modelProducerVersion protowire.Number = 3
	modelVersion         protowire.Number = 5
	modelDocString       protowire.Number = 6
	modelGraph           protowire.Number = 7
	modelOpsetImport     protowire.Number = 8
	modelMetadataProps   protowire.Number = 14

	opsetDomain  protowire.Number = 1
	opsetVersion protowire.Number = 2

	entryKey   protowire.Number = 1
	entryValue protowire.Number = 2

	graphNode        protowire.Number = 1
	graphName        protowire.Number = 2
	graphInitializer protowire.Number = 5
	graphInput       protowire.Number = 11
	graphOutput      protowire.Number = 12

	nodeInput     protowire.Number = 1
	nodeOutput    protowire.Number = 2
	nodeName      protowire.Number = 3
	nodeOpType    protowire.Number = 4
	nodeAttribute protowire.Number = 5

	attrName protowire.Number = 1
	attrInt  protowire.Number = 3
	attrType protowire.Number = 20

	tensorDims      protowire.Number = 1
	tensorDataType  protowire.Number = 2
	tensorFloatData protowire.Number = 4
	tensorName      protowire.Number = 8

	valueInfoName protowire.Number = 1
	valueInfoType protowire.Number = 2

	typeTensorType protowire.Number = 1
	tensorElemType protowire.Number = 1
	tensorShape    protowire.Number = 2
	shapeDim       protowire.Number = 1
	dimValue       protowire.Number = 1
	dimParam       protowire.Number = 2
)

// ExportLogisticONNX writes the checkpoint as an ONNX model computing
// Sigmoid(Gemm(Flatten(input))) with a dynamic batch dimension
func ExportLogisticONNX(checkpoint *Checkpoint, path string) error {
	data, err := MarshalLogisticONNX(checkpoint)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write ONNX file: %w", err)
	}
	return nil
}

// MarshalLogisticONNX encodes the checkpoint as an ONNX ModelProto
func MarshalLogisticONNX(checkpoint *Checkpoint) ([]byte, error) {
	if err := checkpoint.Validate(); err != nil {
		return nil, fmt.Errorf("cannot export checkpoint: %w", err)
	}
	weight, _ := checkpoint.Weight(denseWeightName)
	bias, _ := checkpoint.Weight(denseBiasName)

	var b []byte
	b = appendVarintField(b, modelIRVersion, onnxIRVersion)
	b = appendStringField(b, modelProducerName, onnxProducerName)
	b = appendStringField(b, modelProducerVersion, "1.0.0")
	b = appendVarintField(b, modelVersion, 1)
	b = appendStringField(b, modelDocString, "cats vs dogs logistic classifier")
	b = appendMessageField(b, modelGraph, buildGraph(checkpoint.ModelSpec.InputShape, weight.Data, bias.Data[0]))

	var opset []byte
	opset = appendStringField(opset, opsetDomain, "")
	opset = appendVarintField(opset, opsetVersion, onnxOpsetVersion)
	b = appendMessageField(b, modelOpsetImport, opset)

	if len(checkpoint.ModelSpec.ClassNames) > 0 {
		var entry []byte
		entry = appendStringField(entry, entryKey, classNamesKey)
		entry = appendStringField(entry, entryValue, strings.Join(checkpoint.ModelSpec.ClassNames, ","))
		b = appendMessageField(b, modelMetadataProps, entry)
	}

	return b, nil
}

func buildGraph(inputShape []int, weights []float32, bias float32) []byte {
	var g []byte

	flatten := encodeNode("flatten", "Flatten", []string{onnxInputName}, flattenOutput,
		encodeIntAttribute("axis", 1))
	gemm := encodeNode("dense", "Gemm", []string{flattenOutput, denseWeightName, denseBiasName}, denseOutputName,
		encodeIntAttribute("transB", 1))
	sigmoid := encodeNode("sigmoid", "Sigmoid", []string{denseOutputName}, onnxOutputName)

	g = appendMessageField(g, graphNode, flatten)
	g = appendMessageField(g, graphNode, gemm)
	g = appendMessageField(g, graphNode, sigmoid)
	g = appendStringField(g, graphName, "catsdogs-logistic")

	g = appendMessageField(g, graphInitializer, encodeTensor(denseWeightName, []int{1, len(weights)}, weights))
	g = appendMessageField(g, graphInitializer, encodeTensor(denseBiasName, []int{1}, []float32{bias}))

	g = appendMessageField(g, graphInput, encodeValueInfo(onnxInputName, inputShape))
	g = appendMessageField(g, graphOutput, encodeValueInfo(onnxOutputName, []int{1}))
	return g
}

func encodeNode(name, opType string, inputs []string, output string, attributes ...[]byte) []byte {
	var n []byte
	for _, input := range inputs {
		n = appendStringField(n, nodeInput, input)
	}
	n = appendStringField(n, nodeOutput, output)
	n = appendStringField(n, nodeName, name)
	n = appendStringField(n, nodeOpType, opType)
	for _, attr := range attributes {
		n = appendMessageField(n, nodeAttribute, attr)
	}
	return n
}

func encodeIntAttribute(name string, value int64) []byte {
	var a []byte
	a = appendStringField(a, attrName, name)
	a = appendVarintField(a, attrInt, uint64(value))
	a = appendVarintField(a, attrType, onnxAttrInt)
	return a
}

func encodeTensor(name string, dims []int, data []float32) []byte {
	var t []byte
	for _, d := range dims {
		t = appendVarintField(t, tensorDims, uint64(d))
	}
	t = appendVarintField(t, tensorDataType, onnxFloat)

	packed := make([]byte, 0, 4*len(data))
	for _, v := range data {
		packed = protowire.AppendFixed32(packed, math.Float32bits(v))
	}
	t = appendMessageField(t, tensorFloatData, packed)
	t = appendStringField(t, tensorName, name)
	return t
}

// encodeValueInfo describes a float tensor of shape [N, dims...]
func encodeValueInfo(name string, dims []int) []byte {
	var shape []byte
	var batch []byte
	batch = appendStringField(batch, dimParam, onnxBatchParam)
	shape = appendMessageField(shape, shapeDim, batch)
	for _, d := range dims {
		var dim []byte
		dim = appendVarintField(dim, dimValue, uint64(d))
		shape = appendMessageField(shape, shapeDim, dim)
	}

	var tensor []byte
	tensor = appendVarintField(tensor, tensorElemType, onnxFloat)
	tensor = appendMessageField(tensor, tensorShape, shape)

	var typ []byte
	typ = appendMessageField(typ, typeTensorType, tensor)

	var v []byte
	v = appendStringField(v, valueInfoName, name)
	v = appendMessageField(v, valueInfoType, typ)
	return v
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessageField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// field is one decoded protobuf field. Only the member matching typ is set.
type field struct {
	num   protowire.Number
	typ   protowire.Type
	u64   uint64
	u32   uint32
	bytes []byte
}

// parseFields splits a message into its top-level fields
func parseFields(b []byte) ([]field, error) {
	var fields []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u64, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			f.u32, n = protowire.ConsumeFixed32(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		fields = append(fields, f)
	}
	return fields, nil
}

// ImportLogisticONNX reads a model written by ExportLogisticONNX back into a checkpoint
func ImportLogisticONNX(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ONNX file: %w", err)
	}

	model, err := parseFields(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ONNX model: %w", err)
	}

	checkpoint := &Checkpoint{
		ModelSpec: ModelSpec{Kind: LogisticKind, OutputShape: []int{1}},
		Metadata: CheckpointMetadata{
			Version:   "1.0.0",
			Framework: onnxProducerName,
			CreatedAt: time.Now(),
		},
	}

	var producer string
	var graph []byte
	for _, f := range model {
		switch f.num {
		case modelProducerName:
			producer = string(f.bytes)
		case modelGraph:
			graph = f.bytes
		case modelMetadataProps:
			key, value, err := parseEntry(f.bytes)
			if err != nil {
				return nil, err
			}
			if key == classNamesKey && value != "" {
				checkpoint.ModelSpec.ClassNames = strings.Split(value, ",")
			}
		}
	}
	if graph == nil {
		return nil, fmt.Errorf("ONNX model %s has no graph", path)
	}
	checkpoint.Metadata.Description = fmt.Sprintf("Imported from ONNX (producer: %s)", producer)

	if err := parseGraph(graph, checkpoint); err != nil {
		return nil, fmt.Errorf("failed to read ONNX graph: %w", err)
	}
	if err := checkpoint.Validate(); err != nil {
		return nil, fmt.Errorf("ONNX model is not a logistic classifier: %w", err)
	}
	return checkpoint, nil
}

func parseEntry(b []byte) (string, string, error) {
	fields, err := parseFields(b)
	if err != nil {
		return "", "", err
	}
	var key, value string
	for _, f := range fields {
		switch f.num {
		case entryKey:
			key = string(f.bytes)
		case entryValue:
			value = string(f.bytes)
		}
	}
	return key, value, nil
}

func parseGraph(b []byte, checkpoint *Checkpoint) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}

	for _, f := range fields {
		switch f.num {
		case graphInitializer:
			tensor, err := parseTensor(f.bytes)
			if err != nil {
				return err
			}
			checkpoint.Weights = append(checkpoint.Weights, tensor)
		case graphInput:
			name, dims, err := parseValueInfo(f.bytes)
			if err != nil {
				return err
			}
			if name == onnxInputName {
				checkpoint.ModelSpec.InputShape = dims
			}
		}
	}
	return nil
}

func parseTensor(b []byte) (WeightTensor, error) {
	fields, err := parseFields(b)
	if err != nil {
		return WeightTensor{}, err
	}

	var tensor WeightTensor
	for _, f := range fields {
		switch f.num {
		case tensorName:
			tensor.Name = string(f.bytes)
		case tensorDims:
			if f.typ == protowire.BytesType {
				for rest := f.bytes; len(rest) > 0; {
					v, n := protowire.ConsumeVarint(rest)
					if n < 0 {
						return tensor, protowire.ParseError(n)
					}
					tensor.Shape = append(tensor.Shape, int(v))
					rest = rest[n:]
				}
			} else {
				tensor.Shape = append(tensor.Shape, int(f.u64))
			}
		case tensorDataType:
			if f.u64 != onnxFloat {
				return tensor, fmt.Errorf("unsupported tensor data type %d", f.u64)
			}
		case tensorFloatData:
			if f.typ == protowire.BytesType {
				for rest := f.bytes; len(rest) > 0; {
					v, n := protowire.ConsumeFixed32(rest)
					if n < 0 {
						return tensor, protowire.ParseError(n)
					}
					tensor.Data = append(tensor.Data, math.Float32frombits(v))
					rest = rest[n:]
				}
			} else {
				tensor.Data = append(tensor.Data, math.Float32frombits(f.u32))
			}
		}
	}

	tensor.Layer = "dense"
	tensor.Type = "weight"
	if tensor.Name == denseBiasName {
		tensor.Type = "bias"
	}
	return tensor, nil
}

// parseValueInfo returns the name and the non-batch dimensions of a tensor value
func parseValueInfo(b []byte) (string, []int, error) {
	fields, err := parseFields(b)
	if err != nil {
		return "", nil, err
	}

	var name string
	var dims []int
	for _, f := range fields {
		switch f.num {
		case valueInfoName:
			name = string(f.bytes)
		case valueInfoType:
			dims, err = parseShape(f.bytes)
			if err != nil {
				return "", nil, err
			}
		}
	}
	return name, dims, nil
}

func parseShape(typ []byte) ([]int, error) {
	tensor, err := nestedMessage(typ, typeTensorType)
	if err != nil || tensor == nil {
		return nil, err
	}
	shape, err := nestedMessage(tensor, tensorShape)
	if err != nil || shape == nil {
		return nil, err
	}

	fields, err := parseFields(shape)
	if err != nil {
		return nil, err
	}

	var dims []int
	for _, f := range fields {
		if f.num != shapeDim {
			continue
		}
		dimFields, err := parseFields(f.bytes)
		if err != nil {
			return nil, err
		}
		for _, d := range dimFields {
			// Symbolic dimensions are the batch axis
			if d.num == dimValue {
				dims = append(dims, int(d.u64))
			}
		}
	}
	return dims, nil
}

func nestedMessage(b []byte, num protowire.Number) ([]byte, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if f.num == num && f.typ == protowire.BytesType {
			return f.bytes, nil
		}
	}
	return nil, nil
}
