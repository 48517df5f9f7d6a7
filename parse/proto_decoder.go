package parse

import (
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoDecoder decodes a protobuf google.protobuf.Struct of the shape
//
//	{version: "1", samples: [{id: "a", features: [0.1, 0.2]}]}
type ProtoDecoder struct{}

func (ProtoDecoder) Decode(data []byte) (*Batch, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proto batch: %w", err)
	}

	batch := &Batch{}
	if v, ok := msg.Fields[versionKey]; ok {
		if _, isString := v.GetKind().(*structpb.Value_StringValue); !isString {
			return nil, fmt.Errorf("field %q must be a string", versionKey)
		}
		batch.Version = v.GetStringValue()
	}

	rawSamples, ok := msg.Fields["samples"]
	if !ok {
		return batch, nil
	}
	list := rawSamples.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("field %q must be a list", "samples")
	}
	for i, raw := range list.GetValues() {
		fields := raw.GetStructValue().GetFields()
		if fields == nil {
			return nil, fmt.Errorf("sample %d is not a struct", i)
		}
		sample := Sample{ID: strconv.Itoa(i)}
		if id, ok := fields[idColumn]; ok {
			sample.ID = protoValueString(id)
		}
		for j, f := range fields[featuresColumn].GetListValue().GetValues() {
			if _, isNumber := f.GetKind().(*structpb.Value_NumberValue); !isNumber {
				return nil, fmt.Errorf("sample %d feature %d is not a number", i, j)
			}
			sample.Features = append(sample.Features, float32(f.GetNumberValue()))
		}
		batch.Samples = append(batch.Samples, sample)
	}
	return batch, nil
}

func protoValueString(v *structpb.Value) string {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(kind.NumberValue, 'f', -1, 64)
	}
	return ""
}

// EncodeProto serializes b as a protobuf Struct readable by ProtoDecoder.
func EncodeProto(b *Batch) ([]byte, error) {
	samples := lo.Map(b.Samples, func(s Sample, _ int) *structpb.Value {
		features := lo.Map(s.Features, func(x float32, _ int) *structpb.Value {
			return structpb.NewNumberValue(float64(x))
		})
		return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			idColumn:       structpb.NewStringValue(s.ID),
			featuresColumn: structpb.NewListValue(&structpb.ListValue{Values: features}),
		}})
	})
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		"samples": structpb.NewListValue(&structpb.ListValue{Values: samples}),
	}}
	if b.Version != "" {
		msg.Fields[versionKey] = structpb.NewStringValue(b.Version)
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proto batch: %w", err)
	}
	return data, nil
}
