package parse

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/samber/lo"
)

// ArrowDecoder decodes Arrow IPC files. Every record in the file contributes
// its rows as samples: the "features" column must be a list of float32 or
// float64 values, the optional "id" column may be of any type. The batch
// version is read from the schema metadata key "version".
type ArrowDecoder struct {
	Mem memory.Allocator
}

func (d ArrowDecoder) Decode(data []byte) (*Batch, error) {
	mem := d.Mem
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	reader, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("failed to open arrow ipc file: %w", err)
	}
	defer reader.Close()

	batch := &Batch{Version: schemaVersion(reader.Schema())}
	for i := 0; i < reader.NumRecords(); i++ {
		record, err := reader.Record(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read arrow record %d: %w", i, err)
		}
		batch.Samples, err = appendRecordSamples(batch.Samples, record)
		if err != nil {
			return nil, err
		}
	}
	return batch, nil
}

// appendRecordSamples copies the rows of record out of Arrow memory, so the
// resulting samples stay valid after the record is released.
func appendRecordSamples(samples []Sample, record arrow.Record) ([]Sample, error) {
	schema := record.Schema()
	featureIdx := schema.FieldIndices(featuresColumn)
	if len(featureIdx) == 0 {
		return nil, fmt.Errorf("arrow record has no %q column", featuresColumn)
	}
	featureCol := record.Column(featureIdx[0])
	lists, ok := featureCol.(array.ListLike)
	if !ok {
		return nil, fmt.Errorf("column %q has type %s, expected a list", featuresColumn, featureCol.DataType())
	}
	values, err := floatValues(lists.ListValues())
	if err != nil {
		return nil, err
	}

	var ids arrow.Array
	if idIdx := schema.FieldIndices(idColumn); len(idIdx) > 0 {
		ids = record.Column(idIdx[0])
	}

	for row := 0; row < int(record.NumRows()); row++ {
		id := strconv.Itoa(len(samples))
		if ids != nil && ids.IsValid(row) {
			id = ids.ValueStr(row)
		}
		var features []float32
		if lists.IsValid(row) {
			start, end := lists.ValueOffsets(row)
			features = make([]float32, end-start)
			copy(features, values[start:end])
		}
		samples = append(samples, Sample{ID: id, Features: features})
	}
	return samples, nil
}

func floatValues(arr arrow.Array) ([]float32, error) {
	switch values := arr.(type) {
	case *array.Float32:
		return values.Float32Values(), nil
	case *array.Float64:
		return lo.Map(values.Float64Values(), func(x float64, _ int) float32 {
			return float32(x)
		}), nil
	}
	return nil, fmt.Errorf("column %q has element type %s, expected float32 or float64", featuresColumn, arr.DataType())
}
