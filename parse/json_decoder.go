package parse

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
)

type jsonBatch struct {
	Version *string      `json:"version,omitempty"`
	Samples []jsonSample `json:"samples"`
}

type jsonSample struct {
	ID       any       `json:"id"`
	Features []float32 `json:"features"`
}

// JSONDecoder decodes batches of the form
// {"version": "1", "samples": [{"id": "a", "features": [0.1, 0.2]}]}.
// Sample ids may be strings or numbers.
type JSONDecoder struct{}

func (JSONDecoder) Decode(data []byte) (*Batch, error) {
	var raw jsonBatch
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse json batch: %w", err)
	}
	batch := &Batch{Samples: make([]Sample, 0, len(raw.Samples))}
	if raw.Version != nil {
		batch.Version = *raw.Version
	}
	for i, s := range raw.Samples {
		id := strconv.Itoa(i)
		switch v := s.ID.(type) {
		case string:
			id = v
		case float64:
			id = strconv.FormatFloat(v, 'f', -1, 64)
		case nil:
		default:
			return nil, fmt.Errorf("sample %d has unsupported id type %T", i, s.ID)
		}
		batch.Samples = append(batch.Samples, Sample{ID: id, Features: s.Features})
	}
	return batch, nil
}

// EncodeJSON serializes b in the layout JSONDecoder reads.
func EncodeJSON(b *Batch) ([]byte, error) {
	raw := jsonBatch{
		Samples: lo.Map(b.Samples, func(s Sample, _ int) jsonSample {
			return jsonSample{ID: s.ID, Features: s.Features}
		}),
	}
	if b.Version != "" {
		raw.Version = &b.Version
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json batch: %w", err)
	}
	return data, nil
}
