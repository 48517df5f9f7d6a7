package parse

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// NewJSONSource reads a .json file holding either a single batch object or a
// list of them: [{"version": ..., "samples": [...]}, {...}]. Each list element
// becomes one record. A file that does not parse as a list is kept as a single
// record so a malformed file fails per record at decode time.
func NewJSONSource(path string) (*MemorySource, error) {
	data, err := readBlob(path)
	if err != nil {
		return nil, err
	}
	blobs, err := splitJSONBatches(data)
	if err != nil {
		return NewMemorySource(data), nil
	}
	return NewMemorySource(blobs...), nil
}

func splitJSONBatches(data []byte) ([][]byte, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return [][]byte{data}, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("failed to parse json batch list: %w", err)
	}
	blobs := make([][]byte, len(list))
	for i, raw := range list {
		blobs[i] = raw
	}
	return blobs, nil
}

// EncodeJSONList serializes batches as a JSON list readable by NewJSONSource.
func EncodeJSONList(batches []*Batch) ([]byte, error) {
	list := make([]json.RawMessage, len(batches))
	for i, b := range batches {
		data, err := EncodeJSON(b)
		if err != nil {
			return nil, err
		}
		list[i] = data
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json batch list: %w", err)
	}
	return data, nil
}
