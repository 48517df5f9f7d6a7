package parse

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// ZstdDecoder decompresses a zstd blob before handing it to Inner, so a
// corrupt frame surfaces as a decode failure of that record.
type ZstdDecoder struct {
	Inner Decoder
}

func (d ZstdDecoder) Decode(data []byte) (*Batch, error) {
	raw, err := DecompressZstd(data)
	if err != nil {
		return nil, err
	}
	return d.Inner.Decode(raw)
}

// CompressZstd compresses a record blob into a single zstd frame.
func CompressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// DecompressZstd decompresses all frames in data.
func DecompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}
