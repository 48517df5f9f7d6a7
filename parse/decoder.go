package parse

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Decoder turns one raw record blob into a Batch. Implementations do not
// validate; the Loader does that before a batch is exposed.
type Decoder interface {
	Decode(data []byte) (*Batch, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(data []byte) (*Batch, error)

func (f DecoderFunc) Decode(data []byte) (*Batch, error) {
	return f(data)
}

// Encoder serializes a Batch into a record blob.
type Encoder func(b *Batch) ([]byte, error)

// Format names a serialized batch layout.
type Format string

const (
	FormatArrow   Format = "arrow"
	FormatProto   Format = "proto"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// ZstdExtension marks a zstd-compressed blob.
const ZstdExtension = ".zst"

// Extension returns the file extension written for the format.
func (f Format) Extension() string {
	switch f {
	case FormatProto:
		return ".pb"
	default:
		return "." + string(f)
	}
}

// FormatFromName infers the format from a file name, ignoring a trailing
// .zst suffix.
func FormatFromName(name string) (Format, error) {
	name = strings.TrimSuffix(strings.ToLower(name), ZstdExtension)
	switch filepath.Ext(name) {
	case ".arrow", ".ipc", ".feather":
		return FormatArrow, nil
	case ".pb", ".binpb":
		return FormatProto, nil
	case ".json":
		return FormatJSON, nil
	case ".parquet":
		return FormatParquet, nil
	}
	return "", fmt.Errorf("unknown batch format for %q", name)
}

// ParseFormat parses a format name as given on the command line.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatArrow, FormatProto, FormatJSON, FormatParquet:
		return f, nil
	}
	return "", fmt.Errorf("unknown batch format %q", s)
}

// DecoderForFormat returns the blob decoder for f. Parquet files are streamed
// by ParquetSource as Arrow records, so they share the Arrow decoder.
func DecoderForFormat(f Format) (Decoder, error) {
	switch f {
	case FormatArrow, FormatParquet:
		return ArrowDecoder{}, nil
	case FormatProto:
		return ProtoDecoder{}, nil
	case FormatJSON:
		return JSONDecoder{}, nil
	}
	return nil, fmt.Errorf("no decoder for format %q", f)
}

// DecoderFor picks a decoder by file name; .zst names are decompressed first.
func DecoderFor(name string) (Decoder, error) {
	f, err := FormatFromName(name)
	if err != nil {
		return nil, err
	}
	dec, err := DecoderForFormat(f)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(strings.ToLower(name), ZstdExtension) {
		return ZstdDecoder{Inner: dec}, nil
	}
	return dec, nil
}

// EncoderFor returns the blob encoder for f. Parquet is a file layout rather
// than a per-batch blob and has no Encoder; see WriteParquet.
func EncoderFor(f Format) (Encoder, error) {
	switch f {
	case FormatArrow:
		return EncodeArrow, nil
	case FormatProto:
		return EncodeProto, nil
	case FormatJSON:
		return EncodeJSON, nil
	}
	return nil, fmt.Errorf("no blob encoder for format %q", f)
}
