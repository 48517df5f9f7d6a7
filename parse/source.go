package parse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source is an ordered stream of raw record blobs. A Source is driven by a
// single goroutine at a time and is not safe for concurrent use.
type Source interface {
	// Next returns the next record blob, or ErrEndOfStream once exhausted.
	Next(ctx context.Context) ([]byte, error)

	// Reset rewinds the stream to its first record.
	Reset(ctx context.Context) error

	// Close releases any resources held by the source.
	Close() error
}

const fileScheme = "file://"

// OpenSource resolves identifier to a Source and the Decoder for its blobs.
//
// Identifiers are either synthetic://... URIs (see NewSyntheticSource) or
// paths, optionally prefixed with file://. A directory is read as one blob
// per file, a .parquet file is streamed record batch by record batch, a .json
// file may hold a list of batches, and any other file is a single static blob
// whose format follows its extension.
func OpenSource(identifier string, cfg LoaderConfig) (Source, Decoder, error) {
	if strings.HasPrefix(identifier, SyntheticScheme) {
		src, err := NewSyntheticSource(identifier, cfg)
		if err != nil {
			return nil, nil, err
		}
		return src, ArrowDecoder{}, nil
	}

	path := strings.TrimPrefix(identifier, fileScheme)
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrSourceNotFound, identifier, err)
	}
	if info.IsDir() {
		return NewDirSource(path)
	}

	format, err := FormatFromName(path)
	if err != nil {
		return nil, nil, err
	}
	if format == FormatParquet {
		src, err := NewParquetSource(path, cfg)
		if err != nil {
			return nil, nil, err
		}
		return src, ArrowDecoder{}, nil
	}

	dec, err := DecoderFor(path)
	if err != nil {
		return nil, nil, err
	}
	if format == FormatJSON && !strings.HasSuffix(strings.ToLower(path), ZstdExtension) {
		src, err := NewJSONSource(path)
		if err != nil {
			return nil, nil, err
		}
		return src, dec, nil
	}
	src, err := NewFileSource(path)
	if err != nil {
		return nil, nil, err
	}
	return src, dec, nil
}

// MemorySource yields a fixed list of blobs in order.
type MemorySource struct {
	blobs [][]byte
	pos   int
}

func NewMemorySource(blobs ...[]byte) *MemorySource {
	return &MemorySource{blobs: blobs}
}

func (s *MemorySource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.blobs) {
		return nil, ErrEndOfStream
	}
	blob := s.blobs[s.pos]
	s.pos++
	return blob, nil
}

func (s *MemorySource) Reset(context.Context) error {
	s.pos = 0
	return nil
}

// Close releases all resources (nothing to do for memory sources)
func (s *MemorySource) Close() error {
	return nil
}

// FileSource is a single static blob read once when the source is opened.
type FileSource struct {
	path     string
	data     []byte
	consumed bool
}

func NewFileSource(path string) (*FileSource, error) {
	data, err := readBlob(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{path: path, data: data}, nil
}

func (s *FileSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.consumed || s.data == nil {
		return nil, ErrEndOfStream
	}
	s.consumed = true
	return s.data, nil
}

func (s *FileSource) Reset(context.Context) error {
	s.consumed = false
	return nil
}

func (s *FileSource) Close() error {
	s.data = nil
	return nil
}

// DirSource treats every file of a directory as one record, in file name
// order. All files must share a single format; files of other formats are
// ignored.
type DirSource struct {
	dir   string
	files []string
	pos   int
}

// NewDirSource lists dir and returns the source with the decoder matching the
// format of its first recognizable file.
func NewDirSource(dir string) (*DirSource, Decoder, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrSourceNotFound, dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var (
		format     Format
		compressed bool
		files      []string
	)
	for _, name := range names {
		f, err := FormatFromName(name)
		if err != nil || f == FormatParquet {
			continue
		}
		z := strings.HasSuffix(strings.ToLower(name), ZstdExtension)
		if format == "" {
			format, compressed = f, z
		}
		if f != format || z != compressed {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w: %s: no batch files found", ErrSourceNotFound, dir)
	}

	dec, err := DecoderFor(files[0])
	if err != nil {
		return nil, nil, err
	}
	return &DirSource{dir: dir, files: files}, dec, nil
}

func (s *DirSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.files) {
		return nil, ErrEndOfStream
	}
	path := s.files[s.pos]
	s.pos++
	return readBlob(path)
}

func (s *DirSource) Reset(context.Context) error {
	s.pos = 0
	return nil
}

func (s *DirSource) Close() error {
	return nil
}

func readBlob(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceNotFound, path, err)
	}
	return data, nil
}
