package parse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	parquetFile "github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
)

// ParquetSource streams a parquet file as Arrow IPC blobs of BatchSize rows.
// The batch version is taken from the file's key-value metadata.
type ParquetSource struct {
	path      string
	batchSize int64
	dropLast  bool
	version   string

	parquetFile *parquetFile.Reader
	reader      *pqarrow.FileReader
	rgReader    pqarrow.RecordReader
}

func NewParquetSource(path string, cfg LoaderConfig) (*ParquetSource, error) {
	file, err := parquetFile.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceNotFound, path, err)
	}

	batchSize := int64(cfg.BatchSize)
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	reader, err := pqarrow.NewFileReader(file, pqarrow.ArrowReadProperties{BatchSize: batchSize}, memory.DefaultAllocator)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}

	var version string
	if v := file.MetaData().KeyValueMetadata().FindValue(versionKey); v != nil {
		version = *v
	}

	source := &ParquetSource{
		path:        path,
		batchSize:   batchSize,
		dropLast:    cfg.DropLast,
		version:     version,
		parquetFile: file,
		reader:      reader,
	}
	if err := source.Reset(context.Background()); err != nil {
		source.Close()
		return nil, err
	}
	return source, nil
}

func (s *ParquetSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.rgReader == nil {
		return nil, ErrEndOfStream
	}
	if !s.rgReader.Next() {
		if err := s.rgReader.Err(); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read parquet record: %w", err)
		}
		return nil, ErrEndOfStream
	}
	record := s.rgReader.Record()
	if s.dropLast && record.NumRows() < s.batchSize {
		return nil, ErrEndOfStream
	}

	if s.version == "" || schemaVersion(record.Schema()) == s.version {
		return RecordToBytes(record)
	}
	md := arrow.NewMetadata([]string{versionKey}, []string{s.version})
	withVersion := array.NewRecord(arrow.NewSchema(record.Schema().Fields(), &md), record.Columns(), record.NumRows())
	defer withVersion.Release()
	return RecordToBytes(withVersion)
}

// Reset starts a fresh record reader from the first row group.
func (s *ParquetSource) Reset(ctx context.Context) error {
	if s.rgReader != nil {
		s.rgReader.Release()
		s.rgReader = nil
	}
	rgReader, err := s.reader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to get record reader: %w", err)
	}
	s.rgReader = rgReader
	return nil
}

// Close releases all resources
func (s *ParquetSource) Close() error {
	if s.rgReader != nil {
		s.rgReader.Release()
		s.rgReader = nil
	}
	if s.parquetFile != nil {
		err := s.parquetFile.Close()
		s.parquetFile = nil
		return err
	}
	return nil
}

// WriteParquet writes the samples of batches to w as a single row group.
// Batch boundaries are not preserved; readers re-chunk by their own batch
// size. The version is stored in the file's key-value metadata.
func WriteParquet(w io.Writer, version string, batches []*Batch) error {
	var samples []Sample
	for _, b := range batches {
		samples = append(samples, b.Samples...)
	}
	record := batchToRecord(&Batch{Version: version, Samples: samples}, memory.DefaultAllocator)
	defer record.Release()

	writer, err := pqarrow.NewFileWriter(record.Schema(), w, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	if err := writer.Write(record); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write parquet record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// WriteParquetFile creates path and writes batches into it.
func WriteParquetFile(path string, version string, batches []*Batch) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	// the parquet writer closes its sink on success
	defer f.Close()
	return WriteParquet(f, version, batches)
}
