package parse

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

const (
	idColumn       = "id"
	featuresColumn = "features"
	versionKey     = "version"
)

var batchFields = []arrow.Field{
	{Name: idColumn, Type: arrow.BinaryTypes.String},
	{Name: featuresColumn, Type: arrow.ListOf(arrow.PrimitiveTypes.Float32)},
}

type BufferWriteSeeker struct {
	buf bytes.Buffer
	off int64
}

func (b *BufferWriteSeeker) Write(p []byte) (n int, err error) {
	n, err = b.buf.Write(p)
	b.off += int64(n)
	return
}

func (b *BufferWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = b.off + offset
	case io.SeekEnd:
		newOffset = int64(b.buf.Len()) + offset
	default:
		return 0, fmt.Errorf("invalid whence")
	}
	if newOffset < 0 || newOffset > int64(b.buf.Len()) {
		return 0, io.EOF
	}
	b.off = newOffset
	return b.off, nil
}

func (b *BufferWriteSeeker) Bytes() []byte {
	return b.buf.Bytes()
}

// batchSchema returns the Arrow schema batches are written with; the version
// travels in the schema metadata.
func batchSchema(version string) *arrow.Schema {
	md := arrow.NewMetadata(nil, nil)
	if version != "" {
		md = arrow.NewMetadata([]string{versionKey}, []string{version})
	}
	return arrow.NewSchema(batchFields, &md)
}

func schemaVersion(schema *arrow.Schema) string {
	md := schema.Metadata()
	if i := md.FindKey(versionKey); i >= 0 {
		return md.Values()[i]
	}
	return ""
}

// batchToRecord builds an Arrow record from b. The caller releases it.
func batchToRecord(b *Batch, mem memory.Allocator) arrow.Record {
	rb := array.NewRecordBuilder(mem, batchSchema(b.Version))
	defer rb.Release()

	ids := rb.Field(0).(*array.StringBuilder)
	lists := rb.Field(1).(*array.ListBuilder)
	values := lists.ValueBuilder().(*array.Float32Builder)
	for _, sample := range b.Samples {
		ids.Append(sample.ID)
		lists.Append(true)
		values.AppendValues(sample.Features, nil)
	}
	return rb.NewRecord()
}

// RecordToBytes writes record in the Arrow IPC file format. The record is not
// released.
func RecordToBytes(record arrow.Record) ([]byte, error) {
	bws := &BufferWriteSeeker{}
	fileWriter, err := ipc.NewFileWriter(
		bws,
		ipc.WithSchema(record.Schema()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow IPC writer: %w", err)
	}
	err = fileWriter.Write(record)
	if err != nil {
		return nil, fmt.Errorf("failed to write Arrow record: %w", err)
	}
	err = fileWriter.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to close Arrow IPC writer: %w", err)
	}
	return bws.Bytes(), nil
}

// EncodeArrow serializes b as a single-record Arrow IPC file.
func EncodeArrow(b *Batch) ([]byte, error) {
	record := batchToRecord(b, memory.DefaultAllocator)
	defer record.Release()
	return RecordToBytes(record)
}
