package parse

// Sample is one labeled unit of numeric feature data.
type Sample struct {
	ID       string
	Features []float32
}

// Batch is an ordered collection of samples plus the format version it was
// written with. A Batch is immutable once decoded; whoever receives it from
// the Loader owns it.
type Batch struct {
	Version string
	Samples []Sample
}

// Validate checks the structural invariants a batch must satisfy before it is
// handed to a consumer: a version must be present and every sample must carry
// at least one feature.
func (b *Batch) Validate() error {
	if b == nil {
		return &ValidationError{Index: -1, Reason: "nil batch"}
	}
	if b.Version == "" {
		return &ValidationError{Index: -1, Reason: "missing version"}
	}
	for _, sample := range b.Samples {
		if len(sample.Features) == 0 {
			return &ValidationError{Index: -1, Reason: "empty features for sample " + sample.ID}
		}
	}
	return nil
}

// Len returns the number of samples in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Samples)
}

// Matrix stacks the sample features into a dense row-major matrix. Rows are
// copies, so the caller may modify them without touching the batch.
func (b *Batch) Matrix() [][]float32 {
	rows := make([][]float32, 0, b.Len())
	for _, sample := range b.Samples {
		row := make([]float32, len(sample.Features))
		copy(row, sample.Features)
		rows = append(rows, row)
	}
	return rows
}
