package batch

import (
	"errors"
	"iter"
	"slices"

	"github.com/Lllllllleong/documententityflow/internal/faults"
	"github.com/Lllllllleong/documententityflow/internal/records"
)

// Outcome is the result for one document: either a Table or an error.
type Outcome struct {
	ID        records.DocumentID
	Table     *records.Table
	PageCount int

	// Err is the internal failure. It is logged, never shown to users.
	Err error
	// Message is the user-safe description of Err.
	Message string
}

// OK reports whether the document produced a table.
func (o Outcome) OK() bool { return o.Err == nil && o.Table != nil }

// PagesIgnored is the number of pages after the first that were not read.
func (o Outcome) PagesIgnored() int {
	if o.PageCount <= 1 {
		return 0
	}
	return o.PageCount - 1
}

// Result holds exactly one Outcome per input document, in input order.
type Result struct {
	outcomes []Outcome
	index    map[records.DocumentID]int
}

func newResult(outcomes []Outcome) *Result {
	index := make(map[records.DocumentID]int, len(outcomes))
	for i, o := range outcomes {
		index[o.ID] = i
	}
	return &Result{outcomes: outcomes, index: index}
}

func (r *Result) Len() int { return len(r.outcomes) }

// All iterates the outcomes in input order.
func (r *Result) All() iter.Seq[Outcome] {
	return slices.Values(r.outcomes)
}

// Outcomes returns a copy of the outcomes in input order.
func (r *Result) Outcomes() []Outcome {
	return slices.Clone(r.outcomes)
}

// Get looks up the outcome of one document.
func (r *Result) Get(id records.DocumentID) (Outcome, bool) {
	i, ok := r.index[id]
	if !ok {
		return Outcome{}, false
	}
	return r.outcomes[i], true
}

// ByFilename returns every outcome whose document had the given filename,
// in intake order. Filenames are not unique within a batch.
func (r *Result) ByFilename(filename string) []Outcome {
	var out []Outcome
	for _, o := range r.outcomes {
		if o.ID.Filename == filename {
			out = append(out, o)
		}
	}
	return out
}

// Failures counts the documents that did not produce a table.
func (r *Result) Failures() int {
	n := 0
	for _, o := range r.outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

// SystemicFailures counts failures caused by the shared NER model rather
// than by the document.
func (r *Result) SystemicFailures() int {
	n := 0
	for _, o := range r.outcomes {
		if faults.IsSystemic(o.Err) {
			n++
		}
	}
	return n
}

// Cancelled counts documents that were not processed because the batch was abandoned.
func (r *Result) Cancelled() int {
	n := 0
	for _, o := range r.outcomes {
		if errors.Is(o.Err, faults.ErrCancelled) {
			n++
		}
	}
	return n
}
