// Package ner maps the output of a named-entity recognition model onto
// ordered entity records.
package ner

import (
	"cmp"
	"context"
	"iter"
	"log/slog"
	"slices"
	"strings"

	"github.com/Lllllllleong/documententityflow/internal/faults"
	"github.com/Lllllllleong/documententityflow/internal/records"
)

// Span is one entity reported by a Model. Start is the byte offset of Text
// inside the input, or -1 when the model does not report offsets.
type Span struct {
	Text  string
	Label string
	Start int
}

// Model is a loaded NER capability. Implementations must be safe for
// concurrent use; one Model is shared by every document in the process.
type Model interface {
	Recognize(ctx context.Context, text string) ([]Span, error)
}

// Extractor turns text into entity records using a Model.
type Extractor struct {
	model  Model
	logger *slog.Logger
}

// NewExtractor creates an Extractor backed by model.
func NewExtractor(model Model) *Extractor {
	return &Extractor{model: model, logger: slog.Default()}
}

type placedSpan struct {
	rec   records.Record
	start int
}

// Extract runs the model over text and returns its entities in order of
// first occurrence. Spans that are not verbatim substrings of text are
// dropped. The returned sequence can be iterated any number of times.
func (e *Extractor) Extract(ctx context.Context, text string) (iter.Seq[records.Record], error) {
	if text == "" {
		return slices.Values([]records.Record(nil)), nil
	}

	spans, err := e.model.Recognize(ctx, text)
	if err != nil {
		return nil, &faults.ExtractionError{Err: err}
	}

	placed := make([]placedSpan, 0, len(spans))
	cursor := make(map[string]int)
	for _, s := range spans {
		if s.Text == "" {
			continue
		}
		start := s.Start
		if start < 0 || start+len(s.Text) > len(text) || text[start:start+len(s.Text)] != s.Text {
			start = locate(text, s.Text, cursor[s.Text])
		}
		if start < 0 {
			e.logger.Warn("Dropping entity not found verbatim in text.", "entity", s.Text, "label", s.Label)
			continue
		}
		cursor[s.Text] = start + len(s.Text)
		placed = append(placed, placedSpan{
			rec:   records.Record{Text: s.Text, Label: s.Label},
			start: start,
		})
	}

	slices.SortStableFunc(placed, func(a, b placedSpan) int {
		return cmp.Compare(a.start, b.start)
	})

	recs := make([]records.Record, len(placed))
	for i, p := range placed {
		recs[i] = p.rec
	}
	return slices.Values(recs), nil
}

// locate finds the next occurrence of s at or after from. A model that
// reports an entity more often than the text contains it gets -1 for the
// extra reports.
func locate(text, s string, from int) int {
	if from > len(text) {
		return -1
	}
	if i := strings.Index(text[from:], s); i >= 0 {
		return from + i
	}
	return -1
}
