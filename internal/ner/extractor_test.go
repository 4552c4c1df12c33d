package ner

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/Lllllllleong/documententityflow/internal/faults"
	"github.com/Lllllllleong/documententityflow/internal/records"
)

type fakeModel struct {
	spans []Span
	err   error
	calls int
}

func (f *fakeModel) Recognize(ctx context.Context, text string) ([]Span, error) {
	f.calls++
	return f.spans, f.err
}

func collect(t *testing.T, e *Extractor, text string) []records.Record {
	t.Helper()
	seq, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return slices.Collect(seq)
}

func TestExtractOrdersByFirstOccurrence(t *testing.T) {
	text := "Jane Doe works at Acme Corp since 2020."
	model := &fakeModel{spans: []Span{
		{Text: "2020", Label: "DATE", Start: -1},
		{Text: "Jane Doe", Label: "PERSON", Start: -1},
		{Text: "Acme Corp", Label: "ORG", Start: -1},
	}}

	got := collect(t, NewExtractor(model), text)
	want := []records.Record{
		{Text: "Jane Doe", Label: "PERSON"},
		{Text: "Acme Corp", Label: "ORG"},
		{Text: "2020", Label: "DATE"},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for _, r := range got {
		if !strings.Contains(text, r.Text) {
			t.Errorf("%q is not a substring of the text", r.Text)
		}
	}
}

func TestExtractKeepsRepeatedOccurrences(t *testing.T) {
	text := "Acme hired Bob. Bob left Acme."
	model := &fakeModel{spans: []Span{
		{Text: "Acme", Label: "ORG", Start: -1},
		{Text: "Bob", Label: "PERSON", Start: -1},
		{Text: "Bob", Label: "PERSON", Start: -1},
		{Text: "Acme", Label: "ORG", Start: -1},
	}}

	got := collect(t, NewExtractor(model), text)
	want := []records.Record{
		{Text: "Acme", Label: "ORG"},
		{Text: "Bob", Label: "PERSON"},
		{Text: "Bob", Label: "PERSON"},
		{Text: "Acme", Label: "ORG"},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestExtractDropsNonVerbatimSpans(t *testing.T) {
	text := "Jane Doe joined ACME."
	model := &fakeModel{spans: []Span{
		{Text: "Jane Doe", Label: "PERSON", Start: 0},
		{Text: "Acme", Label: "ORG", Start: -1},        // wrong case
		{Text: "Jane Doe", Label: "PERSON", Start: -1}, // reported twice, present once
		{Text: "joined", Label: "EVENT", Start: 400},   // bad offset, still found
		{Text: "", Label: "EMPTY", Start: -1},          // empty span
	}}

	got := collect(t, NewExtractor(model), text)
	want := []records.Record{
		{Text: "Jane Doe", Label: "PERSON"},
		{Text: "joined", Label: "EVENT"},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestExtractEmptyTextSkipsModel(t *testing.T) {
	model := &fakeModel{err: errors.New("must not be called")}
	got := collect(t, NewExtractor(model), "")
	if len(got) != 0 {
		t.Errorf("got %+v, want no records", got)
	}
	if model.calls != 0 {
		t.Errorf("model called %d times", model.calls)
	}
}

func TestExtractWrapsModelFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("model unavailable")}
	_, err := NewExtractor(model).Extract(context.Background(), "some text")
	if err == nil {
		t.Fatal("expected error")
	}
	var ee *faults.ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *faults.ExtractionError, got %T", err)
	}
	if !faults.IsSystemic(err) {
		t.Error("model failures should be systemic")
	}
}

func TestExtractSequenceIsRestartable(t *testing.T) {
	model := &fakeModel{spans: []Span{{Text: "Acme", Label: "ORG", Start: 0}}}
	seq, err := NewExtractor(model).Extract(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) || len(first) != 1 {
		t.Errorf("iterations differ: %v vs %v", first, second)
	}
}
