package ner

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func newTestGazetteer(t *testing.T, caseSensitive bool) *Gazetteer {
	t.Helper()
	g, err := NewGazetteer(GazetteerConfig{
		CaseSensitive: caseSensitive,
		Entities: map[string][]string{
			"PERSON": {"Jane Doe"},
			"ORG":    {"Acme Corp", "Acme Corp Ltd", "Acme"},
			"DATE":   {"2020"},
		},
	})
	if err != nil {
		t.Fatalf("NewGazetteer: %v", err)
	}
	return g
}

func TestGazetteerRecognize(t *testing.T) {
	tests := []struct {
		name          string
		caseSensitive bool
		text          string
		want          []Span
	}{
		{
			name: "ordered scenario",
			text: "Jane Doe works at Acme Corp since 2020.",
			want: []Span{
				{Text: "Jane Doe", Label: "PERSON", Start: 0},
				{Text: "Acme Corp", Label: "ORG", Start: 18},
				{Text: "2020", Label: "DATE", Start: 34},
			},
		},
		{
			name: "longest match wins",
			text: "Acme Corp Ltd and Acme",
			want: []Span{
				{Text: "Acme Corp Ltd", Label: "ORG", Start: 0},
				{Text: "Acme", Label: "ORG", Start: 18},
			},
		},
		{
			name: "word boundaries are respected",
			text: "Acmeville 20201 XAcme",
			want: nil,
		},
		{
			name: "case insensitive returns text as written",
			text: "JANE DOE",
			want: []Span{{Text: "JANE DOE", Label: "PERSON", Start: 0}},
		},
		{
			name:          "case sensitive",
			caseSensitive: true,
			text:          "JANE DOE and Jane Doe",
			want:          []Span{{Text: "Jane Doe", Label: "PERSON", Start: 13}},
		},
		{
			name: "non-ascii neighbours",
			text: "é2020é (2020)",
			want: []Span{{Text: "2020", Label: "DATE", Start: 10}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGazetteer(t, tt.caseSensitive)
			got, err := g.Recognize(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Recognize: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Recognize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGazetteerDeduplicatesPhrases(t *testing.T) {
	g, err := NewGazetteer(GazetteerConfig{Entities: map[string][]string{
		"ORG":     {"Acme", "acme", " "},
		"COMPANY": {"ACME"},
	}})
	if err != nil {
		t.Fatalf("NewGazetteer: %v", err)
	}
	if g.Size() != 1 {
		t.Fatalf("Size = %d, want 1", g.Size())
	}
	spans, _ := g.Recognize(context.Background(), "Acme")
	if len(spans) != 1 || spans[0].Label != "COMPANY" {
		t.Errorf("expected the first label in sort order, got %+v", spans)
	}
}

func TestLoadGazetteer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gazetteer.yaml")
	content := `case_sensitive: true
entities:
  PERSON:
    - Jane Doe
  ORG: [Acme Corp]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := LoadGazetteer(path)
	if err != nil {
		t.Fatalf("LoadGazetteer: %v", err)
	}
	if g.Size() != 2 {
		t.Errorf("Size = %d, want 2", g.Size())
	}
	if !g.caseSensitive {
		t.Error("case_sensitive not loaded")
	}
}

func TestLoadGazetteerErrors(t *testing.T) {
	if _, err := LoadGazetteer("/nonexistent/gazetteer.yaml"); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("entities: [not, a, map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGazetteer(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestGazetteerHonoursCancellation(t *testing.T) {
	g := newTestGazetteer(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Recognize(ctx, "Jane Doe"); err == nil {
		t.Error("expected context error")
	}
}
