package records

import (
	"slices"
	"testing"
)

func TestNewTablePreservesOrderAndDuplicates(t *testing.T) {
	in := []Record{
		{Text: "Acme Corp", Label: "ORG"},
		{Text: "Jane Doe", Label: "PERSON"},
		{Text: "Acme Corp", Label: "ORG"},
	}
	table := FromRecords(DocumentID{Seq: 0, Filename: "cv.pdf"}, in)

	if table.Len() != 3 {
		t.Fatalf("Len = %d, want 3 (duplicates must not be collapsed)", table.Len())
	}
	for i, r := range table.All() {
		if r != in[i] {
			t.Errorf("row %d = %+v, want %+v", i, r, in[i])
		}
	}
}

func TestTableIsFrozen(t *testing.T) {
	in := []Record{{Text: "2020", Label: "DATE"}}
	table := FromRecords(DocumentID{Filename: "a.pdf"}, in)

	in[0].Text = "mutated"
	if table.Row(0).Text != "2020" {
		t.Error("table must copy its input")
	}

	rows := table.Rows()
	rows[0].Label = "mutated"
	if table.Row(0).Label != "DATE" {
		t.Error("Rows must return a copy")
	}
}

func TestNewTableNilSequence(t *testing.T) {
	table := NewTable(DocumentID{Filename: "blank.pdf"}, nil)
	if table.Len() != 0 {
		t.Errorf("Len = %d, want 0", table.Len())
	}
	for i, r := range table.All() {
		t.Errorf("All yielded row %d: %+v", i, r)
	}
}

func TestDocumentIDKeyDisambiguatesFilenames(t *testing.T) {
	a := DocumentID{Seq: 0, Filename: "resume.pdf"}
	b := DocumentID{Seq: 1, Filename: "resume.pdf"}
	if a.Key() == b.Key() {
		t.Fatalf("keys collide: %q", a.Key())
	}
	if a.Key() != "0:resume.pdf" {
		t.Errorf("Key = %q", a.Key())
	}
}

func TestTableEqual(t *testing.T) {
	rows := []Record{{Text: "Jane Doe", Label: "PERSON"}}
	a := FromRecords(DocumentID{Seq: 0, Filename: "a.pdf"}, rows)
	b := FromRecords(DocumentID{Seq: 5, Filename: "b.pdf"}, rows)
	if !a.Equal(b) {
		t.Error("tables with the same rows should be equal")
	}
	c := FromRecords(DocumentID{}, append(slices.Clone(rows), Record{Text: "x", Label: "y"}))
	if a.Equal(c) {
		t.Error("tables with different rows should differ")
	}
	var nilTable *Table
	if a.Equal(nilTable) {
		t.Error("non-nil table should not equal nil")
	}
}
