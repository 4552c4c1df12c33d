// Package records holds the tabular form of extracted entities: one frozen,
// ordered table per source document.
package records

import (
	"fmt"
	"iter"
	"slices"
)

// Column headers used wherever a table is displayed or rendered.
const (
	ColumnEntity = "Entity"
	ColumnLabel  = "Label"
)

// Record is one recognized span of text and its category label.
type Record struct {
	Text  string `json:"entity"`
	Label string `json:"label"`
}

// DocumentID identifies a document inside a batch. Seq is the intake
// position, which keeps documents with the same filename apart.
type DocumentID struct {
	Seq      int    `json:"seq"`
	Filename string `json:"filename"`
}

// Key returns a string form of the id that is unique within a batch.
func (id DocumentID) Key() string {
	return fmt.Sprintf("%d:%s", id.Seq, id.Filename)
}

func (id DocumentID) String() string { return id.Key() }

// Table is the ordered set of records recovered from one document.
// A Table is never modified after NewTable returns it.
type Table struct {
	id   DocumentID
	rows []Record
}

// NewTable drains seq into a new table. Repeated records are kept as
// separate rows, in the order seq yields them.
func NewTable(id DocumentID, seq iter.Seq[Record]) *Table {
	var rows []Record
	if seq != nil {
		rows = slices.Collect(seq)
	}
	return &Table{id: id, rows: rows}
}

// FromRecords builds a table from a copy of rows.
func FromRecords(id DocumentID, rows []Record) *Table {
	return NewTable(id, slices.Values(rows))
}

func (t *Table) ID() DocumentID   { return t.id }
func (t *Table) Filename() string { return t.id.Filename }
func (t *Table) Len() int         { return len(t.rows) }

// Row returns the i'th record. It panics if i is out of range.
func (t *Table) Row(i int) Record { return t.rows[i] }

// All iterates the rows in insertion order.
func (t *Table) All() iter.Seq2[int, Record] {
	return slices.All(t.rows)
}

// Rows returns a copy of the rows.
func (t *Table) Rows() []Record {
	return slices.Clone(t.rows)
}

// Equal reports whether both tables hold the same records in the same order.
// Document identity is not compared.
func (t *Table) Equal(other *Table) bool {
	if t == nil || other == nil {
		return t == other
	}
	return slices.Equal(t.rows, other.rows)
}
