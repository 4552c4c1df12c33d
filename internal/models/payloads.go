package models

import "github.com/Lllllllleong/documententityflow/internal/records"

// These structs define the JSON payloads exchanged with the upload page,
// the report renderer, and the Cloud Workflow.

// EntityRow is one row of an entity table as stored and sent over the wire.
type EntityRow struct {
	Entity string `firestore:"entity" json:"entity"`
	Label  string `firestore:"label" json:"label"`
}

// EntityRows converts a table to its wire form. The result is never nil.
func EntityRows(t *records.Table) []EntityRow {
	rows := []EntityRow{}
	if t == nil {
		return rows
	}
	for _, r := range t.All() {
		rows = append(rows, EntityRow{Entity: r.Text, Label: r.Label})
	}
	return rows
}

// Records converts wire rows back to records.
func Records(rows []EntityRow) []records.Record {
	out := make([]records.Record, len(rows))
	for i, r := range rows {
		out[i] = records.Record{Text: r.Entity, Label: r.Label}
	}
	return out
}

// ExtractResponse is the output of the entity-extractor function.
type ExtractResponse struct {
	BatchID   string            `json:"batchId"`
	Documents []DocumentOutcome `json:"documents"`
	Failures  int               `json:"failures"`
}

// DocumentOutcome is what the upload page shows for one document. Error is
// set instead of Entities when the document failed, and is safe to display.
type DocumentOutcome struct {
	ID             string      `json:"id"`
	Seq            int         `json:"seq"`
	Filename       string      `json:"filename"`
	Status         string      `json:"status"`
	Entities       []EntityRow `json:"entities,omitempty"`
	Error          string      `json:"error,omitempty"`
	PageCount      int         `json:"pageCount,omitempty"`
	PagesIgnored   bool        `json:"pagesIgnored,omitempty"`
	ReportFilename string      `json:"reportFilename,omitempty"`
}

// RenderRequest is the input for the report-renderer function. Either
// RecordID names a stored outcome, or Filename and Entities carry the table.
// Reports of unstored tables are saved under a fresh server-side prefix.
type RenderRequest struct {
	RecordID string      `json:"recordId,omitempty"`
	Filename string      `json:"filename,omitempty"`
	Entities []EntityRow `json:"entities,omitempty"`
	Save     bool        `json:"save,omitempty"`
}

// WorkflowArgument is the execution argument passed to the workflow.
type WorkflowArgument struct {
	DocumentID  string `json:"documentId"`
	EntityCount int    `json:"entityCount"`
	ReportURI   string `json:"reportUri,omitempty"`
}
