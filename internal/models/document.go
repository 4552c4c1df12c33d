package models

import (
	"fmt"
	"time"
)

// Document statuses.
const (
	StatusExtracted = "EXTRACTED"
	StatusFailed    = "FAILED"
)

// DocumentRecord is the stored outcome of one document of a batch, kept in
// Firestore or SQLite. ID is derived from BatchID and Seq.
type DocumentRecord struct {
	ID                  string      `firestore:"-" json:"id"`
	BatchID             string      `firestore:"batchId" json:"batchId"`
	Seq                 int         `firestore:"seq" json:"seq"`
	Filename            string      `firestore:"filename" json:"filename"`
	FileHash            string      `firestore:"fileHash,omitempty" json:"fileHash,omitempty"`
	Status              string      `firestore:"status" json:"status"`
	ErrorMessage        string      `firestore:"errorMessage,omitempty" json:"error,omitempty"`
	PageCount           int         `firestore:"pageCount,omitempty" json:"pageCount,omitempty"`
	Entities            []EntityRow `firestore:"entities" json:"entities"`
	ReportURI           string      `firestore:"reportUri,omitempty" json:"reportUri,omitempty"`
	WorkflowExecutionID string      `firestore:"workflowExecutionId,omitempty" json:"workflowExecutionId,omitempty"` // For traceability
	CreatedAt           time.Time   `firestore:"createdAt" json:"createdAt"`
}

// RecordID is the storage key of the document at seq within a batch.
func RecordID(batchID string, seq int) string {
	return fmt.Sprintf("%s-%04d", batchID, seq)
}
