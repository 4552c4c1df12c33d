package services

import (
	"time"

	"github.com/Lllllllleong/documententityflow/internal/batch"
	"github.com/Lllllllleong/documententityflow/internal/models"
	"github.com/Lllllllleong/documententityflow/internal/report"
)

// recordFor builds the stored form of one batch outcome.
func recordFor(batchID string, o batch.Outcome, fileHash string, now time.Time) models.DocumentRecord {
	rec := models.DocumentRecord{
		ID:        models.RecordID(batchID, o.ID.Seq),
		BatchID:   batchID,
		Seq:       o.ID.Seq,
		Filename:  o.ID.Filename,
		FileHash:  fileHash,
		PageCount: o.PageCount,
		Entities:  models.EntityRows(o.Table),
		CreatedAt: now,
	}
	if o.OK() {
		rec.Status = models.StatusExtracted
	} else {
		rec.Status = models.StatusFailed
		rec.ErrorMessage = o.Message
	}
	return rec
}

// outcomeFor builds the display form of one batch outcome.
func outcomeFor(rec models.DocumentRecord, o batch.Outcome) models.DocumentOutcome {
	out := models.DocumentOutcome{
		ID:        rec.ID,
		Seq:       rec.Seq,
		Filename:  rec.Filename,
		Status:    rec.Status,
		PageCount: rec.PageCount,
	}
	if !o.OK() {
		out.Error = o.Message
		return out
	}
	out.Entities = rec.Entities
	out.PagesIgnored = o.PagesIgnored() > 0
	if o.Table.Len() > 0 {
		out.ReportFilename = report.ReportFilename(rec.Filename)
	}
	return out
}

// storedOutcome rebuilds the display form of a stored record.
func storedOutcome(rec models.DocumentRecord) models.DocumentOutcome {
	out := models.DocumentOutcome{
		ID:        rec.ID,
		Seq:       rec.Seq,
		Filename:  rec.Filename,
		Status:    rec.Status,
		PageCount: rec.PageCount,
	}
	if rec.Status != models.StatusExtracted {
		out.Error = rec.ErrorMessage
		return out
	}
	out.Entities = rec.Entities
	out.PagesIgnored = rec.PageCount > 1
	if len(rec.Entities) > 0 {
		out.ReportFilename = report.ReportFilename(rec.Filename)
	}
	return out
}
