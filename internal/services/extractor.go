package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/documententityflow/internal/batch"
	"github.com/Lllllllleong/documententityflow/internal/models"
	"github.com/Lllllllleong/documententityflow/internal/validation"
)

var ErrBatchNotFound = errors.New("batch not found")

// ExtractorFunction handles batch uploads: every document is run through
// the pipeline and its outcome is stored and returned for display.
type ExtractorFunction struct {
	pipeline *Pipeline
}

// NewExtractor creates an ExtractorFunction configured from the environment.
func NewExtractor(ctx context.Context) (*ExtractorFunction, error) {
	config, err := loadPipelineConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	pipeline, err := newPipelineFromConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	return NewExtractorFunction(pipeline), nil
}

func NewExtractorFunction(pipeline *Pipeline) *ExtractorFunction {
	return &ExtractorFunction{pipeline: pipeline}
}

// Limits are the upload limits the function enforces.
func (f *ExtractorFunction) Limits() validation.Limits { return f.pipeline.Limits }

// Process runs one batch. A batch with too many documents is rejected as a
// whole; every other failure is reported per document in the response.
func (f *ExtractorFunction) Process(ctx context.Context, uploads []batch.Document) (*models.ExtractResponse, error) {
	if err := f.pipeline.Limits.CheckBatch(len(uploads)); err != nil {
		return nil, err
	}

	batchID := newBatchID()
	logCtx := slog.With("batchId", batchID, "documents", len(uploads))
	logCtx.Info("Processing upload batch.")

	result, err := f.pipeline.Coordinator.Process(ctx, uploads)
	if err != nil {
		logCtx.Warn("Batch abandoned before completion.", "error", err)
		return nil, fmt.Errorf("batch %s: %w", batchID, err)
	}

	resp := &models.ExtractResponse{
		BatchID:   batchID,
		Documents: make([]models.DocumentOutcome, 0, result.Len()),
		Failures:  result.Failures(),
	}
	now := time.Now().UTC()
	for o := range result.All() {
		rec := recordFor(batchID, o, calculateHash(uploads[o.ID.Seq].Data), now)
		if err := f.pipeline.Store.Save(ctx, rec); err != nil {
			// The outcome is still returned; only its history is lost.
			logCtx.Error("Failed to save document record.", "documentId", rec.ID, "error", err)
		}
		resp.Documents = append(resp.Documents, outcomeFor(rec, o))
	}

	logCtx.Info("Upload batch complete.", "failures", resp.Failures)
	return resp, nil
}

// Batch returns the stored outcomes of an earlier batch in upload order.
func (f *ExtractorFunction) Batch(ctx context.Context, batchID string) (*models.ExtractResponse, error) {
	recs, err := f.pipeline.Store.ListBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch %s: %w", batchID, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}

	resp := &models.ExtractResponse{
		BatchID:   batchID,
		Documents: make([]models.DocumentOutcome, 0, len(recs)),
	}
	for _, rec := range recs {
		if rec.Status != models.StatusExtracted {
			resp.Failures++
		}
		resp.Documents = append(resp.Documents, storedOutcome(rec))
	}
	return resp, nil
}

// Close releases the pipeline's clients.
func (f *ExtractorFunction) Close() error {
	return f.pipeline.Close()
}
