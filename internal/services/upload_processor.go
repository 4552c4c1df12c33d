package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/documententityflow/internal/batch"
	"github.com/Lllllllleong/documententityflow/internal/faults"
	"github.com/Lllllllleong/documententityflow/internal/gcp"
	"github.com/Lllllllleong/documententityflow/internal/models"
	"github.com/Lllllllleong/documententityflow/internal/records"
	"github.com/Lllllllleong/documententityflow/internal/report"
	"github.com/Lllllllleong/documententityflow/internal/validation"
)

type UploadProcessorConfig struct {
	ProjectID        string
	ReportsBucket    string
	WorkflowID       string
	WorkflowLocation string
}

// ObjectReader downloads uploaded documents. *gcp.ObjectReader implements it.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, object string, maxBytes int64) ([]byte, error)
}

// WorkflowTrigger starts the downstream workflow. *gcp.WorkflowLauncher implements it.
type WorkflowTrigger interface {
	Launch(ctx context.Context, argument any) (string, error)
}

// UploadProcessorFunction extracts entities from PDFs dropped into a bucket.
type UploadProcessorFunction struct {
	pipeline *Pipeline
	reader   ObjectReader
	writer   ArtifactWriter
	trigger  WorkflowTrigger
	renderer *report.Renderer
	config   UploadProcessorConfig
}

type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func NewUploadProcessor(ctx context.Context) (*UploadProcessorFunction, error) {
	pipelineConfig, err := loadPipelineConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	config := UploadProcessorConfig{
		ProjectID:        pipelineConfig.ProjectID,
		ReportsBucket:    gcp.GetEnv("REPORTS_BUCKET", ""),
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", ""),
	}
	if config.ReportsBucket == "" {
		return nil, fmt.Errorf("REPORTS_BUCKET environment variable must be set")
	}

	pipeline, err := newPipelineFromConfig(ctx, pipelineConfig)
	if err != nil {
		return nil, err
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	var trigger WorkflowTrigger
	if config.WorkflowID != "" {
		launcher, err := gcp.NewWorkflowLauncher(ctx, config.ProjectID, config.WorkflowLocation, config.WorkflowID)
		if err != nil {
			return nil, err
		}
		trigger = launcher
	}

	f := NewUploadProcessorFunction(pipeline, gcp.NewObjectReader(storageClient),
		gcp.NewBucketWriter(storageClient, config.ReportsBucket), trigger)
	f.config = config
	slog.Info("Upload processor initialized.", "reportsBucket", config.ReportsBucket, "workflowId", config.WorkflowID)
	return f, nil
}

// NewUploadProcessorFunction creates an UploadProcessorFunction. trigger may be nil.
func NewUploadProcessorFunction(pipeline *Pipeline, reader ObjectReader, writer ArtifactWriter, trigger WorkflowTrigger) *UploadProcessorFunction {
	return &UploadProcessorFunction{
		pipeline: pipeline,
		reader:   reader,
		writer:   writer,
		trigger:  trigger,
		renderer: report.NewRenderer(),
	}
}

// Process handles one finalized object. Documents that are too large or
// cannot be read are recorded as FAILED and acknowledged; infrastructure
// failures are returned so the event is retried.
func (f *UploadProcessorFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !strings.EqualFold(path.Ext(e.Name), ".pdf") {
		logCtx.Info("Not a PDF. Skipping.")
		return nil
	}
	logCtx.Info("Processing new GCS object.")

	data, err := f.reader.ReadObject(ctx, e.Bucket, e.Name, f.pipeline.Limits.MaxUploadBytes)
	var docErr *validation.DocumentError
	if errors.As(err, &docErr) {
		logCtx.Warn("Document rejected before download.", "error", err)
		f.saveRejected(ctx, logCtx, path.Base(e.Name), err)
		return nil
	}
	if err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}

	fileHash := calculateHash(data)
	logCtx = logCtx.With("fileHash", fileHash)

	existing, isDuplicate, err := f.pipeline.Store.FindByHash(ctx, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if isDuplicate {
		logCtx.Info("Duplicate file detected. Skipping.", "existingDocId", existing.ID)
		return nil // Clean exit for a duplicate
	}

	batchID := newBatchID()
	result, err := f.pipeline.Coordinator.Process(ctx, []batch.Document{{Filename: path.Base(e.Name), Data: data}})
	if err != nil {
		logCtx.Error("Processing abandoned.", "error", err)
		return err
	}
	outcome := result.Outcomes()[0]
	rec := recordFor(batchID, outcome, fileHash, time.Now().UTC())
	logCtx = logCtx.With("documentId", rec.ID)

	if !outcome.OK() {
		if faults.IsSystemic(outcome.Err) {
			return f.handleError(ctx, logCtx, rec, "entity extraction failed", outcome.Err)
		}
		logCtx.Warn("Document could not be processed.", "error", outcome.Err)
		f.saveRecord(ctx, logCtx, rec)
		return nil
	}

	if err := f.saveReport(ctx, logCtx, outcome, &rec); err != nil {
		return err
	}
	f.saveRecord(ctx, logCtx, rec)

	if f.trigger != nil {
		if err := f.triggerWorkflow(ctx, logCtx, &rec, outcome.Table.Len()); err != nil {
			return err
		}
	}

	logCtx.Info("Document processed.", "entities", outcome.Table.Len(), "reportUri", rec.ReportURI)
	return nil
}

// saveRejected records a document that never reached the pipeline.
func (f *UploadProcessorFunction) saveRejected(ctx context.Context, logCtx *slog.Logger, filename string, cause error) {
	outcome := batch.Outcome{
		ID:      records.DocumentID{Filename: filename},
		Err:     cause,
		Message: faults.UserMessage(cause),
	}
	rec := recordFor(newBatchID(), outcome, "", time.Now().UTC())
	f.saveRecord(ctx, logCtx.With("documentId", rec.ID), rec)
}

func (f *UploadProcessorFunction) saveReport(ctx context.Context, logCtx *slog.Logger, outcome batch.Outcome, rec *models.DocumentRecord) error {
	art, err := f.renderer.Render(outcome.Table)
	if errors.Is(err, report.ErrEmptyTable) {
		logCtx.Info("No entities found. No report written.")
		return nil
	}
	if err != nil {
		return f.handleError(ctx, logCtx, *rec, "failed to render report", err)
	}

	objectName := reportObjectName(rec.BatchID, rec.Seq, art.Filename)
	if err := f.writer.Write(ctx, objectName, report.ContentType, art.Data); err != nil {
		return f.handleError(ctx, logCtx, *rec, "failed to upload report", err)
	}
	rec.ReportURI = f.writer.URI(objectName)
	return nil
}

func (f *UploadProcessorFunction) triggerWorkflow(ctx context.Context, logCtx *slog.Logger, rec *models.DocumentRecord, entityCount int) error {
	logCtx.Info("Triggering workflow.")
	executionID, err := f.trigger.Launch(ctx, models.WorkflowArgument{
		DocumentID:  rec.ID,
		EntityCount: entityCount,
		ReportURI:   rec.ReportURI,
	})
	if err != nil {
		return f.handleError(ctx, logCtx, *rec, "failed to trigger workflow execution", err)
	}
	rec.WorkflowExecutionID = executionID
	f.saveRecord(ctx, logCtx, *rec)
	return nil
}

func (f *UploadProcessorFunction) saveRecord(ctx context.Context, logCtx *slog.Logger, rec models.DocumentRecord) {
	if err := f.pipeline.Store.Save(ctx, rec); err != nil {
		logCtx.Error("Failed to save document record.", "error", err)
	}
}

func (f *UploadProcessorFunction) handleError(ctx context.Context, logCtx *slog.Logger, rec models.DocumentRecord, message string, originalErr error) error {
	logCtx.Error(message, "error", originalErr)
	rec.Status = models.StatusFailed
	rec.ErrorMessage = faults.UserMessage(originalErr)
	if err := f.pipeline.Store.Save(ctx, rec); err != nil {
		logCtx.Error("CRITICAL: Failed to record FAILED status after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}
