package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/documententityflow/internal/gcp"
	"github.com/Lllllllleong/documententityflow/internal/models"
	"github.com/Lllllllleong/documententityflow/internal/records"
	"github.com/Lllllllleong/documententityflow/internal/report"
	"github.com/Lllllllleong/documententityflow/internal/store"
)

var (
	ErrInvalidRequest = errors.New("invalid render request")
	ErrRecordNotFound = errors.New("document record not found")
)

// ArtifactWriter stores rendered reports. *gcp.BucketWriter implements it.
// Write never overwrites; an existing object yields gcp.ErrObjectExists.
type ArtifactWriter interface {
	Write(ctx context.Context, objectName, contentType string, content []byte) error
	URI(objectName string) string
}

// ReportFunction renders the downloadable report for one document.
type ReportFunction struct {
	renderer *report.Renderer
	store    store.Store
	writer   ArtifactWriter
}

// NewReport creates a ReportFunction configured from the environment.
// REPORTS_BUCKET is optional; without it reports are only returned.
func NewReport(ctx context.Context) (*ReportFunction, error) {
	config, err := loadPipelineConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	st, err := openStore(ctx, config)
	if err != nil {
		return nil, err
	}
	bw, err := newBucketWriter(ctx, gcp.GetEnv("REPORTS_BUCKET", ""))
	if err != nil {
		return nil, err
	}

	var writer ArtifactWriter
	if bw != nil {
		writer = bw
	}
	slog.Info("Report renderer initialized.", "storeBackend", config.StoreBackend, "saveReports", writer != nil)
	return NewReportFunction(st, writer), nil
}

// NewReportFunction creates a ReportFunction. st and writer may be nil.
func NewReportFunction(st store.Store, writer ArtifactWriter) *ReportFunction {
	if st == nil {
		st = store.Nop{}
	}
	return &ReportFunction{renderer: report.NewRenderer(), store: st, writer: writer}
}

// Process renders the report described by req. It returns the artifact and,
// when req.Save is set and a bucket is configured, the gs:// URI it was
// stored under.
func (f *ReportFunction) Process(ctx context.Context, req *models.RenderRequest) (*report.Artifact, string, error) {
	rec, err := f.resolve(ctx, req)
	if err != nil {
		return nil, "", err
	}
	logCtx := slog.With("documentId", rec.ID, "filename", rec.Filename)

	table := records.FromRecords(records.DocumentID{Seq: rec.Seq, Filename: rec.Filename}, models.Records(rec.Entities))
	art, err := f.renderer.Render(table)
	if err != nil {
		logCtx.Warn("Report not rendered.", "error", err)
		return nil, "", err
	}
	logCtx.Info("Report rendered.", "reportFilename", art.Filename, "bytes", len(art.Data))

	if !req.Save || f.writer == nil {
		return art, "", nil
	}
	uri, err := f.save(ctx, rec, art)
	if err != nil {
		logCtx.Error("Failed to save report.", "error", err)
		return nil, "", err
	}
	if rec.ID != "" {
		rec.ReportURI = uri
		if err := f.store.Save(ctx, rec); err != nil {
			logCtx.Error("Failed to record report URI.", "error", err)
		}
	}
	return art, uri, nil
}

// resolve returns the stored record named by req, or a transient record
// built from the rows in req.
func (f *ReportFunction) resolve(ctx context.Context, req *models.RenderRequest) (models.DocumentRecord, error) {
	if req == nil {
		return models.DocumentRecord{}, fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}
	if req.RecordID != "" {
		rec, found, err := f.store.Get(ctx, req.RecordID)
		if err != nil {
			return models.DocumentRecord{}, fmt.Errorf("failed to load record %s: %w", req.RecordID, err)
		}
		if !found {
			return models.DocumentRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, req.RecordID)
		}
		return rec, nil
	}
	if strings.TrimSpace(req.Filename) == "" {
		return models.DocumentRecord{}, fmt.Errorf("%w: filename or recordId is required", ErrInvalidRequest)
	}
	// Unstored tables get their own prefix so equal filenames never share an object.
	return models.DocumentRecord{
		BatchID:  newBatchID(),
		Filename: req.Filename,
		Entities: req.Entities,
	}, nil
}

func (f *ReportFunction) save(ctx context.Context, rec models.DocumentRecord, art *report.Artifact) (string, error) {
	objectName := reportObjectName(rec.BatchID, rec.Seq, art.Filename)
	uri := f.writer.URI(objectName)
	err := f.writer.Write(ctx, objectName, report.ContentType, art.Data)
	if errors.Is(err, gcp.ErrObjectExists) && rec.ID != "" && rec.ReportURI == uri {
		// Already saved for this record.
		return uri, nil
	}
	if err != nil {
		return "", err
	}
	return uri, nil
}

// reportObjectName places reports at <batchId>/<seq>/<reportFilename>.
func reportObjectName(batchID string, seq int, reportFilename string) string {
	return fmt.Sprintf("%s/%d/%s", batchID, seq, reportFilename)
}
