// Package batch runs the extraction pipeline over every document of an
// upload, isolating failures to the document that caused them.
package batch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/documententityflow/internal/faults"
	"github.com/Lllllllleong/documententityflow/internal/pdftext"
	"github.com/Lllllllleong/documententityflow/internal/records"
	"github.com/Lllllllleong/documententityflow/internal/validation"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency is the number of documents processed at once.
	DefaultConcurrency = 4

	// UntitledFilename labels documents uploaded without a filename.
	UntitledFilename = "untitled.pdf"
)

// Document is one uploaded file. Filename is untrusted, may repeat within a
// batch and may be empty.
type Document struct {
	Filename string
	Data     []byte
}

// TextRecoverer turns document bytes into text.
type TextRecoverer interface {
	Recover(filename string, data []byte) (pdftext.Result, error)
}

// EntityExtractor turns text into ordered entity records.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) (iter.Seq[records.Record], error)
}

// Coordinator drives TextRecoverer -> EntityExtractor -> records.Table for
// each document of a batch.
type Coordinator struct {
	recoverer    TextRecoverer
	extractor    EntityExtractor
	concurrency  int
	allOrNothing bool
	limits       validation.Limits
	logger       *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConcurrency sets how many documents are processed in parallel.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithAllOrNothing makes a cancelled batch return no result at all instead
// of the outcomes completed so far.
func WithAllOrNothing() Option {
	return func(c *Coordinator) { c.allOrNothing = true }
}

// WithLimits rejects individual documents that exceed limits. Rejected
// documents become failure outcomes; the batch continues.
func WithLimits(limits validation.Limits) Option {
	return func(c *Coordinator) { c.limits = limits }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(recoverer TextRecoverer, extractor EntityExtractor, opts ...Option) *Coordinator {
	c := &Coordinator{
		recoverer:   recoverer,
		extractor:   extractor,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process runs the pipeline for every document and returns one outcome per
// document in input order. Per-document failures never make Process fail.
//
// If ctx is cancelled, documents that had not finished get a cancelled
// outcome and Process returns the partial result together with ctx.Err(),
// or nil and ctx.Err() when the Coordinator is all-or-nothing.
func (c *Coordinator) Process(ctx context.Context, docs []Document) (*Result, error) {
	outcomes := make([]Outcome, len(docs))
	started := make([]bool, len(docs))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.concurrency)

	for i, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		doc.Filename = displayName(doc.Filename)
		id := records.DocumentID{Seq: i, Filename: doc.Filename}
		started[i] = true
		// Each task writes only its own slot.
		eg.Go(func() error {
			outcomes[i] = c.processOne(gctx, id, doc)
			return nil
		})
	}
	_ = eg.Wait()

	for i, doc := range docs {
		if !started[i] {
			outcomes[i] = cancelled(records.DocumentID{Seq: i, Filename: displayName(doc.Filename)}, ctx.Err())
		}
	}

	result := newResult(outcomes)
	c.logger.Info("Batch processed.",
		"documents", result.Len(),
		"failures", result.Failures(),
		"systemicFailures", result.SystemicFailures(),
		"cancelled", result.Cancelled(),
	)

	if result.Cancelled() > 0 {
		err := ctx.Err()
		if err == nil {
			err = faults.ErrCancelled
		}
		if c.allOrNothing {
			return nil, err
		}
		return result, err
	}
	return result, nil
}

func (c *Coordinator) processOne(ctx context.Context, id records.DocumentID, doc Document) Outcome {
	logCtx := c.logger.With("seq", id.Seq, "filename", id.Filename)

	if err := ctx.Err(); err != nil {
		return cancelled(id, err)
	}
	if err := c.limits.CheckDocument(doc.Filename, int64(len(doc.Data))); err != nil {
		return c.fail(logCtx, id, err)
	}

	text, err := c.recoverer.Recover(doc.Filename, doc.Data)
	if err != nil {
		return c.fail(logCtx, id, err)
	}

	seq, err := c.extractor.Extract(ctx, text.Text)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(id, ctx.Err())
		}
		var ee *faults.ExtractionError
		if errors.As(err, &ee) {
			if ee.Filename == "" {
				ee.Filename = doc.Filename
			}
		} else {
			err = &faults.ExtractionError{Filename: doc.Filename, Err: err}
		}
		return c.fail(logCtx, id, err)
	}

	table := records.NewTable(id, seq)
	logCtx.Info("Document processed.", "entities", table.Len(), "pageCount", text.PageCount)
	if text.PageCount > 1 {
		logCtx.Warn("Only the first page was read.", "pagesIgnored", text.PageCount-1)
	}
	return Outcome{ID: id, Table: table, PageCount: text.PageCount}
}

func (c *Coordinator) fail(logCtx *slog.Logger, id records.DocumentID, err error) Outcome {
	if faults.IsSystemic(err) {
		logCtx.Error("Systemic failure: the NER model may be unavailable.", "error", err)
	} else {
		logCtx.Warn("Document failed.", "error", err)
	}
	return Outcome{ID: id, Err: err, Message: faults.UserMessage(err)}
}

func displayName(filename string) string {
	if strings.TrimSpace(filename) == "" {
		return UntitledFilename
	}
	return filename
}

func cancelled(id records.DocumentID, cause error) Outcome {
	err := faults.ErrCancelled
	if cause != nil {
		err = fmt.Errorf("%w: %w", faults.ErrCancelled, cause)
	}
	return Outcome{ID: id, Err: err, Message: faults.MsgCancelled}
}
