package validation

import (
	"errors"
	"fmt"

	"github.com/Lllllllleong/documententityflow/internal/faults"
)

const (
	// DefaultMaxUploadBytes is the default maximum size of one uploaded document (20MiB)
	DefaultMaxUploadBytes = 20 << 20

	// DefaultMaxBatchDocuments is the default maximum number of documents in one batch
	DefaultMaxBatchDocuments = 50
)

var (
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")
	ErrBatchTooLarge    = errors.New("batch exceeds maximum number of documents")
)

// Limits bounds what an upload may contain. Zero values disable a limit.
type Limits struct {
	MaxUploadBytes    int64
	MaxBatchDocuments int
}

// DefaultLimits returns the limits used when nothing is configured.
func DefaultLimits() Limits {
	return Limits{
		MaxUploadBytes:    DefaultMaxUploadBytes,
		MaxBatchDocuments: DefaultMaxBatchDocuments,
	}
}

// DocumentError is a per-document validation failure. Its message is safe
// to show to the uploader.
type DocumentError struct {
	Filename string
	Err      error
	Detail   string
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%q: %v: %s", e.Filename, e.Err, e.Detail)
}

func (e *DocumentError) Unwrap() error { return e.Err }

func (e *DocumentError) UserMessage() string {
	if errors.Is(e.Err, ErrDocumentTooLarge) {
		return faults.MsgTooLarge
	}
	return faults.MsgDecode
}

// CheckDocument validates the size of one uploaded document. The filename
// is only used to label the error.
func (l Limits) CheckDocument(filename string, size int64) error {
	if l.MaxUploadBytes > 0 && size > l.MaxUploadBytes {
		return TooLarge(filename, size, l.MaxUploadBytes)
	}
	return nil
}

// TooLarge reports a document of size bytes that exceeds maxBytes.
func TooLarge(filename string, size, maxBytes int64) *DocumentError {
	return &DocumentError{
		Filename: filename,
		Err:      ErrDocumentTooLarge,
		Detail:   fmt.Sprintf("%d bytes (max %d)", size, maxBytes),
	}
}

// CheckBatch validates the size of a whole batch. Unlike CheckDocument, a
// failure here rejects the request.
func (l Limits) CheckBatch(count int) error {
	if l.MaxBatchDocuments > 0 && count > l.MaxBatchDocuments {
		return fmt.Errorf("%w: %d documents (max %d)", ErrBatchTooLarge, count, l.MaxBatchDocuments)
	}
	return nil
}
