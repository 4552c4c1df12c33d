package gcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
)

const (
	uploadMaxRetries   = 4
	uploadInitialDelay = 1 * time.Second
	uploadTimeout      = 50 * time.Second
)

// BucketWriter writes artifacts into one GCS bucket, retrying transient
// failures with exponential backoff.
type BucketWriter struct {
	bucket *storage.BucketHandle
	name   string
}

func NewBucketWriter(client *storage.Client, bucketName string) *BucketWriter {
	return &BucketWriter{bucket: client.Bucket(bucketName), name: bucketName}
}

// URI returns the gs:// URI of an object in the bucket.
func (w *BucketWriter) URI(objectName string) string {
	return fmt.Sprintf("gs://%s/%s", w.name, objectName)
}

// Write stores content at objectName. An existing object is not retried and
// yields ErrObjectExists.
func (w *BucketWriter) Write(ctx context.Context, objectName, contentType string, content []byte) error {
	backoff := uploadInitialDelay
	var lastErr error

	for i := 0; i < uploadMaxRetries; i++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
			defer cancel()
			return SaveToGCSAtomically(writeCtx, w.bucket, objectName, contentType, content)
		}()
		if err == nil {
			return nil // Success!
		}
		if errors.Is(err, ErrObjectExists) {
			return err
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", objectName,
			"attempt", i+1,
			"maxRetries", uploadMaxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", objectName, "error", ctx.Err())
			return ctx.Err()
		}
	}
	slog.Error("Upload failed after all retries.", "gcsObject", objectName, "error", lastErr)
	return fmt.Errorf("upload for %s failed after all retries: %w", objectName, lastErr)
}
