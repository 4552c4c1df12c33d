// Package store persists per-document extraction outcomes.
package store

import (
	"context"

	"github.com/Lllllllleong/documententityflow/internal/models"
)

// Backend names accepted by STORE_BACKEND.
const (
	BackendFirestore = "firestore"
	BackendSQLite    = "sqlite"
	BackendMemory    = "memory"
	BackendNone      = "none"
)

// Store is the interface for persisting and querying document outcomes.
// Records are keyed by models.DocumentRecord.ID; Save replaces any record
// with the same ID.
type Store interface {
	Close() error

	Save(ctx context.Context, rec models.DocumentRecord) error
	Get(ctx context.Context, id string) (models.DocumentRecord, bool, error)
	// FindByHash returns a successfully extracted record with the given
	// file hash, if one exists.
	FindByHash(ctx context.Context, fileHash string) (models.DocumentRecord, bool, error)
	// ListBatch returns every record of a batch ordered by Seq.
	ListBatch(ctx context.Context, batchID string) ([]models.DocumentRecord, error)
}

// Nop discards every record. It is used when STORE_BACKEND is "none".
type Nop struct{}

func (Nop) Close() error                                              { return nil }
func (Nop) Save(ctx context.Context, rec models.DocumentRecord) error { return nil }

func (Nop) Get(ctx context.Context, id string) (models.DocumentRecord, bool, error) {
	return models.DocumentRecord{}, false, nil
}

func (Nop) FindByHash(ctx context.Context, fileHash string) (models.DocumentRecord, bool, error) {
	return models.DocumentRecord{}, false, nil
}

func (Nop) ListBatch(ctx context.Context, batchID string) ([]models.DocumentRecord, error) {
	return nil, nil
}
