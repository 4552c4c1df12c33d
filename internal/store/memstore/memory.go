package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/Lllllllleong/documententityflow/internal/models"
	"github.com/Lllllllleong/documententityflow/internal/store"
)

// Store is an in-memory implementation of store.Store for tests and the
// local CLI.
type Store struct {
	mu      sync.RWMutex
	records map[string]models.DocumentRecord
}

var _ store.Store = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{records: make(map[string]models.DocumentRecord)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// Save stores a copy of rec, replacing any record with the same ID.
func (s *Store) Save(ctx context.Context, rec models.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Entities = slices.Clone(rec.Entities)
	s.records[rec.ID] = rec
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (models.DocumentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok, nil
}

func (s *Store) FindByHash(ctx context.Context, fileHash string) (models.DocumentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.FileHash == fileHash && rec.Status == models.StatusExtracted {
			return rec, true, nil
		}
	}
	return models.DocumentRecord{}, false, nil
}

func (s *Store) ListBatch(ctx context.Context, batchID string) ([]models.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DocumentRecord
	for _, rec := range s.records {
		if rec.BatchID == batchID {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b models.DocumentRecord) int { return a.Seq - b.Seq })
	return out, nil
}
