// Package fsstore implements store.Store on Cloud Firestore.
package fsstore

import (
	"context"
	"fmt"
	"slices"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/documententityflow/internal/models"
	"github.com/Lllllllleong/documententityflow/internal/store"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Store keeps document records in one Firestore collection, keyed by
// record ID.
type Store struct {
	client     *firestore.Client
	collection string
}

var _ store.Store = (*Store)(nil)

// New wraps an existing client. Close closes the client.
func New(client *firestore.Client, collection string) *Store {
	return &Store{client: client, collection: collection}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Save(ctx context.Context, rec models.DocumentRecord) error {
	if rec.Entities == nil {
		rec.Entities = []models.EntityRow{}
	}
	if _, err := s.client.Collection(s.collection).Doc(rec.ID).Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to save document %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (models.DocumentRecord, bool, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.DocumentRecord{}, false, nil
	}
	if err != nil {
		return models.DocumentRecord{}, false, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	rec, err := decode(snap)
	if err != nil {
		return models.DocumentRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) FindByHash(ctx context.Context, fileHash string) (models.DocumentRecord, bool, error) {
	iter := s.client.Collection(s.collection).
		Where("fileHash", "==", fileHash).
		Where("status", "==", models.StatusExtracted).
		Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return models.DocumentRecord{}, false, nil
	}
	if err != nil {
		return models.DocumentRecord{}, false, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	rec, err := decode(snap)
	if err != nil {
		return models.DocumentRecord{}, false, err
	}
	return rec, true, nil
}

// ListBatch orders by Seq in memory so no composite index is needed.
func (s *Store) ListBatch(ctx context.Context, batchID string) ([]models.DocumentRecord, error) {
	iter := s.client.Collection(s.collection).Where("batchId", "==", batchID).Documents(ctx)
	defer iter.Stop()

	var out []models.DocumentRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list batch %s: %w", batchID, err)
		}
		rec, err := decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b models.DocumentRecord) int { return a.Seq - b.Seq })
	return out, nil
}

func decode(snap *firestore.DocumentSnapshot) (models.DocumentRecord, error) {
	var rec models.DocumentRecord
	if err := snap.DataTo(&rec); err != nil {
		return rec, fmt.Errorf("failed to decode document %s: %w", snap.Ref.ID, err)
	}
	rec.ID = snap.Ref.ID
	return rec, nil
}
