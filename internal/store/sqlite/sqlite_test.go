package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Lllllllleong/documententityflow/internal/models"
)

func TestSQLiteSaveAndGet(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer st.Close()

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := models.DocumentRecord{
		ID:        models.RecordID("01HXBATCH", 0),
		BatchID:   "01HXBATCH",
		Seq:       0,
		Filename:  "resume.pdf",
		FileHash:  "abc123",
		Status:    models.StatusExtracted,
		PageCount: 2,
		Entities: []models.EntityRow{
			{Entity: "Jane Doe", Label: "PERSON"},
			{Entity: "Acme Corp", Label: "ORG"},
		},
		CreatedAt: created,
	}
	if err := st.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, found, err := st.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("record should be found")
	}
	if got.Filename != rec.Filename || got.PageCount != 2 || !got.CreatedAt.Equal(created) {
		t.Errorf("got %+v, want %+v", got, rec)
	}
	if !slices.Equal(got.Entities, rec.Entities) {
		t.Errorf("entities = %+v, want %+v", got.Entities, rec.Entities)
	}

	// Save replaces the record with the same id.
	rec.ReportURI = "gs://reports/01HXBATCH/0/resume_extracted_entities.pdf"
	if err := st.Save(ctx, rec); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, _, _ = st.Get(ctx, rec.ID)
	if got.ReportURI != rec.ReportURI {
		t.Errorf("ReportURI = %q after update", got.ReportURI)
	}

	if _, found, err := st.Get(ctx, "missing"); err != nil || found {
		t.Errorf("Get(missing) = found %v, err %v", found, err)
	}
}

func TestSQLiteFindByHash(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer st.Close()

	failed := models.DocumentRecord{ID: "a", BatchID: "b", Filename: "x.pdf", FileHash: "h1", Status: models.StatusFailed, CreatedAt: time.Now()}
	if err := st.Save(ctx, failed); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, found, _ := st.FindByHash(ctx, "h1"); found {
		t.Error("failed records must not count as duplicates")
	}

	ok := failed
	ok.ID = "c"
	ok.Status = models.StatusExtracted
	if err := st.Save(ctx, ok); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, found, err := st.FindByHash(ctx, "h1")
	if err != nil || !found || got.ID != "c" {
		t.Errorf("FindByHash = %+v, %v, %v", got, found, err)
	}
}

func TestSQLiteListBatchConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer st.Close()

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := n - 1; i >= 0; i-- {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			errs <- st.Save(ctx, models.DocumentRecord{
				ID:        models.RecordID("batch", seq),
				BatchID:   "batch",
				Seq:       seq,
				Filename:  fmt.Sprintf("doc-%d.pdf", seq),
				Status:    models.StatusExtracted,
				CreatedAt: time.Now(),
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	list, err := st.ListBatch(ctx, "batch")
	if err != nil {
		t.Fatalf("ListBatch: %v", err)
	}
	if len(list) != n {
		t.Fatalf("ListBatch returned %d records, want %d", len(list), n)
	}
	for i, rec := range list {
		if rec.Seq != i {
			t.Errorf("record %d has seq %d", i, rec.Seq)
		}
		if rec.Entities == nil || len(rec.Entities) != 0 {
			t.Errorf("record %d entities = %#v, want empty", i, rec.Entities)
		}
	}
}
