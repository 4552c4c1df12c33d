package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Lllllllleong/documententityflow/internal/models"
	"github.com/Lllllllleong/documententityflow/internal/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	// One writer at a time; concurrent document saves queue on the pool.
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	batch_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	filename TEXT NOT NULL,
	file_hash TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	page_count INTEGER DEFAULT 0,
	entities_json TEXT NOT NULL,
	report_uri TEXT,
	workflow_execution_id TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_batch ON documents(batch_id, seq);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(file_hash);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Save inserts or replaces a document record
func (s *sqliteStore) Save(ctx context.Context, rec models.DocumentRecord) error {
	if rec.ID == "" {
		return errors.New("sqlite: record has no id")
	}
	entities := rec.Entities
	if entities == nil {
		entities = []models.EntityRow{}
	}
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("sqlite: marshal entities: %w", err)
	}

	const stmt = `
INSERT INTO documents (id, batch_id, seq, filename, file_hash, status, error_message,
	page_count, entities_json, report_uri, workflow_execution_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	batch_id=excluded.batch_id,
	seq=excluded.seq,
	filename=excluded.filename,
	file_hash=excluded.file_hash,
	status=excluded.status,
	error_message=excluded.error_message,
	page_count=excluded.page_count,
	entities_json=excluded.entities_json,
	report_uri=excluded.report_uri,
	workflow_execution_id=excluded.workflow_execution_id,
	created_at=excluded.created_at;
`
	_, err = s.db.ExecContext(ctx, stmt,
		rec.ID,
		rec.BatchID,
		rec.Seq,
		rec.Filename,
		rec.FileHash,
		rec.Status,
		rec.ErrorMessage,
		rec.PageCount,
		string(entitiesJSON),
		rec.ReportURI,
		rec.WorkflowExecutionID,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

const selectColumns = `SELECT id, batch_id, seq, filename, file_hash, status, error_message,
	page_count, entities_json, report_uri, workflow_execution_id, created_at FROM documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.DocumentRecord, error) {
	var (
		rec                                      models.DocumentRecord
		fileHash, errMsg, reportURI, executionID sql.NullString
		entitiesJSON, createdAt                  string
	)
	err := row.Scan(&rec.ID, &rec.BatchID, &rec.Seq, &rec.Filename, &fileHash, &rec.Status, &errMsg,
		&rec.PageCount, &entitiesJSON, &reportURI, &executionID, &createdAt)
	if err != nil {
		return rec, err
	}
	rec.FileHash = fileHash.String
	rec.ErrorMessage = errMsg.String
	rec.ReportURI = reportURI.String
	rec.WorkflowExecutionID = executionID.String

	if err := json.Unmarshal([]byte(entitiesJSON), &rec.Entities); err != nil {
		return rec, fmt.Errorf("sqlite: record %s: unmarshal entities: %w", rec.ID, err)
	}
	if createdAt != "" {
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return rec, fmt.Errorf("sqlite: record %s: created_at: %w", rec.ID, err)
		}
	}
	return rec, nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (models.DocumentRecord, bool, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+` WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.DocumentRecord{}, false, nil
	}
	if err != nil {
		return models.DocumentRecord{}, false, err
	}
	return rec, true, nil
}

func (s *sqliteStore) FindByHash(ctx context.Context, fileHash string) (models.DocumentRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` WHERE file_hash=? AND status=? ORDER BY created_at LIMIT 1`,
		fileHash, models.StatusExtracted)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DocumentRecord{}, false, nil
	}
	if err != nil {
		return models.DocumentRecord{}, false, err
	}
	return rec, true, nil
}

func (s *sqliteStore) ListBatch(ctx context.Context, batchID string) ([]models.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE batch_id=? ORDER BY seq`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
