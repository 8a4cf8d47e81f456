package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/crepilot/crepilot/internal/log"
)

// ErrNotFound indicates the document does not exist.
var ErrNotFound = errors.New("document not found")

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists documents in PostgreSQL.
type Store struct {
	db     DB
	logger log.Logger
}

// NewStore creates a document store.
func NewStore(db DB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

const documentColumns = `id, filename, content_type, size_bytes, status, vector_count, error, created_at, updated_at`

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Filename, &d.ContentType, &d.SizeBytes,
		&d.Status, &d.VectorCount, &d.Error, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// Create inserts a new document record and returns it with timestamps set.
func (s *Store) Create(ctx context.Context, d Document) (Document, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO documents (id, filename, content_type, size_bytes, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+documentColumns,
		d.ID, d.Filename, d.ContentType, d.SizeBytes, d.Status)
	created, err := scanDocument(row)
	if err != nil {
		return Document{}, fmt.Errorf("creating document %s: %w", d.ID, err)
	}
	return created, nil
}

// Get returns the document with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("getting document %s: %w", id, err)
	}
	return d, nil
}

// List returns all documents, newest first.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document record. Returns ErrNotFound for unknown ids.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SetProcessing transitions a document to the processing state.
func (s *Store) SetProcessing(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, StatusProcessing, 0, "")
}

// SetCompleted marks ingestion as done with the final vector count.
func (s *Store) SetCompleted(ctx context.Context, id string, vectorCount int) error {
	return s.setStatus(ctx, id, StatusCompleted, vectorCount, "")
}

// SetFailed marks ingestion as failed with the error message.
func (s *Store) SetFailed(ctx context.Context, id string, errMsg string) error {
	return s.setStatus(ctx, id, StatusFailed, 0, errMsg)
}

func (s *Store) setStatus(ctx context.Context, id string, status Status, vectorCount int, errMsg string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE documents
		SET status = $2, vector_count = $3, error = $4, updated_at = now()
		WHERE id = $1`,
		id, status, vectorCount, errMsg)
	if err != nil {
		return fmt.Errorf("updating document %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.logger.Debug("document status updated", "id", id, "status", status, "vectors", vectorCount)
	return nil
}
