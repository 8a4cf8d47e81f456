package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/crepilot/crepilot/internal/log"
)

// DB is the subset of pgxpool.Pool the pgx querier needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGQuerier implements Querier against PostgreSQL + pgvector.
type PGQuerier struct {
	db     DB
	logger log.Logger
}

// NewPGQuerier creates the pgx-backed querier.
func NewPGQuerier(db DB, logger log.Logger) *PGQuerier {
	return &PGQuerier{db: db, logger: logger}
}

// UpsertRecords writes all records in one transaction so a partial batch
// never becomes visible.
func (q *PGQuerier) UpsertRecords(ctx context.Context, records []Record) error {
	tx, err := q.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, r := range records {
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %q: %w", r.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO document_vectors (id, content, metadata, embedding)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET content = EXCLUDED.content,
			    metadata = EXCLUDED.metadata,
			    embedding = EXCLUDED.embedding`,
			r.ID, r.Content, metadata, pgvector.NewVector(r.Embedding))
		if err != nil {
			return fmt.Errorf("upserting record %q: %w", r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

// SearchRecords runs a cosine similarity search. The filter is matched with
// JSONB containment; filter values always pass through json.Marshal, never
// string concatenation.
func (q *PGQuerier) SearchRecords(ctx context.Context, embedding []float32, filter map[string]string, limit int) ([]Match, error) {
	vec := pgvector.NewVector(embedding)

	var (
		rows pgx.Rows
		err  error
	)
	if len(filter) > 0 {
		filterJSON, marshalErr := json.Marshal(filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		rows, err = q.db.Query(ctx, `
			SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
			FROM document_vectors
			WHERE metadata @> $2
			ORDER BY embedding <=> $1
			LIMIT $3`,
			vec, filterJSON, limit)
	} else {
		rows, err = q.db.Query(ctx, `
			SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
			FROM document_vectors
			ORDER BY embedding <=> $1
			LIMIT $2`,
			vec, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m            Match
			metadataJSON []byte
			similarity   float64
		)
		if err := rows.Scan(&m.ID, &m.Content, &metadataJSON, &similarity); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
			q.logger.Warn("failed to parse metadata", "record_id", m.ID, "error", err)
			m.Metadata = map[string]string{}
		}
		m.Similarity = float32(similarity)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading matches: %w", err)
	}
	return matches, nil
}

// DeleteByDocument removes all records for the document in one statement.
func (q *PGQuerier) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM document_vectors WHERE metadata->>'document_id' = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting vectors: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByDocument counts the records for the document.
func (q *PGQuerier) CountByDocument(ctx context.Context, documentID string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM document_vectors WHERE metadata->>'document_id' = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return count, nil
}
