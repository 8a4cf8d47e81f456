package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crepilot/crepilot/internal/log"
)

// ErrEmptyEmbedding indicates a query or record with no embedding values.
var ErrEmptyEmbedding = errors.New("empty embedding")

// queryTimeout bounds a single similarity search so a slow index scan
// cannot block the caller indefinitely.
const queryTimeout = 10 * time.Second

// Querier defines the database operations the store needs. Interfaces are
// defined by the consumer, so tests can substitute a mock for the pgx
// implementation in pg.go.
type Querier interface {
	// UpsertRecords inserts or updates the given records atomically:
	// either all records land or none do.
	UpsertRecords(ctx context.Context, records []Record) error

	// SearchRecords returns up to limit records ordered by descending
	// cosine similarity, optionally restricted by a metadata filter.
	SearchRecords(ctx context.Context, embedding []float32, filter map[string]string, limit int) ([]Match, error)

	// DeleteByDocument removes every record whose metadata document_id
	// matches, in a single statement. Returns the number removed.
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)

	// CountByDocument counts records belonging to a document.
	CountByDocument(ctx context.Context, documentID string) (int64, error)
}

// Store is the vector index adapter. It validates and bounds caller input,
// delegates storage to a Querier, and applies the similarity threshold.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries Querier
	logger  log.Logger
}

// New creates a Store backed by the given querier.
func New(queries Querier, logger log.Logger) *Store {
	return &Store{queries: queries, logger: logger}
}

// Upsert writes records to the index, inserting new ids and replacing
// existing ones. The write is all-or-nothing.
func (s *Store) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if len(r.Embedding) == 0 {
			return fmt.Errorf("%w: record %q", ErrEmptyEmbedding, r.ID)
		}
	}
	if err := s.queries.UpsertRecords(ctx, records); err != nil {
		return fmt.Errorf("upserting %d records: %w", len(records), err)
	}
	s.logger.Debug("upserted records", "count", len(records))
	return nil
}

// Query returns the records most similar to the given embedding, ordered by
// descending similarity. Results below the configured threshold are dropped
// after retrieval, so a strict threshold can return fewer than topK matches.
func (s *Store) Query(ctx context.Context, embedding []float32, opts ...QueryOption) ([]Match, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	cfg := buildQueryConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	matches, err := s.queries.SearchRecords(queryCtx, embedding, cfg.filter, cfg.topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	// Cosine similarity spans [-1, 1], so even the minimum threshold of 0
	// filters out anti-similar records.
	filtered := matches[:0]
	for _, m := range matches {
		if m.Similarity >= cfg.threshold {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// DeleteByDocument removes all records for a document id. Deleting a
// document with no records is not an error.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return errors.New("empty document id")
	}
	n, err := s.queries.DeleteByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("deleting records for document %q: %w", documentID, err)
	}
	s.logger.Debug("deleted records", "document_id", documentID, "count", n)
	return nil
}

// CountByDocument returns the number of index records for a document.
func (s *Store) CountByDocument(ctx context.Context, documentID string) (int64, error) {
	n, err := s.queries.CountByDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("counting records for document %q: %w", documentID, err)
	}
	return n, nil
}
