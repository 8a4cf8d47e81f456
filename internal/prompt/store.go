package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/crepilot/crepilot/internal/log"
)

// ErrNoActive indicates no system message is currently active.
var ErrNoActive = errors.New("no active system message")

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists system messages in PostgreSQL.
type Store struct {
	db     DB
	logger log.Logger
}

// NewStore creates a system message store.
func NewStore(db DB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

const messageColumns = `id, message, is_active, created_at, updated_at`

// Active returns the currently active system message, or ErrNoActive.
func (s *Store) Active(ctx context.Context) (Message, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM system_messages WHERE is_active LIMIT 1`)

	var m Message
	err := row.Scan(&m.ID, &m.Message, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNoActive
	}
	if err != nil {
		return Message{}, fmt.Errorf("fetching active system message: %w", err)
	}
	return m, nil
}

// Set stores a new system message and makes it the active one. The previous
// active message is deactivated in the same transaction so the single-active
// constraint always holds.
func (s *Store) Set(ctx context.Context, content string) (Message, error) {
	if content == "" {
		return Message{}, errors.New("system message cannot be empty")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE system_messages SET is_active = false, updated_at = now() WHERE is_active`); err != nil {
		return Message{}, fmt.Errorf("deactivating system message: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO system_messages (id, message, is_active)
		VALUES ($1, $2, true)
		RETURNING `+messageColumns,
		uuid.NewString(), content)

	var m Message
	if err := row.Scan(&m.ID, &m.Message, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return Message{}, fmt.Errorf("inserting system message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("committing system message: %w", err)
	}
	s.logger.Info("system message updated", "id", m.ID)
	return m, nil
}
