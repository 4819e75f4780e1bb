package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parleyapp/parley/internal/models"
)

// PostgresStore reads session records from the shared PostgreSQL database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetSession fetches a session record by id.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	sess := &models.Session{}
	var channel *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, channel_name, active, expires_at
		FROM sessions
		WHERE id = $1
	`, id).Scan(
		&sess.ID,
		&channel,
		&sess.Active,
		&sess.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if channel != nil {
		sess.ChannelName = *channel
	}
	return sess, nil
}
