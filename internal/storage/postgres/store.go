package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"interview-scheduler/internal/outbox"
	"interview-scheduler/internal/scheduling"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

type Store struct {
	pool *pgxpool.Pool
}

var (
	_ scheduling.Store = (*Store)(nil)
	_ outbox.Source    = (*Store)(nil)
)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) InTx(ctx context.Context, iso scheduling.Isolation, fn func(tx scheduling.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: isoLevel(iso)})
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", iso, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", mapErr(err))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func isoLevel(iso scheduling.Isolation) pgx.TxIsoLevel {
	if iso == scheduling.RepeatableRead {
		return pgx.RepeatableRead
	}
	return pgx.ReadCommitted
}

// mapErr turns the errors the core reacts to into scheduling sentinels. Serialization
// failures, deadlocks and unique violations all mean another transaction won the race.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return scheduling.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.Message, scheduling.ErrVersionConflict)
		}
	}
	return err
}
