package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"interview-scheduler/internal/outbox"
)

// Drain locks up to limit unpublished events, hands them to publish and marks
// them published in the same transaction. Concurrent publishers skip rows that
// are already locked.
func (s *Store) Drain(ctx context.Context, limit int, publish func(context.Context, []outbox.Record) error) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := fetchUnpublished(ctx, tx, limit)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, tx.Commit(ctx)
	}

	if err := publish(ctx, records); err != nil {
		return 0, err
	}

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	if err := markPublished(ctx, tx, ids); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(records), nil
}

func fetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]outbox.Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id::text, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []outbox.Record
	for rows.Next() {
		var r outbox.Record
		if err := rows.Scan(&r.ID, &r.EventID, &r.AggregateType, &r.AggregateID, &r.EventType, &r.Payload, &r.Traceparent, &r.Tracestate, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func markPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}
