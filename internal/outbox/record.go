package outbox

import (
	"context"
	"time"
)

// Record is a stored domain event waiting to be published. The broker topic
// (or routing key) equals EventType.
type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

// Source hands out unpublished records in id order. publish runs inside the
// source's unit of work; the batch is marked published only if it returns nil.
// Drain returns the number of records published.
type Source interface {
	Drain(ctx context.Context, limit int, publish func(context.Context, []Record) error) (int, error)
}

// Sink delivers a batch of records to a broker.
type Sink interface {
	Write(ctx context.Context, records []Record) error
	Close() error
}
