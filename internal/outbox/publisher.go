package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	PollEvery time.Duration
	BatchSize int
}

// Publisher moves committed events from the outbox to a broker.
type Publisher struct {
	source    Source
	sink      Sink
	log       *zap.Logger
	pollEvery time.Duration
	batchSize int
}

func NewPublisher(source Source, sink Sink, log *zap.Logger, cfg Config) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		source:    source,
		sink:      sink,
		log:       log.Named("outbox"),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// Run polls until ctx is done, then closes the sink.
func (p *Publisher) Run(ctx context.Context) {
	defer func() {
		if err := p.sink.Close(); err != nil {
			p.log.Warn("close outbox sink", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	p.log.Info("outbox publisher started", zap.Duration("poll_every", p.pollEvery), zap.Int("batch_size", p.batchSize))
	for {
		select {
		case <-ctx.Done():
			p.log.Info("outbox publisher stopped")
			return
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil && ctx.Err() == nil {
				p.log.Error("outbox publish failed", zap.Error(err))
			}
		}
	}
}

func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	n, err := p.source.Drain(ctx, p.batchSize, p.sink.Write)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.log.Debug("published outbox events", zap.Int("count", n))
	}
	return n, nil
}
