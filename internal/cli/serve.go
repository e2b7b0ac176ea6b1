package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"interview-scheduler/internal/app"
	"interview-scheduler/internal/config"
	"interview-scheduler/internal/gcal"
	"interview-scheduler/internal/metrics"
	"interview-scheduler/internal/outbox"
	"interview-scheduler/internal/ratelimit"
	"interview-scheduler/internal/scheduling"
	"interview-scheduler/internal/server"
	"interview-scheduler/internal/telemetry"
)

func buildServeCommand(configFile *string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *configFile, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply the Postgres schema before serving")
	return cmd
}

func serve(ctx context.Context, configFile string, migrate bool) error {
	cfg, log, err := setup(configFile)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	otelShutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.Telemetry.Endpoint,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Error("otel setup failed", zap.Error(err))
	} else {
		defer func() {
			shutdownCtx, cancel := withTimeout(5 * time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	st, closeStore, err := openStore(ctx, cfg, log, migrate)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := coreOptions(cfg, log)
	gen := scheduling.NewGenerator(st, opts...)
	a := &app.App{
		Bookings:     scheduling.NewEngine(st, opts...),
		Slots:        scheduling.NewLister(st, opts...),
		Interviewers: scheduling.NewInterviewers(st, gen, cfg.Scheduling.HorizonWeeks, opts...),
		Store:        st,
		Metrics:      metrics.NewCollector(),
		Location:     cfg.Location(),
		HorizonWeeks: cfg.Scheduling.HorizonWeeks,
		Log:          log,
	}
	if cfg.Google.Enabled() {
		cal, err := gcal.New(cfg.Google, gcal.WithLocation(cfg.Location()), gcal.WithLogger(log))
		if err != nil {
			return err
		}
		a.Calendar = cal
	}

	limiter, closeLimiter := newLimiter(cfg, log)
	defer closeLimiter()

	sink, err := newSink(cfg)
	if err != nil {
		return err
	}
	publisherDone := make(chan struct{})
	if sink != nil {
		p := outbox.NewPublisher(st, sink, log, outbox.Config{
			PollEvery: cfg.Events.PollEvery,
			BatchSize: cfg.Events.BatchSize,
		})
		go func() {
			defer close(publisherDone)
			p.Run(ctx)
		}()
	} else {
		close(publisherDone)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := app.NewRouter(a, app.RouterConfig{
		Auth:     cfg.Auth,
		Limiter:  limiter,
		FailOpen: cfg.RateLimit.FailOpen,
	})

	err = server.Run(ctx, handler, server.Config{
		Addr:            cfg.Addr(),
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, log)
	<-publisherDone
	return err
}

// newLimiter prefers Redis so that replicas share one budget.
func newLimiter(cfg *config.Config, log *zap.Logger) (ratelimit.Limiter, func()) {
	if !cfg.RateLimit.Enabled {
		return nil, func() {}
	}
	if cfg.Redis.Addr == "" {
		return ratelimit.NewMemory(cfg.RateLimit.Limit, cfg.RateLimit.Window, nil), func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	log.Info("redis rate limiter enabled", zap.String("addr", cfg.Redis.Addr))
	return ratelimit.NewRedis(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window, "rl:bookings"), func() { _ = rdb.Close() }
}

func newSink(cfg *config.Config) (outbox.Sink, error) {
	switch cfg.Events.Transport {
	case config.TransportKafka:
		return outbox.NewKafkaSink(cfg.Kafka.Brokers), nil
	case config.TransportRabbitMQ:
		sink, err := outbox.DialRabbit(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		return sink, nil
	default:
		return nil, nil
	}
}
