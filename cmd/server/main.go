package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	certcache "attesta/internal/certificate/cache"
	"attesta/internal/certificate/handler"
	"attesta/internal/certificate/metrics"
	"attesta/internal/certificate/service"
	"attesta/internal/certificate/store"
	"attesta/internal/platform/config"
	"attesta/internal/platform/httpserver"
	"attesta/internal/platform/kafka"
	"attesta/internal/platform/logger"
	platformredis "attesta/internal/platform/redis"
	"attesta/internal/render"
	httptransport "attesta/internal/transport/http"
	"attesta/pkg/platform/audit"
	auditworker "attesta/pkg/platform/audit/worker"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	certStore, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize certificate store", "error", err.Error())
		os.Exit(1)
	}
	defer cleanup()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
		service.WithValidityPolicy(service.ValidityPolicy{
			Default:     cfg.ValidityDefault,
			PerCategory: cfg.ValidityPerCategory,
		}),
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, service.WithCache(
			certcache.NewRedis(redisClient.Client, cfg.CacheTTL, log)))
	}

	publisher := audit.NewChannelPublisher(1024, log)
	opts = append(opts, service.WithAuditPublisher(publisher))

	kafkaPublisher, err := kafka.NewPublisher(ctx, cfg.Kafka, log)
	if err != nil {
		log.Error("failed to connect to kafka", "error", err.Error())
		os.Exit(1)
	}

	certs, err := service.New(certStore, cfg.BaseURL, opts...)
	if err != nil {
		log.Error("failed to build certificate service", "error", err.Error())
		os.Exit(1)
	}

	var qr render.QRRenderer = render.Unconfigured{}
	var pdf render.PDFRenderer = render.Unconfigured{}
	if cfg.RendererURL != "" {
		client := render.NewHTTPClient(cfg.RendererURL, cfg.RendererTimeout)
		qr, pdf = client, client
	}

	router := httptransport.NewRouter(handler.New(certs, qr, pdf, log), log)
	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	auditStore := audit.NewInMemoryStore()
	group.Go(func() error {
		err := auditworker.New(newAuditSink(auditStore, kafkaPublisher), publisher.Inbox(), log).Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		log.Info("starting attesta", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if kafkaPublisher != nil {
			if err := kafkaPublisher.Close(shutdownCtx); err != nil {
				log.Warn("kafka publisher shutdown failed", "error", err.Error())
			}
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", "error", err.Error())
		os.Exit(1)
	}
}

// buildStore selects Postgres when configured, otherwise the in-memory
// registry (useful for development and demos).
func buildStore(ctx context.Context, cfg config.Config) (service.Store, func(), error) {
	if cfg.PostgresURL == "" {
		return store.NewInMemory(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	if err := store.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store.NewPostgres(pool), pool.Close, nil
}

// auditSink persists events locally and mirrors them to Kafka when a broker
// is configured.
type auditSink struct {
	local audit.Store
	kafka *kafka.Publisher
}

func newAuditSink(local audit.Store, publisher *kafka.Publisher) *auditSink {
	return &auditSink{local: local, kafka: publisher}
}

func (s *auditSink) Append(ctx context.Context, event audit.Event) error {
	if s.kafka != nil {
		s.kafka.Publish(ctx, event)
	}
	return s.local.Append(ctx, event)
}

func (s *auditSink) List(ctx context.Context) ([]audit.Event, error) {
	return s.local.List(ctx)
}
