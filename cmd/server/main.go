package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	v1 "github.com/maildesk-io/maildesk-ce/internal/api/v1"
	"github.com/maildesk-io/maildesk-ce/internal/config"
	"github.com/maildesk-io/maildesk-ce/internal/database"
	"github.com/maildesk-io/maildesk-ce/internal/dedup"
	"github.com/maildesk-io/maildesk-ce/internal/maintenance"
	"github.com/maildesk-io/maildesk-ce/internal/metrics"
	"github.com/maildesk-io/maildesk-ce/internal/repository"
	"github.com/maildesk-io/maildesk-ce/internal/service"
	"github.com/maildesk-io/maildesk-ce/internal/storage"
	"github.com/maildesk-io/maildesk-ce/internal/thread"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags|log.Lmsgprefix)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load configuration: %v", err)
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN, database.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		logger.Fatalf("migrate schema: %v", err)
	}

	backend, err := storage.New(storage.Config{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
		BaseURL: cfg.Storage.BaseURL,
	}, db)
	if err != nil {
		logger.Fatalf("storage backend: %v", err)
	}
	logger.Printf("attachment storage: %s", backend.Name())

	var reg *prometheus.Registry
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		m = metrics.New(reg)
	}

	customers := repository.NewCustomerRepository(db)
	channels := repository.NewChannelRepository(db)
	conversations := repository.NewConversationRepository(db)
	tickets := repository.NewTicketRepository(db)
	messages := repository.NewMessageRepository(db)
	attachments := repository.NewAttachmentRepository(db)
	webhookLogs := repository.NewWebhookLogRepository(db)

	matcher := thread.NewReconstructor(tickets, messages,
		thread.WithSubjectWindow(cfg.Matching.SubjectWindow),
		thread.WithLogger(logger),
	)

	processor := service.NewAttachmentProcessor(backend, attachments,
		service.WithAttachmentLogger(logger),
	)

	ingestOpts := []service.IngestOption{
		service.WithIngestLogger(logger),
	}
	if m != nil {
		ingestOpts = append(ingestOpts, service.WithIngestMetrics(m))
		processor = service.NewAttachmentProcessor(backend, attachments,
			service.WithAttachmentLogger(logger),
			service.WithAttachmentFailureHook(m.AttachmentFailures.Inc),
		)
	}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		ingestOpts = append(ingestOpts, service.WithDedupFilter(dedup.NewFilter(rdb, cfg.Redis.DedupTTL)))
		logger.Printf("dedup fast-path enabled via redis at %s", cfg.Redis.Addr)
	}

	ingest := service.NewIngestService(
		customers, channels, conversations, tickets, messages,
		matcher, processor, ingestOpts...,
	)

	verifier := v1.NewSignatureVerifier(cfg.Webhook.Secret)
	if !verifier.Enabled() {
		logger.Printf("WARNING: webhook.secret is not configured, signature verification is disabled")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	handler := v1.NewWebhookHandler(ingest, webhookLogs, verifier, m, logger)
	var gatherer prometheus.Gatherer
	if reg != nil {
		gatherer = reg
	}
	v1.NewRouter(engine, handler, db).Setup(gatherer)

	sweeper := maintenance.NewRetentionSweeper(
		webhookLogs, cfg.Retention.WebhookLogTTL, cfg.Retention.Schedule, logger,
	)
	if err := sweeper.Start(); err != nil {
		logger.Fatalf("retention sweeper: %v", err)
	}
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("%s listening on %s", cfg.App.Name, cfg.Addr())
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	case sig := <-stop:
		logger.Printf("received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}
}
