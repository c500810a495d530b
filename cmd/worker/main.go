// Package main wires together the llms.txt worker service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcppubsub "cloud.google.com/go/pubsub"
	gcpstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/siteloom/llmstxt-worker/internal/api"
	"github.com/siteloom/llmstxt-worker/internal/clock/system"
	"github.com/siteloom/llmstxt-worker/internal/config"
	"github.com/siteloom/llmstxt-worker/internal/crawl"
	collyfetcher "github.com/siteloom/llmstxt-worker/internal/fetch/colly"
	"github.com/siteloom/llmstxt-worker/internal/hash/sha256"
	"github.com/siteloom/llmstxt-worker/internal/id/uuid"
	"github.com/siteloom/llmstxt-worker/internal/logging"
	memorypublisher "github.com/siteloom/llmstxt-worker/internal/publisher/memory"
	pubsubpublisher "github.com/siteloom/llmstxt-worker/internal/publisher/pubsub"
	"github.com/siteloom/llmstxt-worker/internal/run"
	"github.com/siteloom/llmstxt-worker/internal/schedule"
	"github.com/siteloom/llmstxt-worker/internal/storage/gcs"
	memorystorage "github.com/siteloom/llmstxt-worker/internal/storage/memory"
	"github.com/siteloom/llmstxt-worker/internal/storage/postgres"
	"github.com/siteloom/llmstxt-worker/internal/webhook"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo crawl.Repository
	if cfg.DB.DSN != "" {
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			logger.Fatal("postgres init failed", zap.Error(err))
		}
		defer store.Close()
		repo = store
		logger.Info("using postgres repository")
	} else {
		repo = memorystorage.NewStore()
		logger.Warn("db.dsn not set, using in-memory repository")
	}

	var blobs crawl.BlobStore
	if cfg.Storage.Backend == "gcs" {
		client, err := gcpstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("gcs client init failed", zap.Error(err))
		}
		blobs, err = gcs.New(client, gcs.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.Prefix,
		})
		if err != nil {
			logger.Fatal("gcs blob store init failed", zap.Error(err))
		}
		logger.Info("using gcs blob store", zap.String("bucket", cfg.Storage.GCSBucket))
	} else {
		blobs = memorystorage.NewBlobStore()
		logger.Warn("using in-memory blob store")
	}

	var publisher schedule.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		pub, err := pubsubpublisher.New(client, cfg.PubSub.TopicName)
		if err != nil {
			logger.Fatal("pubsub publisher init failed", zap.Error(err))
		}
		defer pub.Stop()
		publisher = pub
		logger.Info("using pubsub publisher", zap.String("topic", cfg.PubSub.TopicName))
	} else {
		publisher = memorypublisher.New()
		logger.Warn("pubsub not configured, scheduled runs stay in-process")
	}

	hasher := sha256.New()
	clock := system.New()
	idGen := uuid.New()
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: cfg.Crawler.RespectRobots,
		GetTimeout:    time.Duration(cfg.HTTP.GetTimeoutSeconds) * time.Second,
		HeadTimeout:   time.Duration(cfg.HTTP.HeadTimeoutSeconds) * time.Second,
	})

	notifier := webhook.NewNotifier(
		repo,
		&http.Client{Timeout: time.Duration(cfg.Webhook.TimeoutSeconds) * time.Second},
		clock,
		logger.Named("webhook"),
	)
	scheduler := schedule.NewScheduler(repo, publisher, clock, logger.Named("schedule"))

	orchestrator := run.New(
		repo,
		fetcher,
		hasher,
		blobs,
		notifier,
		scheduler,
		crawl.Options{
			MaxPages: cfg.Crawler.MaxPages,
			MaxDepth: cfg.Crawler.MaxDepth,
			Delay:    cfg.Crawler.Delay(),
		},
		logger.Named("run"),
	)

	apiServer := api.NewServer(orchestrator, idGen, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
