// Package main runs the background job worker: direct message delivery and evidence archival.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-community/challenges/config"
	"github.com/aura-community/challenges/internal/metrics"
	"github.com/aura-community/challenges/internal/submissions"
	"github.com/aura-community/challenges/internal/worker"
	"github.com/aura-community/challenges/pkg/database"
	"github.com/aura-community/challenges/pkg/queue"
	"github.com/aura-community/challenges/pkg/redis"
	"github.com/aura-community/challenges/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Database.Driver != "postgres" {
		logger.Fatal("worker requires STORE_DRIVER=postgres", zap.String("driver", cfg.Database.Driver))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, database.PoolConfig{
		DSN:      cfg.Database.DSN(),
		MaxConns: int32(cfg.Database.MaxConns),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processors := map[queue.JobType]worker.Processor{
		queue.JobTypeDirectMessage: worker.NewDirectMessenger(cfg.Gateway.DMURL, cfg.Gateway.DMRate, cfg.Gateway.DMBurst, nil, logger),
	}
	keys := []string{queue.QueueDirectMessages}

	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			EvidenceBucket:       cfg.AWS.EvidenceBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		processors[queue.JobTypeEvidenceArchive] = worker.NewEvidenceArchiver(submissions.NewRepository(pool), s3Client,
			&http.Client{Timeout: 2 * time.Minute}, logger, worker.WithAllowedHosts(cfg.Worker.EvidenceHosts...))
		keys = append(keys, queue.QueueEvidence)
	} else {
		logger.Warn("AWS_REGION empty; evidence archival jobs stay queued")
	}

	registry := prometheus.NewRegistry()
	dispatcher := worker.NewDispatcher(jobQueue, processors, metrics.New(registry), logger)
	if cfg.Worker.MetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{Addr: ":" + cfg.Worker.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics listener", zap.Error(err))
			}
		}()
		defer metricsSrv.Close()
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One loop per queue so a slow download never delays direct messages.
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			dispatcher.Run(workerCtx, key)
		}(key)
	}
	logger.Info("worker started", zap.Strings("queues", keys))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	wg.Wait()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
