// Package main runs the challenge engine HTTP server with the dashboard WebSocket, the
// trigger scheduler and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-community/challenges/config"
	"github.com/aura-community/challenges/internal/auth"
	"github.com/aura-community/challenges/internal/catalog"
	"github.com/aura-community/challenges/internal/draws"
	"github.com/aura-community/challenges/internal/events"
	"github.com/aura-community/challenges/internal/memstore"
	"github.com/aura-community/challenges/internal/metrics"
	"github.com/aura-community/challenges/internal/middleware"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/internal/notify"
	"github.com/aura-community/challenges/internal/polls"
	"github.com/aura-community/challenges/internal/realtime"
	"github.com/aura-community/challenges/internal/scheduler"
	"github.com/aura-community/challenges/internal/stats"
	"github.com/aura-community/challenges/internal/submissions"
	"github.com/aura-community/challenges/pkg/database"
	"github.com/aura-community/challenges/pkg/queue"
	"github.com/aura-community/challenges/pkg/redis"
	"github.com/aura-community/challenges/pkg/response"
	"github.com/aura-community/challenges/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var st stores
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("using in-memory store; state is lost on restart")
		st = memoryStores(memstore.New())
	default:
		pool, err := database.NewPostgresPool(ctx, database.PoolConfig{
			DSN:      cfg.Database.DSN(),
			MaxConns: int32(cfg.Database.MaxConns),
		}, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		go database.ReportStats(ctx, pool, 15*time.Second, m.RecordDBPoolStats)
		st = postgresStores(pool)
	}

	// Notify bus, job queue and dashboard fan-out need Redis; without it announcements are dropped.
	var (
		sink     notify.Sink = notify.Discard{}
		archiver submissions.Archiver
		hub      *realtime.Hub
	)
	if cfg.Redis.Addr != "" {
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
		sink = notify.NewRedisSink(rdb.Client, jobQueue, logger)
		archiver = jobQueue
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
	} else {
		logger.Warn("REDIS_ADDR empty; announcements and direct messages are discarded")
		hub = realtime.NewHub(logger, nil, nil)
	}
	hub.SetAudienceChangeHandler(m.DashboardClientsChanged)

	var presigner submissions.Presigner
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			EvidenceBucket:       cfg.AWS.EvidenceBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			presigner = s3Client
		}
	}

	announcer := notify.NewAnnouncer(sink, st.settings, m, logger)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Catalog
	catalogSvc := catalog.NewService(st.catalog, catalog.WeightPolicy{
		Step:    cfg.Engine.WeightStep,
		Floor:   cfg.Engine.WeightFloor,
		Ceiling: cfg.Engine.WeightCeiling,
	}, logger)
	if cfg.Engine.CatalogSeed != "" {
		seed, err := catalog.LoadSeed(cfg.Engine.CatalogSeed)
		if err != nil {
			logger.Fatal("catalog seed", zap.Error(err))
		}
		n, err := catalogSvc.ApplySeed(ctx, seed)
		if err != nil {
			logger.Fatal("apply catalog seed", zap.Error(err))
		}
		logger.Info("catalog seeded", zap.Int("templates", n))
	}
	catalogHandler := catalog.NewHandler(catalogSvc)

	// Polls
	pollEngine := polls.NewEngine(st.polls, catalogSvc, st.stats, announcer, m, logger)
	pollHandler := polls.NewHandler(pollEngine, hub)

	// Events
	eventCfg := events.DefaultConfig()
	eventCfg.DefaultDuration = cfg.Engine.EventDuration
	eventCfg.MaxRetries = uint64(cfg.Engine.CounterRetries)
	lifecycle := events.NewLifecycle(st.events, announcer, eventCfg, m, logger)
	eventHandler := events.NewHandler(lifecycle, pollEngine)

	// Submissions
	rolls := models.TierRolls{Bronze: cfg.Engine.BronzeRolls, Silver: cfg.Engine.SilverRolls, Gold: cfg.Engine.GoldRolls}
	reviewSvc := submissions.NewService(st.submissions, lifecycle, announcer, archiver, rolls, m, logger)
	submissionHandler := submissions.NewHandler(reviewSvc, presigner, logger)

	// Draws
	drawEngine := draws.NewEngine(st.draws, st.events, st.submissions, st.stats, announcer, m, logger)
	drawHandler := draws.NewHandler(drawEngine)

	statsHandler := stats.NewHandler(st.stats)

	// Scheduler
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		schedule, err := scheduler.LoadSchedule(cfg.Scheduler.Path)
		if err != nil {
			logger.Fatal("load schedule", zap.String("path", cfg.Scheduler.Path), zap.Error(err))
		}
		sched = scheduler.New(schedule, st.triggers, pollEngine, lifecycle, drawEngine, cfg.Scheduler.Interval, m, logger)
		if err := sched.Start(ctx); err != nil {
			logger.Fatal("start scheduler", zap.Error(err))
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(m.Middleware())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtService.Validate))

	admin := middleware.RequireRole(models.RoleAdmin)
	reviewer := middleware.RequireRole(models.RoleAdmin, models.RoleReviewer)

	// Guild-scoped API (JWT required, token guild must match the path)
	api := router.Group("/guilds/:guild")
	api.Use(middleware.JWT(jwtService), middleware.RequireGuild())
	{
		api.GET("/templates", catalogHandler.List)
		api.POST("/templates/:id/feedback", catalogHandler.Feedback)

		api.POST("/polls", admin, pollHandler.Open)
		api.GET("/polls/:id", pollHandler.Get)
		api.POST("/polls/:id/votes", pollHandler.Vote)
		api.POST("/polls/:id/resolve", admin, pollHandler.Resolve)
		api.POST("/polls/:id/event", admin, eventHandler.Start)

		api.GET("/events", eventHandler.List)
		api.GET("/events/:id", eventHandler.Get)
		api.POST("/events/:id/submissions", submissionHandler.Submit)

		api.GET("/submissions/pending", reviewer, submissionHandler.Pending)
		api.GET("/submissions/:id", submissionHandler.Get)
		api.POST("/submissions/:id/review", reviewer, submissionHandler.Review)

		api.POST("/draws", admin, drawHandler.Snapshot)
		api.GET("/draws/:id", drawHandler.Get)
		api.POST("/draws/:id/roll", admin, drawHandler.Roll)
		api.POST("/draws/:id/announce", admin, drawHandler.Announce)

		api.GET("/users/:user/stats", statsHandler.Get)

		if sched != nil {
			schedHandler := scheduler.NewHandler(sched)
			api.GET("/triggers", admin, schedHandler.List)
			api.POST("/triggers/:category/:trigger", admin, schedHandler.Fire)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if sched != nil {
		sched.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	stop()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
