package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicedash/internal/audit"
	"voicedash/internal/calls"
	"voicedash/internal/config"
	"voicedash/internal/crm"
	"voicedash/internal/httpapi"
	"voicedash/internal/monitor"
	"voicedash/internal/reporting"
	"voicedash/internal/vapi"
	"voicedash/pkg/logger"
	"voicedash/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis is optional; without it the bulk concurrency cap is not enforced.
	var rdb *redis.Client
	if cfg.HasRedis() {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	} else {
		log.Warn("redis not configured, bulk concurrency cap disabled")
	}

	provider := vapi.NewClient(vapi.Config{
		BaseURL:          cfg.Vapi.BaseURL,
		APIKey:           cfg.Vapi.APIKey,
		DispatchTimeout:  cfg.Vapi.DispatchTimeout,
		RecordingTimeout: cfg.Vapi.RecordingTimeout,
	})

	store := calls.NewPostgresStore(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	auditor := audit.BestEffort{Svc: auditSvc}

	mon, err := monitor.New(monitor.NewRegistry(), provider, store, auditor, monitor.Config{
		PollInterval:   cfg.Monitor.PollInterval,
		TrackingWindow: cfg.Monitor.TrackingWindow,
		SweepSchedule:  cfg.Monitor.SweepSchedule,
	})
	if err != nil {
		log.Error("monitor init failed", "err", err)
		os.Exit(1)
	}
	go mon.Run(logger.With(rootCtx, log))

	callsSvc := calls.NewService(store, provider, mon, calls.ServiceConfig{
		Redis:                rdb,
		Auditor:              auditor,
		BulkConcurrencyLimit: cfg.Bulk.ConcurrencyLimit,
	})

	h := httpapi.Handlers{
		Calls:      callsSvc,
		Monitor:    mon,
		Recordings: provider,
		Reports:    reporting.NewService(store),
		CRM:        crm.NewService(crm.NewPostgresRepo(db)),
		Auditor:    auditor,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, db)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
