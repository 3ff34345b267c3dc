package main

import (
	"context"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adbudget/internal/config"
	"adbudget/internal/db"
	"adbudget/internal/handlers"
	"adbudget/internal/jobs"
	"adbudget/internal/services"
	"adbudget/internal/store"
	"adbudget/internal/websocket"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := newLogger(cfg)

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	campaigns := store.NewCampaignStore(database)
	accounts := store.NewAccountStore(database)
	adGroups := store.NewAdGroupStore(database)
	sources := store.NewSourceStore(database)
	settings := store.NewSettingsStore(database)
	credits := store.NewCreditStore(database)
	budgets := store.NewBudgetStore(database)
	statements := store.NewStatementStore(database)
	spend := store.NewSpendStore(database)
	rates := store.NewExchangeRateStore(database)
	views := store.NewMaterializedViewStore(database)
	autopilotLogs := store.NewAutopilotLogStore(database)
	notifications := store.NewNotificationStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	exchange := services.NewExchangeService(rates)
	attribution := services.NewAttributionService(txRunner, budgets, credits, statements, spend, exchange, logger)
	monitor := services.NewMonitorService(budgets, statements, views, logger)
	stops := services.NewCampaignStopService(txRunner, campaigns, accounts, adGroups, sources, settings,
		budgets, credits, statements, notifications, services.LogSender{Logger: logger}, logger)
	pilot := services.NewAutopilotService(txRunner, campaigns, adGroups, sources, settings, spend,
		autopilotLogs, logger, rand.New(rand.NewSource(time.Now().UnixNano())))

	lease := jobs.NewRedisLease(rdb, cfg.HeartbeatTTL(), logger)
	scheduler := jobs.NewScheduler(jobs.Config{
		Interval:              cfg.JobInterval,
		Workers:               cfg.JobWorkers,
		HeartbeatTTL:          cfg.HeartbeatTTL(),
		PacingDayRange:        cfg.PacingDayRange,
		PacingThreshold:       cfg.PacingThresholdDecimal(),
		FirstInMonthThreshold: cfg.FirstInMonthThresholdDecimal(),
	}, lease, campaigns, attribution, stops, pilot, monitor, hub, logger)

	jobCtx, stopJobs := context.WithCancel(context.Background())
	go scheduler.Start(jobCtx)

	handler := handlers.New(cfg, campaigns, attribution, monitor, scheduler, hub, logger)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("budget core API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	stopJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
