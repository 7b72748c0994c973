package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"crossmarket_backend/internal/app/di"
	"crossmarket_backend/internal/app/router"
	detectionhandler "crossmarket_backend/internal/feature/detection/transport/handler"
	patternhandler "crossmarket_backend/internal/feature/patterns/transport/handler"
	patternusecase "crossmarket_backend/internal/feature/patterns/usecase"
	predictionadapters "crossmarket_backend/internal/feature/predictions/adapters"
	predictionhandler "crossmarket_backend/internal/feature/predictions/transport/handler"
	predusecase "crossmarket_backend/internal/feature/predictions/usecase"
	signaladapters "crossmarket_backend/internal/feature/signals/adapters"
	signalhandler "crossmarket_backend/internal/feature/signals/transport/handler"
	signalusecase "crossmarket_backend/internal/feature/signals/usecase"
	infradb "crossmarket_backend/internal/platform/db"
	infraredis "crossmarket_backend/internal/platform/redis"
)

// Cron schedules, in UTC. Detection runs hourly so the forming off-session
// window is re-measured as fresh driver prices arrive; the watchdog closes
// runs whose process died.
const (
	detectionSchedule = "5 * * * *"
	watchdogSchedule  = "35 * * * *"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[WARN] .env not found, using environment as-is")
	}

	// db
	db := infradb.OpenDB()

	// Redis
	var rdb *redisv9.Client
	if tmp, err := infraredis.NewRedisClient(); err != nil {
		log.Println("[WARN] Redis unavailable. Running without cache.")
		rdb = nil
	} else {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Println("[ERROR] Failed to close Redis client:", err)
			}
		}()
	}

	ctx := context.Background()

	// Pipeline
	detection := di.NewDetection(ctx, db, rdb)

	// Read-side usecases
	patternRepo := di.NewPatternRepository(db, rdb)
	catalog := patternusecase.NewCatalogUsecase(patternRepo)

	predRepo := predictionadapters.NewPredictionRepository(db)
	generate := predusecase.NewGenerateUsecase(predRepo)
	validate := predusecase.NewValidateUsecase(predRepo, catalog, 0)

	aggregate := signalusecase.NewAggregateUsecase(signaladapters.NewAlertRepository(db))

	// Handler
	detectionH := detectionhandler.NewDetectionHandler(detection)
	patternH := patternhandler.NewPatternHandler(catalog)
	predictionH := predictionhandler.NewPredictionHandler(generate, validate)
	alertH := signalhandler.NewAlertHandler(aggregate)

	// Scheduled runs
	c := cron.New()
	if _, err := c.AddFunc(detectionSchedule, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := detection.Run(runCtx); err != nil {
			slog.Error("scheduled detection run failed", "error", err)
		}
	}); err != nil {
		log.Fatal("failed to schedule detection:", err)
	}
	if _, err := c.AddFunc(watchdogSchedule, func() {
		wCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if n, err := detection.Watchdog(wCtx, 0); err != nil {
			slog.Error("watchdog sweep failed", "error", err)
		} else if n > 0 {
			slog.Warn("watchdog closed stale runs", "count", n)
		}
	}); err != nil {
		log.Fatal("failed to schedule watchdog:", err)
	}
	c.Start()
	defer c.Stop()

	r := router.NewRouter(detectionH, patternH, predictionH, alertH)

	if err := r.Run(":8080"); err != nil {
		log.Fatal(err)
	}
}
