package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"crossmarket_backend/internal/app/di"
	priceadapters "crossmarket_backend/internal/feature/prices/adapters"
	pricesusecase "crossmarket_backend/internal/feature/prices/usecase"
	infradb "crossmarket_backend/internal/platform/db"
	"crossmarket_backend/internal/shared/ratelimiter"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[WARN] .env not found, using environment as-is")
	}

	db := infradb.OpenDB()

	driverRepo := priceadapters.NewDriverPriceRepository(db)
	targetRepo := priceadapters.NewTargetSessionRepository(db)

	// Free-tier sources; stay well under their per-minute quota.
	limiter := ratelimiter.NewRateLimiter(8, time.Minute)

	uc := pricesusecase.NewIngestUsecase(di.NewDriverFeed(), di.NewTargetFeed(),
		driverRepo, targetRepo, limiter)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := uc.IngestAll(ctx, di.DriverSymbols(), di.TargetSymbols()); err != nil {
		log.Fatal(err)
	}
	log.Println("ingest ok")
}
