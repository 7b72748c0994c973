package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"

	"crossmarket_backend/internal/app/di"
	infradb "crossmarket_backend/internal/platform/db"
	infraredis "crossmarket_backend/internal/platform/redis"
)

// One-shot detection run, for cron jobs outside the server process and for
// backfilling after an ingest.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[WARN] .env not found, using environment as-is")
	}

	db := infradb.OpenDB()

	var rdb *redisv9.Client
	if tmp, err := infraredis.NewRedisClient(); err != nil {
		log.Println("[WARN] Redis unavailable. Running without cache.")
	} else {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Println("[ERROR] Failed to close Redis client:", err)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	detection := di.NewDetection(ctx, db, rdb)
	if err := detection.Run(ctx); err != nil {
		log.Fatal(err)
	}
	log.Println("detection ok")
}
