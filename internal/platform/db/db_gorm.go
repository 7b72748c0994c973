// Package db opens the relational store and runs schema migration.
package db

import (
	"fmt"
	"log"
	"os"
	"time"

	gpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	detectionadapters "crossmarket_backend/internal/feature/detection/adapters"
	patternadapters "crossmarket_backend/internal/feature/patterns/adapters"
	predictionadapters "crossmarket_backend/internal/feature/predictions/adapters"
	priceadapters "crossmarket_backend/internal/feature/prices/adapters"
	signaladapters "crossmarket_backend/internal/feature/signals/adapters"
)

// OpenDB connects to Postgres with a bounded retry window and optionally runs
// migrations. Connection parameters come from the environment.
func OpenDB() *gorm.DB {
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	user := os.Getenv("DB_USER")
	pass := os.Getenv("DB_PASSWORD")
	name := os.Getenv("DB_NAME")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		host, port, user, pass, name)

	var (
		db  *gorm.DB
		err error
	)

	deadline := time.Now().Add(60 * time.Second)
	for {
		db, err = gorm.Open(gpostgres.Open(dsn), &gorm.Config{})
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			log.Fatalf("DB connect failed after 60s: %v", err)
		}
		log.Printf("DB connect failed, retrying...: %v", err)
		time.Sleep(3 * time.Second)
	}

	if os.Getenv("RUN_MIGRATIONS") == "true" {
		if err := db.AutoMigrate(
			&priceadapters.DriverPriceModel{},
			&priceadapters.TargetSessionModel{},
			&patternadapters.PatternModel{},
			&predictionadapters.PredictionModel{},
			&predictionadapters.GenerationModel{},
			&signaladapters.CombinedAlertModel{},
			&detectionadapters.JobRunModel{},
		); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
	}

	return db
}
