package main

import (
	"log"

	"github.com/jmordret/macave/internal/batch"
	"github.com/jmordret/macave/internal/config"
	"github.com/jmordret/macave/internal/db"
	extractionhttp "github.com/jmordret/macave/internal/extraction/http"
	"github.com/jmordret/macave/internal/logging"
	"github.com/jmordret/macave/internal/photostore/local"
	"github.com/jmordret/macave/internal/service"
	"github.com/jmordret/macave/internal/store"
	"github.com/jmordret/macave/internal/web"
)

func main() {
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	bottleStore := store.NewBottleStore(database)
	zoneStore := store.NewZoneStore(database)

	photoStg, err := local.NewStore(cfg.PhotoPath)
	if err != nil {
		logger.Error("failed to initialize photo store", "error", err)
		return
	}

	extractor := extractionhttp.NewClient(cfg.ExtractionURL, cfg.ExtractionAPIKey)
	batchSvc := batch.NewService(extractor, bottleStore, logger, batch.Config{
		Workers:           cfg.BatchWorkers,
		ExtractionTimeout: cfg.ExtractionTimeout,
	})

	cellarService := service.NewCellarService(bottleStore, zoneStore, photoStg, extractor, batchSvc, logger)
	server := web.NewServer(cellarService, photoStg, logger)

	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}
