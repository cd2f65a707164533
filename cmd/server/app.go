package main

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/jengzang/civic-map/internal/config"
	"github.com/jengzang/civic-map/internal/database"
	"github.com/jengzang/civic-map/internal/logging"
	"github.com/jengzang/civic-map/internal/metrics"
	"github.com/jengzang/civic-map/internal/reportsapi"
	"github.com/jengzang/civic-map/internal/repository"
	"github.com/jengzang/civic-map/internal/service"
)

const sourceName = "reports-api"

// app holds the dependencies shared by every subcommand
type app struct {
	cfg     *config.Config
	log     logging.Logger
	db      *sql.DB
	metrics *metrics.Metrics
	reports *service.ReportService
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(log)
	if cfg.InsecureSecret() {
		log.Warn("auth.jwt_secret is the built-in placeholder; set CIVICMAP_AUTH_JWT_SECRET")
	}

	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	var store service.ReportStore
	if cfg.Reports.CacheEnabled {
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.NewMigrationManager(db, log).RunMigrations(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		a.db = db
		store = repository.NewReportRepository(db)
	}

	client := reportsapi.NewClient(cfg.Reports.Config, &http.Client{Timeout: cfg.Reports.Timeout}, log)
	a.reports = service.NewReportService(client, sourceName, store, a.metrics, log)
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("failed to close database", logging.Err(err))
		}
	}
}
