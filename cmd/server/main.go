package main

import (
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/schoolgrid/timetable-back/internal/api"
	"github.com/schoolgrid/timetable-back/internal/config"
	"github.com/schoolgrid/timetable-back/internal/cron"
	"github.com/schoolgrid/timetable-back/internal/db"
	"github.com/schoolgrid/timetable-back/internal/exchange"
	"github.com/schoolgrid/timetable-back/internal/excel"
	"github.com/schoolgrid/timetable-back/internal/logging"
	"github.com/schoolgrid/timetable-back/internal/notify"
	"github.com/schoolgrid/timetable-back/internal/schedule"
	"github.com/schoolgrid/timetable-back/internal/slots"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.AppEnv)
	defer logger.Sync()

	if envErr != nil {
		logger.Warn("no .env file found, using system env")
	}

	if err := db.Init(cfg.DBUrl); err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}

	gateway := notify.NewLogGateway(logger)
	registry := slots.NewRegistry(db.DB, logger)
	grid := schedule.NewGrid(db.DB)
	executor := exchange.NewExecutor(db.DB, logger)
	manager := exchange.NewManager(db.DB, grid, executor, gateway, logger)
	importer := excel.NewImporter(db.DB, registry, grid, logger)

	h := api.NewHandlers(cfg, registry, grid, manager, importer, logger)
	r := api.SetupRouter(cfg, h)

	// Start cron jobs
	cron.StartJobs(manager, logger)

	logger.Info("server running", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
