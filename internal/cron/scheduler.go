package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/schoolgrid/timetable-back/internal/exchange"
)

// Pending exchange requests nobody acted on for this long are cancelled.
const staleAfter = 14 * 24 * time.Hour

// StartJobs launches the background schedule and returns the runner so the
// caller can stop it on shutdown.
func StartJobs(manager *exchange.Manager, logger *zap.Logger) *cron.Cron {
	c := cron.New()

	c.AddFunc("@daily", func() {
		n, err := manager.ExpireStale(context.Background(), staleAfter)
		if err != nil {
			logger.Error("stale request sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("stale request sweep done", zap.Int64("cancelled", n))
		}
	})

	c.Start()
	return c
}
