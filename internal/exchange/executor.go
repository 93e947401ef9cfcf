package exchange

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/schoolgrid/timetable-back/internal/apperr"
	"github.com/schoolgrid/timetable-back/internal/models"
)

// Executor performs the grid mutation of an approved exchange: the two
// entries trade their SubjectID while keeping their class, slot and room.
// This is the only place in the subsystem where two entries are written
// together, and it is always all-or-nothing.
type Executor struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewExecutor(gdb *gorm.DB, logger *zap.Logger) *Executor {
	return &Executor{db: gdb, logger: logger}
}

// Swap exchanges the subjects of the two entries in its own transaction.
func (e *Executor) Swap(ctx context.Context, fromEntryID, toEntryID uint) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return e.SwapTx(ctx, tx, fromEntryID, toEntryID)
	})
}

// SwapTx exchanges the subjects inside the caller's transaction. The
// request manager uses this so the swap commits or rolls back together
// with the status transition.
func (e *Executor) SwapTx(_ context.Context, tx *gorm.DB, fromEntryID, toEntryID uint) error {
	var from, to models.ScheduleEntry
	if err := tx.First(&from, fromEntryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("schedule entry %d not found", fromEntryID)
		}
		return apperr.Transaction(err, "load entry %d", fromEntryID)
	}
	if err := tx.First(&to, toEntryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("schedule entry %d not found", toEntryID)
		}
		return apperr.Transaction(err, "load entry %d", toEntryID)
	}

	if err := tx.Model(&models.ScheduleEntry{}).Where("id = ?", from.ID).
		Update("subject_id", to.SubjectID).Error; err != nil {
		return apperr.Transaction(err, "update entry %d", from.ID)
	}
	if err := tx.Model(&models.ScheduleEntry{}).Where("id = ?", to.ID).
		Update("subject_id", from.SubjectID).Error; err != nil {
		return apperr.Transaction(err, "update entry %d", to.ID)
	}

	e.logger.Info("entries swapped",
		zap.Uint("from_entry_id", from.ID),
		zap.Uint("to_entry_id", to.ID),
		zap.Uint("from_subject_id", from.SubjectID),
		zap.Uint("to_subject_id", to.SubjectID),
	)
	return nil
}
