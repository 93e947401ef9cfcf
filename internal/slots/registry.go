package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/schoolgrid/timetable-back/internal/apperr"
	"github.com/schoolgrid/timetable-back/internal/models"
)

// Registry owns TimeSlot definitions and guarantees that slots of the same
// weekday never overlap.
type Registry struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRegistry(gdb *gorm.DB, logger *zap.Logger) *Registry {
	return &Registry{db: gdb, logger: logger}
}

// ParseClock parses "15:04" into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("bad clock value %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// slotLockClass namespaces the advisory locks guarding per-day slot writes.
const slotLockClass = 7541

// lockDay serializes slot writers of one weekday for the rest of the
// transaction. Under READ COMMITTED two transactions can both run the
// overlap check before either insert is visible and both commit; the range
// predicate has no row to lock, so an advisory lock stands in. No-op on
// drivers without advisory locks (sqlite already has a single writer).
func lockDay(tx *gorm.DB, day int) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(?, ?)", slotLockClass, day).Error
}

type CreateSlotInput struct {
	Label     string `json:"label" binding:"required"`
	DayOfWeek int    `json:"day_of_week" binding:"required,min=1,max=5"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

type UpdateSlotInput struct {
	Label     *string `json:"label"`
	DayOfWeek *int    `json:"day_of_week" binding:"omitempty,min=1,max=5"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
}

// Create validates the interval and inserts the slot. The overlap check and
// the insert run in one transaction so two concurrent creates cannot both
// pass the check and both commit.
func (r *Registry) Create(ctx context.Context, in CreateSlotInput) (*models.TimeSlot, error) {
	start, end, err := validateInterval(in.DayOfWeek, in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}

	slot := models.TimeSlot{
		Label:     in.Label,
		DayOfWeek: in.DayOfWeek,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockDay(tx, in.DayOfWeek); err != nil {
			return err
		}
		if err := checkOverlap(tx, in.DayOfWeek, start, end, 0); err != nil {
			return err
		}
		return tx.Create(&slot).Error
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("time slot created",
		zap.Uint("slot_id", slot.ID),
		zap.Int("day", slot.DayOfWeek),
		zap.String("interval", slot.StartTime+"-"+slot.EndTime),
	)
	return &slot, nil
}

// Update applies the patch and re-validates the effective interval against
// all other slots of the effective day.
func (r *Registry) Update(ctx context.Context, id uint, in UpdateSlotInput) (*models.TimeSlot, error) {
	var slot models.TimeSlot

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&slot, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("time slot %d not found", id)
			}
			return err
		}

		if in.Label != nil {
			slot.Label = *in.Label
		}
		if in.DayOfWeek != nil {
			slot.DayOfWeek = *in.DayOfWeek
		}
		if in.StartTime != nil {
			slot.StartTime = *in.StartTime
		}
		if in.EndTime != nil {
			slot.EndTime = *in.EndTime
		}

		start, end, err := validateInterval(slot.DayOfWeek, slot.StartTime, slot.EndTime)
		if err != nil {
			return err
		}
		if err := lockDay(tx, slot.DayOfWeek); err != nil {
			return err
		}
		if err := checkOverlap(tx, slot.DayOfWeek, start, end, slot.ID); err != nil {
			return err
		}
		return tx.Save(&slot).Error
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// Delete removes the slot unless schedule entries still reference it; in
// that case the blocking entries are returned on the conflict error.
func (r *Registry) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot models.TimeSlot
		if err := tx.First(&slot, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("time slot %d not found", id)
			}
			return err
		}

		var blocking []models.ScheduleEntry
		if err := tx.Where("time_slot_id = ?", id).Find(&blocking).Error; err != nil {
			return err
		}
		if len(blocking) > 0 {
			return apperr.Conflict(
				map[string]any{"blocking_entries": blocking},
				"time slot %d is referenced by %d schedule entries", id, len(blocking),
			)
		}
		return tx.Delete(&models.TimeSlot{}, id).Error
	})
}

// List returns slots ordered by day then start time; day = 0 means all days.
func (r *Registry) List(ctx context.Context, day int) ([]models.TimeSlot, error) {
	q := r.db.WithContext(ctx).Order("day_of_week, start_time")
	if day != 0 {
		if !models.ValidDay(day) {
			return nil, apperr.Validation("day_of_week must be 1..5, got %d", day)
		}
		q = q.Where("day_of_week = ?", day)
	}
	var out []models.TimeSlot
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CheckOverlap reports whether [start, end) on day intersects any existing
// slot other than excludeID, returning the first conflicting slot if so.
func (r *Registry) CheckOverlap(ctx context.Context, day int, startClock, endClock string, excludeID uint) (*models.TimeSlot, error) {
	start, end, err := validateInterval(day, startClock, endClock)
	if err != nil {
		return nil, err
	}
	conflict, err := findConflicting(r.db.WithContext(ctx), day, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	return conflict, nil
}

func validateInterval(day int, startClock, endClock string) (start, end int, err error) {
	if !models.ValidDay(day) {
		return 0, 0, apperr.Validation("day_of_week must be 1..5, got %d", day)
	}
	start, err = ParseClock(startClock)
	if err != nil {
		return 0, 0, apperr.Validation("invalid start_time: %v", err)
	}
	end, err = ParseClock(endClock)
	if err != nil {
		return 0, 0, apperr.Validation("invalid end_time: %v", err)
	}
	if end <= start {
		return 0, 0, apperr.Validation("end_time %s must be after start_time %s", endClock, startClock)
	}
	return start, end, nil
}

func findConflicting(tx *gorm.DB, day, start, end int, excludeID uint) (*models.TimeSlot, error) {
	q := tx.Where("day_of_week = ?", day)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var existing []models.TimeSlot
	if err := q.Find(&existing).Error; err != nil {
		return nil, err
	}
	for i := range existing {
		s, err := ParseClock(existing[i].StartTime)
		if err != nil {
			return nil, err
		}
		e, err := ParseClock(existing[i].EndTime)
		if err != nil {
			return nil, err
		}
		if Overlaps(start, end, s, e) {
			return &existing[i], nil
		}
	}
	return nil, nil
}

func checkOverlap(tx *gorm.DB, day, start, end int, excludeID uint) error {
	conflict, err := findConflicting(tx, day, start, end, excludeID)
	if err != nil {
		return err
	}
	if conflict != nil {
		return apperr.Conflict(
			map[string]any{"conflicting_slot": conflict},
			"interval overlaps slot %d (%s %s-%s)",
			conflict.ID, models.DayName(conflict.DayOfWeek), conflict.StartTime, conflict.EndTime,
		)
	}
	return nil
}
