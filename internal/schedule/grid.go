package schedule

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"

	"github.com/schoolgrid/timetable-back/internal/apperr"
	"github.com/schoolgrid/timetable-back/internal/models"
)

// Grid is the source of truth for which subject occupies which
// class+day+slot cell, and resolves entry ownership for authorization.
// The teacher owning an entry is the teacher of the entry's subject.
type Grid struct {
	db *gorm.DB
}

func NewGrid(gdb *gorm.DB) *Grid {
	return &Grid{db: gdb}
}

type EntryFilter struct {
	ClassName string
	TeacherID uint
	Day       int
}

// Entries returns schedule entries matching the filter, with subject,
// teacher and slot loaded.
func (g *Grid) Entries(ctx context.Context, f EntryFilter) ([]models.ScheduleEntry, error) {
	q := g.db.WithContext(ctx).
		Select("schedule_entries.*").
		Preload("Subject.Teacher").
		Preload("TimeSlot").
		Joins("JOIN subjects ON subjects.id = schedule_entries.subject_id")

	if f.ClassName != "" {
		q = q.Where("schedule_entries.class_name = ?", f.ClassName)
	}
	if f.TeacherID != 0 {
		q = q.Where("subjects.teacher_id = ?", f.TeacherID)
	}
	if f.Day != 0 {
		if !models.ValidDay(f.Day) {
			return nil, apperr.Validation("day_of_week must be 1..5, got %d", f.Day)
		}
		q = q.Where("schedule_entries.day_of_week = ?", f.Day)
	}

	var entries []models.ScheduleEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Entry returns one entry with its subject, teacher and slot loaded.
func (g *Grid) Entry(ctx context.Context, id uint) (*models.ScheduleEntry, error) {
	var entry models.ScheduleEntry
	err := g.db.WithContext(ctx).
		Preload("Subject.Teacher").
		Preload("TimeSlot").
		First(&entry, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("schedule entry %d not found", id)
		}
		return nil, err
	}
	return &entry, nil
}

// OwnerOf returns the id of the teacher whose subject is assigned to the entry.
func (g *Grid) OwnerOf(ctx context.Context, entryID uint) (uint, error) {
	entry, err := g.Entry(ctx, entryID)
	if err != nil {
		return 0, err
	}
	return entry.Subject.TeacherID, nil
}

// IsOwnedBy reports whether userID is the owner of the entry.
func (g *Grid) IsOwnedBy(ctx context.Context, entryID, userID uint) (bool, error) {
	owner, err := g.OwnerOf(ctx, entryID)
	if err != nil {
		return false, err
	}
	return owner == userID, nil
}

type CreateEntryInput struct {
	ClassName  string `json:"class_name" binding:"required"`
	DayOfWeek  int    `json:"day_of_week" binding:"required,min=1,max=5"`
	TimeSlotID uint   `json:"time_slot_id" binding:"required"`
	SubjectID  uint   `json:"subject_id" binding:"required"`
	Room       string `json:"room"`
}

// CreateEntry inserts a grid cell. The slot must exist on the entry's day
// and the cell must be free.
func (g *Grid) CreateEntry(ctx context.Context, in CreateEntryInput) (*models.ScheduleEntry, error) {
	entry := models.ScheduleEntry{
		ClassName:  in.ClassName,
		DayOfWeek:  in.DayOfWeek,
		TimeSlotID: in.TimeSlotID,
		SubjectID:  in.SubjectID,
		Room:       in.Room,
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot models.TimeSlot
		if err := tx.First(&slot, in.TimeSlotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("time slot %d not found", in.TimeSlotID)
			}
			return err
		}
		if slot.DayOfWeek != in.DayOfWeek {
			return apperr.Validation("time slot %d belongs to %s, not %s",
				slot.ID, models.DayName(slot.DayOfWeek), models.DayName(in.DayOfWeek))
		}
		var subject models.Subject
		if err := tx.First(&subject, in.SubjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("subject %d not found", in.SubjectID)
			}
			return err
		}

		var occupied models.ScheduleEntry
		err := tx.Where("class_name = ? AND day_of_week = ? AND time_slot_id = ?",
			in.ClassName, in.DayOfWeek, in.TimeSlotID).First(&occupied).Error
		if err == nil {
			return apperr.Conflict(
				map[string]any{"existing_entry": occupied},
				"class %s already has entry %d in that slot", in.ClassName, occupied.ID,
			)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Cell is one grid position with the entries occupying it.
type Cell struct {
	Day       int                    `json:"day_of_week"`
	DayName   string                 `json:"day_name"`
	SlotID    uint                   `json:"time_slot_id"`
	SlotLabel string                 `json:"slot_label"`
	StartTime string                 `json:"start_time"`
	Entries   []models.ScheduleEntry `json:"entries"`
}

// GroupByDayAndSlot arranges entries into cells ordered explicitly by day
// Mon..Fri, then by slot start time. Entries inside a cell keep the order
// they arrived in. Entries must have TimeSlot loaded.
func GroupByDayAndSlot(entries []models.ScheduleEntry) []Cell {
	type key struct {
		day    int
		slotID uint
	}
	cells := make(map[key]*Cell)
	for _, e := range entries {
		k := key{day: e.DayOfWeek, slotID: e.TimeSlotID}
		c, ok := cells[k]
		if !ok {
			c = &Cell{
				Day:       e.DayOfWeek,
				DayName:   models.DayName(e.DayOfWeek),
				SlotID:    e.TimeSlotID,
				SlotLabel: e.TimeSlot.Label,
				StartTime: e.TimeSlot.StartTime,
			}
			cells[k] = c
		}
		c.Entries = append(c.Entries, e)
	}

	var out []Cell
	for _, day := range models.Weekdays {
		var dayCells []Cell
		for k, c := range cells {
			if k.day == day {
				dayCells = append(dayCells, *c)
			}
		}
		sort.SliceStable(dayCells, func(i, j int) bool {
			if dayCells[i].StartTime != dayCells[j].StartTime {
				return dayCells[i].StartTime < dayCells[j].StartTime
			}
			return dayCells[i].SlotID < dayCells[j].SlotID
		})
		out = append(out, dayCells...)
	}
	return out
}
