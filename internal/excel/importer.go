package excel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/schoolgrid/timetable-back/internal/apperr"
	"github.com/schoolgrid/timetable-back/internal/models"
	"github.com/schoolgrid/timetable-back/internal/schedule"
	"github.com/schoolgrid/timetable-back/internal/slots"
)

// Expected sheet layout (first sheet, header row first):
// Class | Day | Slot | Start | End | Subject | Teacher | Room
// Day is Monday..Friday or 1..5. Teacher is the account email; unknown
// teachers and subjects are provisioned on the fly.
const headerRows = 1

var dayByName = map[string]int{
	"monday": 1, "tuesday": 2, "wednesday": 3, "thursday": 4, "friday": 5,
	"1": 1, "2": 2, "3": 3, "4": 4, "5": 5,
}

// Importer loads a timetable workbook into the grid. Rows go through the
// same validation as the HTTP endpoints: slot intervals must not overlap and
// grid cells must be free.
type Importer struct {
	db       *gorm.DB
	registry *slots.Registry
	grid     *schedule.Grid
	logger   *zap.Logger
}

func NewImporter(gdb *gorm.DB, registry *slots.Registry, grid *schedule.Grid, logger *zap.Logger) *Importer {
	return &Importer{db: gdb, registry: registry, grid: grid, logger: logger}
}

type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type Report struct {
	SlotsCreated   int        `json:"slots_created"`
	EntriesCreated int        `json:"entries_created"`
	RowErrors      []RowError `json:"row_errors,omitempty"`
}

// Import parses the workbook and creates slots and entries. Bad rows are
// collected into the report; they do not abort the rest of the import.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Report, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validation("cannot open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Validation("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperr.Validation("cannot read sheet %s: %v", sheets[0], err)
	}

	report := &Report{}
	for i, row := range rows {
		if i < headerRows {
			continue
		}
		if err := im.importRow(ctx, row, report); err != nil {
			report.RowErrors = append(report.RowErrors, RowError{Row: i + 1, Message: err.Error()})
		}
	}

	im.logger.Info("timetable imported",
		zap.String("sheet", sheets[0]),
		zap.Int("slots_created", report.SlotsCreated),
		zap.Int("entries_created", report.EntriesCreated),
		zap.Int("row_errors", len(report.RowErrors)),
	)
	return report, nil
}

func (im *Importer) importRow(ctx context.Context, row []string, report *Report) error {
	if len(row) < 7 {
		return fmt.Errorf("expected at least 7 columns, got %d", len(row))
	}
	class := strings.TrimSpace(row[0])
	dayRaw := strings.TrimSpace(row[1])
	label := strings.TrimSpace(row[2])
	start := strings.TrimSpace(row[3])
	end := strings.TrimSpace(row[4])
	subjectName := strings.TrimSpace(row[5])
	teacherEmail := strings.TrimSpace(row[6])
	room := ""
	if len(row) > 7 {
		room = strings.TrimSpace(row[7])
	}

	if class == "" || subjectName == "" || teacherEmail == "" {
		return errors.New("class, subject and teacher columns must not be empty")
	}

	day, ok := dayByName[strings.ToLower(dayRaw)]
	if !ok {
		return fmt.Errorf("unknown day %q", dayRaw)
	}

	slot, created, err := im.ensureSlot(ctx, day, label, start, end)
	if err != nil {
		return err
	}
	if created {
		report.SlotsCreated++
	}

	subject, err := im.ensureSubject(ctx, subjectName, teacherEmail)
	if err != nil {
		return err
	}

	_, err = im.grid.CreateEntry(ctx, schedule.CreateEntryInput{
		ClassName:  class,
		DayOfWeek:  day,
		TimeSlotID: slot.ID,
		SubjectID:  subject.ID,
		Room:       room,
	})
	if err != nil {
		return err
	}
	report.EntriesCreated++
	return nil
}

// ensureSlot reuses an identical existing slot or creates the interval
// through the registry, so imported rows cannot smuggle in an overlap.
func (im *Importer) ensureSlot(ctx context.Context, day int, label, start, end string) (*models.TimeSlot, bool, error) {
	var existing models.TimeSlot
	err := im.db.WithContext(ctx).
		Where("day_of_week = ? AND start_time = ? AND end_time = ?", day, start, end).
		First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	if label == "" {
		label = fmt.Sprintf("%s-%s", start, end)
	}
	slot, err := im.registry.Create(ctx, slots.CreateSlotInput{
		Label:     label,
		DayOfWeek: day,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		return nil, false, err
	}
	return slot, true, nil
}

func (im *Importer) ensureSubject(ctx context.Context, name, teacherEmail string) (*models.Subject, error) {
	var teacher models.User
	err := im.db.WithContext(ctx).Where("email = ?", teacherEmail).First(&teacher).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		teacher = models.User{Email: teacherEmail, Role: models.RoleTeacher}
		if err := im.db.WithContext(ctx).Create(&teacher).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	var subject models.Subject
	err = im.db.WithContext(ctx).
		Where("name = ? AND teacher_id = ?", name, teacher.ID).
		First(&subject).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		subject = models.Subject{Name: name, TeacherID: teacher.ID}
		if err := im.db.WithContext(ctx).Create(&subject).Error; err != nil {
			return nil, err
		}
		return &subject, nil
	}
	if err != nil {
		return nil, err
	}
	return &subject, nil
}
