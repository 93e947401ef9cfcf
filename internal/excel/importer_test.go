package excel

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/schoolgrid/timetable-back/internal/db"
	"github.com/schoolgrid/timetable-back/internal/models"
	"github.com/schoolgrid/timetable-back/internal/schedule"
	"github.com/schoolgrid/timetable-back/internal/slots"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func newTestImporter(t *testing.T) (*Importer, *gorm.DB) {
	t.Helper()
	gdb := openTestDB(t)
	logger := zap.NewNop()
	return NewImporter(gdb, slots.NewRegistry(gdb, logger), schedule.NewGrid(gdb), logger), gdb
}

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	header := []any{"Class", "Day", "Slot", "Start", "End", "Subject", "Teacher", "Room"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("write row %d: %v", i, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("serialize workbook: %v", err)
	}
	return &buf
}

func TestImport_CreatesSlotsSubjectsAndEntries(t *testing.T) {
	im, gdb := newTestImporter(t)
	ctx := context.Background()

	buf := workbook(t, [][]any{
		{"10A", "Monday", "1st", "09:00", "10:00", "Math", "t1@school.test", "201"},
		{"10B", "Monday", "1st", "09:00", "10:00", "Physics", "t2@school.test", "105"},
		{"10A", "Tuesday", "1st", "09:00", "10:00", "Math", "t1@school.test", "201"},
	})

	report, err := im.Import(ctx, buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(report.RowErrors) != 0 {
		t.Fatalf("unexpected row errors: %+v", report.RowErrors)
	}
	// Monday 09:00 is shared by both classes, Tuesday gets its own slot.
	if report.SlotsCreated != 2 {
		t.Errorf("slots created = %d, want 2", report.SlotsCreated)
	}
	if report.EntriesCreated != 3 {
		t.Errorf("entries created = %d, want 3", report.EntriesCreated)
	}

	var teacher models.User
	if err := gdb.Where("email = ?", "t1@school.test").First(&teacher).Error; err != nil {
		t.Fatalf("teacher not provisioned: %v", err)
	}
	if teacher.Role != models.RoleTeacher {
		t.Errorf("provisioned role = %s, want TEACHER", teacher.Role)
	}

	var subjects int64
	gdb.Model(&models.Subject{}).Count(&subjects)
	if subjects != 2 {
		t.Errorf("subjects = %d, want 2 (Math reused across days)", subjects)
	}
}

func TestImport_CollectsRowErrorsAndContinues(t *testing.T) {
	im, gdb := newTestImporter(t)
	ctx := context.Background()

	buf := workbook(t, [][]any{
		{"10A", "Monday", "1st", "09:00", "10:00", "Math", "t1@school.test", "201"},
		// Overlapping interval on the same day.
		{"10B", "Monday", "odd", "09:30", "10:30", "Physics", "t2@school.test", "105"},
		// Same cell as row one.
		{"10A", "Monday", "1st", "09:00", "10:00", "Physics", "t2@school.test", "105"},
		// Unknown day.
		{"10A", "Caturday", "1st", "09:00", "10:00", "Math", "t1@school.test", "201"},
		// Missing columns.
		{"10A", "Monday"},
	})

	report, err := im.Import(ctx, buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.EntriesCreated != 1 {
		t.Errorf("entries created = %d, want 1", report.EntriesCreated)
	}
	if len(report.RowErrors) != 4 {
		t.Fatalf("row errors = %+v, want 4", report.RowErrors)
	}
	// Row numbers are 1-based workbook rows (header is row 1).
	if report.RowErrors[0].Row != 3 {
		t.Errorf("first error row = %d, want 3", report.RowErrors[0].Row)
	}

	var entries int64
	gdb.Model(&models.ScheduleEntry{}).Count(&entries)
	if entries != 1 {
		t.Errorf("entries in db = %d, want 1", entries)
	}
}

func TestImport_RejectsGarbageInput(t *testing.T) {
	im, _ := newTestImporter(t)
	if _, err := im.Import(context.Background(), strings.NewReader("not a workbook")); err == nil {
		t.Fatal("expected error for non-xlsx input")
	}
}
