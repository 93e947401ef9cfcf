package slots

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/schoolgrid/timetable-back/internal/apperr"
	"github.com/schoolgrid/timetable-back/internal/db"
	"github.com/schoolgrid/timetable-back/internal/models"
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

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(openTestDB(t), zap.NewNop())
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd int
		want                       bool
	}{
		{"disjoint", 540, 600, 660, 720, false},
		{"touching end to start", 540, 600, 600, 660, false},
		{"touching start to end", 600, 660, 540, 600, false},
		{"partial overlap", 540, 600, 570, 630, true},
		{"partial overlap reversed", 570, 630, 540, 600, true},
		{"nested", 540, 720, 570, 600, true},
		{"nesting", 570, 600, 540, 720, true},
		{"identical", 540, 600, 540, 600, true},
		{"one minute overlap", 540, 600, 599, 660, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Errorf("Overlaps(%d,%d,%d,%d) = %v, want %v",
					tc.aStart, tc.aEnd, tc.bStart, tc.bEnd, got, tc.want)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	got, err := ParseClock("09:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 9*60+30 {
		t.Errorf("ParseClock(09:30) = %d, want %d", got, 9*60+30)
	}

	for _, bad := range []string{"", "9am", "25:00", "09:61"} {
		if _, err := ParseClock(bad); err == nil {
			t.Errorf("ParseClock(%q) should fail", bad)
		}
	}
}

func TestCreate_RejectsOverlapCitingConflictingSlot(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	a, err := r.Create(ctx, CreateSlotInput{Label: "1st period", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"})
	if err != nil {
		t.Fatalf("create slot A: %v", err)
	}

	_, err = r.Create(ctx, CreateSlotInput{Label: "B", DayOfWeek: 1, StartTime: "09:30", EndTime: "10:30"})
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	details, ok := apperr.Details(err).(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", apperr.Details(err))
	}
	conflicting, ok := details["conflicting_slot"].(*models.TimeSlot)
	if !ok || conflicting.ID != a.ID {
		t.Errorf("conflict should cite slot %d, got %+v", a.ID, details["conflicting_slot"])
	}

	// Same interval on another day is fine.
	if _, err := r.Create(ctx, CreateSlotInput{Label: "C", DayOfWeek: 2, StartTime: "09:30", EndTime: "10:30"}); err != nil {
		t.Fatalf("create on another day: %v", err)
	}

	// Touching intervals do not overlap.
	if _, err := r.Create(ctx, CreateSlotInput{Label: "2nd period", DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00"}); err != nil {
		t.Fatalf("create touching slot: %v", err)
	}
}

func TestCreate_RejectsInvalidInterval(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	cases := []CreateSlotInput{
		{Label: "backwards", DayOfWeek: 1, StartTime: "10:00", EndTime: "09:00"},
		{Label: "empty", DayOfWeek: 1, StartTime: "09:00", EndTime: "09:00"},
		{Label: "bad day", DayOfWeek: 6, StartTime: "09:00", EndTime: "10:00"},
		{Label: "bad clock", DayOfWeek: 1, StartTime: "nine", EndTime: "10:00"},
	}
	for _, in := range cases {
		if _, err := r.Create(ctx, in); !apperr.IsValidation(err) {
			t.Errorf("%s: expected validation error, got %v", in.Label, err)
		}
	}
}

func TestUpdate_RevalidatesExcludingSelf(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	a, err := r.Create(ctx, CreateSlotInput{Label: "A", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"})
	if err != nil {
		t.Fatalf("create A: %v", err)
	}
	if _, err := r.Create(ctx, CreateSlotInput{Label: "B", DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00"}); err != nil {
		t.Fatalf("create B: %v", err)
	}

	// Shrinking A inside its own old interval must not conflict with itself.
	newEnd := "09:45"
	updated, err := r.Update(ctx, a.ID, UpdateSlotInput{EndTime: &newEnd})
	if err != nil {
		t.Fatalf("shrink A: %v", err)
	}
	if updated.EndTime != "09:45" {
		t.Errorf("EndTime = %s, want 09:45", updated.EndTime)
	}

	// Growing A into B must conflict.
	intoB := "10:30"
	if _, err := r.Update(ctx, a.ID, UpdateSlotInput{EndTime: &intoB}); !apperr.IsConflict(err) {
		t.Errorf("expected conflict growing into B, got %v", err)
	}

	if _, err := r.Update(ctx, 999, UpdateSlotInput{EndTime: &newEnd}); !apperr.IsNotFound(err) {
		t.Errorf("expected not found for missing slot, got %v", err)
	}
}

func TestDelete_BlockedByReferencingEntries(t *testing.T) {
	gdb := openTestDB(t)
	r := NewRegistry(gdb, zap.NewNop())
	ctx := context.Background()

	slot, err := r.Create(ctx, CreateSlotInput{Label: "A", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	teacher := models.User{Email: "t1@school.test", Role: models.RoleTeacher}
	if err := gdb.Create(&teacher).Error; err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	subject := models.Subject{Name: "Math", TeacherID: teacher.ID}
	if err := gdb.Create(&subject).Error; err != nil {
		t.Fatalf("create subject: %v", err)
	}
	entry := models.ScheduleEntry{ClassName: "10A", DayOfWeek: 1, TimeSlotID: slot.ID, SubjectID: subject.ID}
	if err := gdb.Create(&entry).Error; err != nil {
		t.Fatalf("create entry: %v", err)
	}

	err = r.Delete(ctx, slot.ID)
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict deleting referenced slot, got %v", err)
	}
	details := apperr.Details(err).(map[string]any)
	blocking := details["blocking_entries"].([]models.ScheduleEntry)
	if len(blocking) != 1 || blocking[0].ID != entry.ID {
		t.Errorf("blocking entries = %+v, want entry %d", blocking, entry.ID)
	}

	if err := gdb.Delete(&models.ScheduleEntry{}, entry.ID).Error; err != nil {
		t.Fatalf("remove entry: %v", err)
	}
	if err := r.Delete(ctx, slot.ID); err != nil {
		t.Fatalf("delete unreferenced slot: %v", err)
	}
	if err := r.Delete(ctx, slot.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestCreate_ConcurrentSameDayWritersKeepInvariant(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	inputs := []CreateSlotInput{
		{Label: "A", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"},
		{Label: "B", DayOfWeek: 1, StartTime: "09:30", EndTime: "10:30"},
	}
	errs := make(chan error, len(inputs))
	for _, in := range inputs {
		go func(in CreateSlotInput) {
			_, err := r.Create(ctx, in)
			errs <- err
		}(in)
	}
	var created int
	for range inputs {
		if err := <-errs; err == nil {
			created++
		}
	}

	// Whatever the interleaving, overlapping slots must never both commit
	// and every nil error must correspond to a committed row.
	var persisted []models.TimeSlot
	if err := r.db.Where("day_of_week = ?", 1).Find(&persisted).Error; err != nil {
		t.Fatalf("load slots: %v", err)
	}
	if len(persisted) != created {
		t.Errorf("persisted %d slots but %d creates succeeded", len(persisted), created)
	}
	if len(persisted) > 1 {
		t.Errorf("overlapping slots committed: %+v", persisted)
	}
}

func TestCheckOverlap(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	a, err := r.Create(ctx, CreateSlotInput{Label: "A", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	conflict, err := r.CheckOverlap(ctx, 1, "09:30", "10:30", 0)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if conflict == nil || conflict.ID != a.ID {
		t.Errorf("expected conflict with slot %d, got %+v", a.ID, conflict)
	}

	// Excluding the slot itself clears the conflict.
	conflict, err = r.CheckOverlap(ctx, 1, "09:30", "10:30", a.ID)
	if err != nil {
		t.Fatalf("check with exclude: %v", err)
	}
	if conflict != nil {
		t.Errorf("exclude id should suppress self conflict, got %+v", conflict)
	}

	// Other days never conflict.
	conflict, err = r.CheckOverlap(ctx, 3, "09:00", "10:00", 0)
	if err != nil {
		t.Fatalf("check other day: %v", err)
	}
	if conflict != nil {
		t.Errorf("no slots on wednesday, got %+v", conflict)
	}
}

func TestList_OrderedByDayAndStart(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	inputs := []CreateSlotInput{
		{Label: "tue-late", DayOfWeek: 2, StartTime: "11:00", EndTime: "12:00"},
		{Label: "mon-late", DayOfWeek: 1, StartTime: "11:00", EndTime: "12:00"},
		{Label: "mon-early", DayOfWeek: 1, StartTime: "08:00", EndTime: "09:00"},
	}
	for _, in := range inputs {
		if _, err := r.Create(ctx, in); err != nil {
			t.Fatalf("create %s: %v", in.Label, err)
		}
	}

	out, err := r.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var labels []string
	for _, s := range out {
		labels = append(labels, s.Label)
	}
	want := []string{"mon-early", "mon-late", "tue-late"}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("order = %v, want %v", labels, want)
		}
	}

	monday, err := r.List(ctx, 1)
	if err != nil {
		t.Fatalf("list monday: %v", err)
	}
	if len(monday) != 2 {
		t.Errorf("monday slots = %d, want 2", len(monday))
	}
}
