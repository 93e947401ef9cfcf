package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/schoolgrid/timetable-back/internal/models"
)

var DB *gorm.DB

func Init(dsn string) error {
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return err
	}
	return Migrate(DB)
}

// Migrate creates/updates the schema. Shared with the test harness, which
// runs it against an in-memory database.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Subject{},
		&models.TimeSlot{},
		&models.ScheduleEntry{},
		&models.ExchangeRequest{},
	); err != nil {
		return err
	}
	return createPendingPairIndex(gdb)
}

// createPendingPairIndex enforces at most one PENDING request per unordered
// entry pair at the database, so two concurrent creates cannot both slip past
// the application-level duplicate check. Partial expression indexes cannot be
// expressed through gorm tags; the pair normalization differs per dialect
// (LEAST/GREATEST vs sqlite's scalar MIN/MAX).
func createPendingPairIndex(gdb *gorm.DB) error {
	pair := "LEAST(from_entry_id, to_entry_id), GREATEST(from_entry_id, to_entry_id)"
	if gdb.Dialector.Name() == "sqlite" {
		pair = "MIN(from_entry_id, to_entry_id), MAX(from_entry_id, to_entry_id)"
	}
	return gdb.Exec(fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_exchange_pending_pair ON exchange_requests (%s) WHERE status = 'PENDING'",
		pair,
	)).Error
}

func Ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
