package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
)

// Actor is the resolved identity an operation runs as. Handlers build it from
// the auth middleware and pass it explicitly into every service call.
type Actor struct {
	ID   uint
	Role Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type User struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Name  string `json:"name"`
	Role  Role   `gorm:"size:16;not null;default:'TEACHER'" json:"role"`

	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"-"`
	Expiry       time.Time `json:"-"`
}

type Subject struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	TeacherID uint   `gorm:"not null;index" json:"teacher_id"`

	Teacher User `gorm:"foreignKey:TeacherID" json:"teacher,omitempty"`
}

// TimeSlot is one teaching period of a weekday. Intervals are half-open:
// a slot occupies [StartTime, EndTime), so 09:00-10:00 and 10:00-11:00 touch
// but do not overlap.
type TimeSlot struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Label     string `gorm:"not null" json:"label"`
	DayOfWeek int    `gorm:"not null;index" json:"day_of_week"` // 1=Mon .. 5=Fri
	StartTime string `gorm:"size:5;not null" json:"start_time"` // "08:10"
	EndTime   string `gorm:"size:5;not null" json:"end_time"`
}

// ScheduleEntry is one cell of the grid: which subject (and with it, which
// teacher) a class has in a given slot. The unique index enforces at most one
// entry per class+day+slot.
type ScheduleEntry struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ClassName  string `gorm:"size:16;not null;uniqueIndex:idx_grid_cell,priority:1" json:"class_name"`
	DayOfWeek  int    `gorm:"not null;uniqueIndex:idx_grid_cell,priority:2" json:"day_of_week"`
	TimeSlotID uint   `gorm:"not null;uniqueIndex:idx_grid_cell,priority:3" json:"time_slot_id"`
	SubjectID  uint   `gorm:"not null" json:"subject_id"`
	Room       string `gorm:"size:32" json:"room"`

	TimeSlot TimeSlot `gorm:"foreignKey:TimeSlotID" json:"time_slot,omitempty"`
	Subject  Subject  `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
}

type ExchangeStatus string

const (
	StatusPending   ExchangeStatus = "PENDING"
	StatusApproved  ExchangeStatus = "APPROVED"
	StatusRejected  ExchangeStatus = "REJECTED"
	StatusCancelled ExchangeStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed from s.
func (s ExchangeStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

func (s ExchangeStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// ExchangeRequest is one teacher's proposal to swap the subject taught in
// their entry with another teacher's. After creation it is an audit record:
// the only mutation ever applied is the single PENDING -> terminal transition
// plus the admin notes attached to it.
type ExchangeRequest struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID uint           `gorm:"not null;index" json:"requester_id"`
	TargetID    uint           `gorm:"not null;index" json:"target_id"`
	FromEntryID uint           `gorm:"not null" json:"from_entry_id"`
	ToEntryID   uint           `gorm:"not null" json:"to_entry_id"`
	Status      ExchangeStatus `gorm:"size:16;not null;default:'PENDING';index" json:"status"`
	Reason      string         `gorm:"size:500" json:"reason,omitempty"`
	AdminNotes  string         `gorm:"size:500" json:"admin_notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	DecidedAt   *time.Time     `json:"decided_at,omitempty"`

	Requester User          `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Target    User          `gorm:"foreignKey:TargetID" json:"target,omitempty"`
	FromEntry ScheduleEntry `gorm:"foreignKey:FromEntryID" json:"from_entry,omitempty"`
	ToEntry   ScheduleEntry `gorm:"foreignKey:ToEntryID" json:"to_entry,omitempty"`
}

func (r *ExchangeRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Weekdays is the explicit Mon..Fri order used everywhere the grid is
// grouped or rendered. Never iterate a day-keyed map instead.
var Weekdays = []int{1, 2, 3, 4, 5}

var dayNames = map[int]string{1: "Monday", 2: "Tuesday", 3: "Wednesday", 4: "Thursday", 5: "Friday"}

func DayName(day int) string { return dayNames[day] }

func ValidDay(day int) bool { return day >= 1 && day <= 5 }
