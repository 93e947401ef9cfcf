package exchange

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/schoolgrid/timetable-back/internal/apperr"
	"github.com/schoolgrid/timetable-back/internal/models"
	"github.com/schoolgrid/timetable-back/internal/notify"
	"github.com/schoolgrid/timetable-back/internal/schedule"
)

// Swapper is what the manager needs from the executor. The swap runs inside
// the manager's transaction so it commits together with the status change.
type Swapper interface {
	SwapTx(ctx context.Context, tx *gorm.DB, fromEntryID, toEntryID uint) error
}

// Manager drives the ExchangeRequest lifecycle: PENDING on create, exactly
// one transition to APPROVED, REJECTED or CANCELLED, nothing after that.
type Manager struct {
	db       *gorm.DB
	grid     *schedule.Grid
	executor Swapper
	notifier notify.Gateway
	logger   *zap.Logger
}

func NewManager(gdb *gorm.DB, grid *schedule.Grid, executor Swapper, notifier notify.Gateway, logger *zap.Logger) *Manager {
	return &Manager{db: gdb, grid: grid, executor: executor, notifier: notifier, logger: logger}
}

type CreateInput struct {
	FromEntryID uint   `json:"from_entry_id" binding:"required"`
	ToEntryID   uint   `json:"to_entry_id" binding:"required"`
	Reason      string `json:"reason"`
}

// Create validates the proposal and persists it as PENDING. The duplicate
// pending-pair check and the insert share one transaction.
func (m *Manager) Create(ctx context.Context, actor models.Actor, in CreateInput) (*models.ExchangeRequest, error) {
	if !Allowed(ActionCreate, actor, nil) {
		return nil, apperr.Permission("only teachers may propose exchanges")
	}
	if in.FromEntryID == 0 || in.ToEntryID == 0 {
		return nil, apperr.Validation("from_entry_id and to_entry_id are required")
	}
	if in.FromEntryID == in.ToEntryID {
		return nil, apperr.Validation("cannot exchange an entry with itself")
	}

	from, err := m.grid.Entry(ctx, in.FromEntryID)
	if err != nil {
		return nil, err
	}
	to, err := m.grid.Entry(ctx, in.ToEntryID)
	if err != nil {
		return nil, err
	}

	if from.Subject.TeacherID != actor.ID {
		return nil, apperr.Permission("entry %d is not owned by you", from.ID)
	}
	target := to.Subject.TeacherID
	if target == actor.ID {
		return nil, apperr.Permission("both entries are owned by you")
	}

	req := models.ExchangeRequest{
		RequesterID: actor.ID,
		TargetID:    target,
		FromEntryID: from.ID,
		ToEntryID:   to.ID,
		Status:      models.StatusPending,
		Reason:      in.Reason,
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dup models.ExchangeRequest
		err := tx.Where("status = ?", models.StatusPending).
			Where("(from_entry_id = ? AND to_entry_id = ?) OR (from_entry_id = ? AND to_entry_id = ?)",
				from.ID, to.ID, to.ID, from.ID).
			First(&dup).Error
		if err == nil {
			return apperr.Conflict(
				map[string]any{"pending_request": dup},
				"a pending exchange for entries %d and %d already exists", from.ID, to.ID,
			)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		// The unique index on the pending pair is the real guard; the check
		// above only exists to attach the existing request to the error.
		if err := tx.Create(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict(nil,
					"a pending exchange for entries %d and %d already exists", from.ID, to.ID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("exchange request created",
		zap.String("request_id", req.ID),
		zap.Uint("requester_id", req.RequesterID),
		zap.Uint("target_id", req.TargetID),
	)
	m.send(notify.EventRequestCreated, &req, to.Subject.Teacher.Email, from.Subject.Teacher.Email)
	return &req, nil
}

type ListFilter struct {
	Status    models.ExchangeStatus
	Direction string // "sent" | "received" | ""
}

// List returns requests visible to the actor. Admins see everything,
// everyone else only requests where they are requester or target.
func (m *Manager) List(ctx context.Context, actor models.Actor, f ListFilter) ([]models.ExchangeRequest, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", f.Status)
	}

	q := m.db.WithContext(ctx).
		Preload("FromEntry.Subject").
		Preload("ToEntry.Subject").
		Order("created_at DESC")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	switch f.Direction {
	case "":
		if !actor.IsAdmin() {
			q = q.Where("requester_id = ? OR target_id = ?", actor.ID, actor.ID)
		}
	case "sent":
		q = q.Where("requester_id = ?", actor.ID)
	case "received":
		q = q.Where("target_id = ?", actor.ID)
	default:
		return nil, apperr.Validation("direction must be \"sent\" or \"received\"")
	}

	var out []models.ExchangeRequest
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one request if the actor may see it.
func (m *Manager) Get(ctx context.Context, actor models.Actor, id string) (*models.ExchangeRequest, error) {
	req, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != req.RequesterID && actor.ID != req.TargetID {
		return nil, apperr.Permission("request %s is not visible to you", id)
	}
	return req, nil
}

// Transition moves a PENDING request to a terminal status. The status
// compare-and-set and, for approvals, the entry swap run in one transaction:
// APPROVED is never recorded unless the swap committed, and of two
// concurrent attempts exactly one wins while the other gets a conflict.
func (m *Manager) Transition(ctx context.Context, actor models.Actor, requestID string, newStatus models.ExchangeStatus, adminNotes string) (*models.ExchangeRequest, error) {
	action, ok := actionFor(newStatus)
	if !ok {
		return nil, apperr.Validation("cannot transition to status %q", newStatus)
	}

	req, err := m.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !Allowed(action, actor, req) {
		return nil, apperr.Permission("you may not %s request %s", action, requestID)
	}
	// Early exit for observability only; the conditional update below is
	// what actually guards against a concurrent transition.
	if req.Status.Terminal() {
		return nil, apperr.Conflict(
			map[string]any{"current_status": req.Status},
			"request %s is already %s", requestID, req.Status,
		)
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.ExchangeRequest{}).
			Where("id = ? AND status = ?", requestID, models.StatusPending).
			Updates(map[string]any{
				"status":      newStatus,
				"admin_notes": adminNotes,
				"decided_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict(nil, "request %s is no longer pending", requestID)
		}
		if newStatus == models.StatusApproved {
			return m.executor.SwapTx(ctx, tx, req.FromEntryID, req.ToEntryID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := m.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	m.logger.Info("exchange request transitioned",
		zap.String("request_id", requestID),
		zap.String("status", string(newStatus)),
		zap.Uint("actor_id", actor.ID),
	)
	m.send(eventFor(newStatus), updated, updated.Requester.Email, updated.Target.Email)
	return updated, nil
}

// ExpireStale cancels PENDING requests older than maxAge. Run by the daily
// job; uses the same conditional-update guard as Transition.
func (m *Manager) ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	now := time.Now()
	res := m.db.WithContext(ctx).Model(&models.ExchangeRequest{}).
		Where("status = ? AND created_at < ?", models.StatusPending, cutoff).
		Updates(map[string]any{
			"status":      models.StatusCancelled,
			"admin_notes": "expired automatically",
			"decided_at":  now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		m.logger.Info("expired stale exchange requests", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (m *Manager) load(ctx context.Context, id string) (*models.ExchangeRequest, error) {
	var req models.ExchangeRequest
	err := m.db.WithContext(ctx).
		Preload("Requester").
		Preload("Target").
		First(&req, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("exchange request %s not found", id)
		}
		return nil, err
	}
	return &req, nil
}

// send delivers the event to both parties without blocking the caller.
// Failures are logged and never surfaced.
func (m *Manager) send(event notify.Event, req *models.ExchangeRequest, recipients ...string) {
	payload := notify.Payload{
		RequestID:   req.ID,
		FromEntryID: req.FromEntryID,
		ToEntryID:   req.ToEntryID,
		Message:     req.Reason,
	}
	for _, rcpt := range recipients {
		if rcpt == "" {
			continue
		}
		go func(rcpt string) {
			if err := m.notifier.Notify(context.Background(), event, rcpt, payload); err != nil {
				m.logger.Warn("notification delivery failed",
					zap.String("event", string(event)),
					zap.String("recipient", rcpt),
					zap.Error(err),
				)
			}
		}(rcpt)
	}
}

func eventFor(status models.ExchangeStatus) notify.Event {
	switch status {
	case models.StatusApproved:
		return notify.EventRequestApproved
	case models.StatusRejected:
		return notify.EventRequestRejected
	default:
		return notify.EventRequestCancelled
	}
}
