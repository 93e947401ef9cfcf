package exchange

import (
	"github.com/schoolgrid/timetable-back/internal/models"
)

// Action is one operation of the exchange protocol subject to authorization.
type Action string

const (
	ActionCreate  Action = "create"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
)

// policy maps each action to the predicate deciding whether the actor may
// perform it on the given request. Kept as a table so the rules are testable
// on their own, away from the state machine.
var policy = map[Action]func(actor models.Actor, req *models.ExchangeRequest) bool{
	// Any teacher may propose; ownership of the offered entry is a
	// separate precondition checked against the grid.
	ActionCreate: func(actor models.Actor, _ *models.ExchangeRequest) bool {
		return actor.Role == models.RoleTeacher
	},
	ActionApprove: targetOrAdmin,
	ActionReject:  targetOrAdmin,
	// Only the original requester may withdraw, admins included.
	ActionCancel: func(actor models.Actor, req *models.ExchangeRequest) bool {
		return actor.Role == models.RoleTeacher && req != nil && actor.ID == req.RequesterID
	},
}

func targetOrAdmin(actor models.Actor, req *models.ExchangeRequest) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.Role == models.RoleTeacher && req != nil && actor.ID == req.TargetID
}

// Allowed reports whether actor may perform action on req.
func Allowed(action Action, actor models.Actor, req *models.ExchangeRequest) bool {
	pred, ok := policy[action]
	if !ok {
		return false
	}
	return pred(actor, req)
}

// actionFor maps a requested terminal status to the action it authorizes as.
func actionFor(status models.ExchangeStatus) (Action, bool) {
	switch status {
	case models.StatusApproved:
		return ActionApprove, true
	case models.StatusRejected:
		return ActionReject, true
	case models.StatusCancelled:
		return ActionCancel, true
	}
	return "", false
}
