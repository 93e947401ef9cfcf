package exchange

import (
	"testing"

	"github.com/schoolgrid/timetable-back/internal/models"
)

func TestPolicyTable(t *testing.T) {
	requester := models.Actor{ID: 1, Role: models.RoleTeacher}
	target := models.Actor{ID: 2, Role: models.RoleTeacher}
	outsider := models.Actor{ID: 3, Role: models.RoleTeacher}
	admin := models.Actor{ID: 4, Role: models.RoleAdmin}
	student := models.Actor{ID: 5, Role: models.RoleStudent}

	req := &models.ExchangeRequest{RequesterID: 1, TargetID: 2}

	cases := []struct {
		name   string
		action Action
		actor  models.Actor
		want   bool
	}{
		{"teacher may create", ActionCreate, requester, true},
		{"admin may not create", ActionCreate, admin, false},
		{"student may not create", ActionCreate, student, false},

		{"target may approve", ActionApprove, target, true},
		{"admin may approve", ActionApprove, admin, true},
		{"requester may not approve", ActionApprove, requester, false},
		{"outsider may not approve", ActionApprove, outsider, false},
		{"student may not approve", ActionApprove, student, false},

		{"target may reject", ActionReject, target, true},
		{"admin may reject", ActionReject, admin, true},
		{"requester may not reject", ActionReject, requester, false},

		{"requester may cancel", ActionCancel, requester, true},
		{"target may not cancel", ActionCancel, target, false},
		{"admin may not cancel", ActionCancel, admin, false},
		{"outsider may not cancel", ActionCancel, outsider, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allowed(tc.action, tc.actor, req); got != tc.want {
				t.Errorf("Allowed(%s, actor %d) = %v, want %v", tc.action, tc.actor.ID, got, tc.want)
			}
		})
	}

	if Allowed("explode", admin, req) {
		t.Error("unknown actions must never be allowed")
	}
}

func TestActionFor(t *testing.T) {
	cases := []struct {
		status models.ExchangeStatus
		action Action
		ok     bool
	}{
		{models.StatusApproved, ActionApprove, true},
		{models.StatusRejected, ActionReject, true},
		{models.StatusCancelled, ActionCancel, true},
		{models.StatusPending, "", false},
		{"DONE", "", false},
	}
	for _, tc := range cases {
		action, ok := actionFor(tc.status)
		if ok != tc.ok || action != tc.action {
			t.Errorf("actionFor(%s) = (%s, %v), want (%s, %v)", tc.status, action, ok, tc.action, tc.ok)
		}
	}
}
