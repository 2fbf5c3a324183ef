// Package policy decides which roles may perform which portal actions.
// It is a pure lookup: no I/O, no state.
package policy

import (
	"strings"

	"github.com/noah-isme/student-portal-api/internal/models"
)

// Action names a protected operation.
type Action string

const (
	ActionRegister                 Action = "register"
	ActionLogin                    Action = "login"
	ActionViewMaterials            Action = "view_materials"
	ActionMutateMaterials          Action = "mutate_materials"
	ActionViewAssignments          Action = "view_assignments"
	ActionMutateAssignments        Action = "mutate_assignments"
	ActionViewSubjects             Action = "view_subjects"
	ActionMutateSubjects           Action = "mutate_subjects"
	ActionMarkAttendance           Action = "mark_attendance"
	ActionEditAttendance           Action = "edit_attendance"
	ActionViewOwnAttendanceHistory Action = "view_own_attendance_history"
	ActionViewAllAttendanceHistory Action = "view_all_attendance_history"
	ActionSendCounselorMessage     Action = "send_counselor_message"
	ActionViewCounselorMessages    Action = "view_counselor_messages"

	dashboardPrefix = "view_dashboard:"
)

// Anonymous is the role of a caller without a session.
const Anonymous models.UserRole = ""

var (
	everyone  = roles(Anonymous, models.RoleAdmin, models.RoleTeacher, models.RoleStudent)
	signedIn  = roles(models.RoleAdmin, models.RoleTeacher, models.RoleStudent)
	staff     = roles(models.RoleAdmin, models.RoleTeacher)
	studentOf = roles(models.RoleStudent)
)

var table = map[Action]map[models.UserRole]struct{}{
	ActionRegister:                 everyone,
	ActionLogin:                    everyone,
	ActionViewMaterials:            signedIn,
	ActionViewAssignments:          signedIn,
	ActionViewSubjects:             signedIn,
	ActionMutateMaterials:          staff,
	ActionMutateAssignments:        staff,
	ActionMutateSubjects:           staff,
	ActionMarkAttendance:           staff,
	ActionEditAttendance:           staff,
	ActionViewAllAttendanceHistory: staff,
	ActionViewOwnAttendanceHistory: studentOf,
	ActionSendCounselorMessage:     signedIn,
	ActionViewCounselorMessages:    staff,
}

// Authorize reports whether role may perform action. Unknown roles and actions are denied.
func Authorize(role models.UserRole, action Action) bool {
	if role != Anonymous && !role.Valid() {
		return false
	}
	if target, ok := DashboardRole(action); ok {
		return role != Anonymous && role == target
	}
	allowed, ok := table[action]
	if !ok {
		return false
	}
	_, ok = allowed[role]
	return ok
}

// DashboardAction builds the per-role dashboard action.
func DashboardAction(role models.UserRole) Action {
	return Action(dashboardPrefix + string(role))
}

// DashboardRole extracts the role from a dashboard action.
func DashboardRole(action Action) (models.UserRole, bool) {
	raw, ok := strings.CutPrefix(string(action), dashboardPrefix)
	if !ok {
		return "", false
	}
	role := models.UserRole(raw)
	return role, role.Valid()
}

// ViewAction returns the read action guarding a document kind.
func ViewAction(kind models.DocumentKind) Action {
	if kind == models.DocumentKindAssignment {
		return ActionViewAssignments
	}
	return ActionViewMaterials
}

// MutateAction returns the write action guarding a document kind.
func MutateAction(kind models.DocumentKind) Action {
	if kind == models.DocumentKindAssignment {
		return ActionMutateAssignments
	}
	return ActionMutateMaterials
}

func roles(rs ...models.UserRole) map[models.UserRole]struct{} {
	set := make(map[models.UserRole]struct{}, len(rs))
	for _, r := range rs {
		set[r] = struct{}{}
	}
	return set
}
