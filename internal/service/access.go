package service

import (
	"github.com/noah-isme/student-portal-api/internal/models"
	"github.com/noah-isme/student-portal-api/internal/policy"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
)

// authorize checks the caller against the policy table. A nil caller is unauthenticated.
func authorize(claims *models.JWTClaims, action policy.Action) error {
	if claims == nil || claims.UserID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "login required")
	}
	if !policy.Authorize(claims.Role, action) {
		return appErrors.Clone(appErrors.ErrForbidden, "you are not allowed to "+humanAction(action))
	}
	return nil
}

func humanAction(action policy.Action) string {
	switch action {
	case policy.ActionMarkAttendance:
		return "mark attendance"
	case policy.ActionEditAttendance:
		return "edit attendance"
	case policy.ActionViewAllAttendanceHistory:
		return "view attendance history of other students"
	case policy.ActionViewOwnAttendanceHistory:
		return "view attendance history"
	case policy.ActionMutateMaterials:
		return "manage study materials"
	case policy.ActionMutateAssignments:
		return "manage assignments"
	case policy.ActionMutateSubjects:
		return "manage subjects"
	case policy.ActionSendCounselorMessage:
		return "message the counselor"
	case policy.ActionViewCounselorMessages:
		return "read counselor messages"
	}
	if role, ok := policy.DashboardRole(action); ok {
		return "open the " + string(role) + " dashboard"
	}
	return "perform " + string(action)
}
