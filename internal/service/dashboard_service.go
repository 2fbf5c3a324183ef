package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/student-portal-api/internal/dto"
	"github.com/noah-isme/student-portal-api/internal/models"
	"github.com/noah-isme/student-portal-api/internal/policy"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
)

type roleCounter interface {
	CountByRole(ctx context.Context) ([]models.RoleCount, error)
}

type attendanceOverview interface {
	Today() models.Date
	MarkedToday(ctx context.Context) (int, error)
	Summary(ctx context.Context, studentID string) (*models.AttendanceSummary, error)
}

type documentOverview interface {
	Recent(ctx context.Context, limit int) ([]models.Document, error)
	Count(ctx context.Context) (int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	RecentLimit int
}

// DashboardService composes the per-role dashboards.
type DashboardService struct {
	users       roleCounter
	attendance  attendanceOverview
	materials   documentOverview
	assignments documentOverview
	logger      *zap.Logger
	config      DashboardServiceConfig
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(users roleCounter, attendance attendanceOverview, materials, assignments documentOverview, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	return &DashboardService{users: users, attendance: attendance, materials: materials, assignments: assignments, logger: logger, config: cfg}
}

// Get renders the dashboard for role. Callers may only open the dashboard of their own role.
func (s *DashboardService) Get(ctx context.Context, role models.UserRole, claims *models.JWTClaims) (*dto.DashboardResponse, error) {
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown dashboard")
	}
	if err := authorize(claims, policy.DashboardAction(role)); err != nil {
		return nil, err
	}

	resp := &dto.DashboardResponse{
		Role: role,
		User: models.UserInfo{ID: claims.UserID, Name: claims.Name, Email: claims.Email, Role: claims.Role},
	}
	var err error
	switch role {
	case models.RoleAdmin:
		resp.Admin, err = s.admin(ctx)
	case models.RoleTeacher:
		resp.Teacher, err = s.teacher(ctx)
	case models.RoleStudent:
		resp.Student, err = s.student(ctx, claims.UserID)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *DashboardService) admin(ctx context.Context) (*dto.AdminDashboard, error) {
	counts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	out := &dto.AdminDashboard{UsersByRole: make(map[models.UserRole]int, len(models.Roles)), Today: s.attendance.Today()}
	for _, r := range models.Roles {
		out.UsersByRole[r] = 0
	}
	for _, c := range counts {
		out.UsersByRole[c.Role] = c.Count
	}
	if out.Materials, err = s.materials.Count(ctx); err != nil {
		return nil, err
	}
	if out.Assignments, err = s.assignments.Count(ctx); err != nil {
		return nil, err
	}
	if out.MarkedToday, err = s.attendance.MarkedToday(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DashboardService) teacher(ctx context.Context) (*dto.TeacherDashboard, error) {
	counts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	out := &dto.TeacherDashboard{Today: s.attendance.Today()}
	for _, c := range counts {
		if c.Role == models.RoleStudent {
			out.Students = c.Count
		}
	}
	if out.MarkedToday, err = s.attendance.MarkedToday(ctx); err != nil {
		return nil, err
	}
	if out.RecentMaterials, err = s.materials.Recent(ctx, s.config.RecentLimit); err != nil {
		return nil, err
	}
	if out.RecentAssignments, err = s.assignments.Recent(ctx, s.config.RecentLimit); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DashboardService) student(ctx context.Context, studentID string) (*dto.StudentDashboard, error) {
	summary, err := s.attendance.Summary(ctx, studentID)
	if err != nil {
		return nil, err
	}
	out := &dto.StudentDashboard{Attendance: *summary}
	if out.RecentMaterials, err = s.materials.Recent(ctx, s.config.RecentLimit); err != nil {
		return nil, err
	}
	if out.RecentAssignments, err = s.assignments.Recent(ctx, s.config.RecentLimit); err != nil {
		return nil, err
	}
	return out, nil
}
