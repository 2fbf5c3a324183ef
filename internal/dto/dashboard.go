package dto

import "github.com/noah-isme/student-portal-api/internal/models"

// DashboardResponse carries exactly one role variant.
type DashboardResponse struct {
	Role    models.UserRole   `json:"role"`
	User    models.UserInfo   `json:"user"`
	Admin   *AdminDashboard   `json:"admin,omitempty"`
	Teacher *TeacherDashboard `json:"teacher,omitempty"`
	Student *StudentDashboard `json:"student,omitempty"`
}

// AdminDashboard summarises the whole portal.
type AdminDashboard struct {
	UsersByRole map[models.UserRole]int `json:"users_by_role"`
	Materials   int                     `json:"materials"`
	Assignments int                     `json:"assignments"`
	Today       models.Date             `json:"today"`
	MarkedToday int                     `json:"marked_today"`
}

// TeacherDashboard shows today's sheet progress and recent uploads.
type TeacherDashboard struct {
	Today             models.Date       `json:"today"`
	MarkedToday       int               `json:"marked_today"`
	Students          int               `json:"students"`
	RecentMaterials   []models.Document `json:"recent_materials"`
	RecentAssignments []models.Document `json:"recent_assignments"`
}

// StudentDashboard shows the caller's own attendance and recent uploads.
type StudentDashboard struct {
	Attendance        models.AttendanceSummary `json:"attendance"`
	RecentMaterials   []models.Document        `json:"recent_materials"`
	RecentAssignments []models.Document        `json:"recent_assignments"`
}
