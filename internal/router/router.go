package router

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/student-portal-api/internal/handler"
	"github.com/noah-isme/student-portal-api/internal/middleware"
	"github.com/noah-isme/student-portal-api/internal/models"
	"github.com/noah-isme/student-portal-api/internal/policy"
	"github.com/noah-isme/student-portal-api/internal/service"
	"github.com/noah-isme/student-portal-api/pkg/config"
	"github.com/noah-isme/student-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/student-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/student-portal-api/pkg/middleware/requestid"
)

// AuditWriter persists audit trail entries.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Dependencies carries everything the router mounts.
type Dependencies struct {
	Logger      *zap.Logger
	Metrics     *service.MetricsService
	Auth        *service.AuthService
	Audit       AuditWriter
	AuthH       *handler.AuthHandler
	Dashboard   *handler.DashboardHandler
	Subjects    *handler.SubjectHandler
	Materials   *handler.DocumentHandler
	Assignments *handler.DocumentHandler
	Attendance  *handler.AttendanceHandler
	Counselor   *handler.CounselorHandler
	Ops         *handler.MetricsHandler
}

// New builds the gin engine with the global middleware chain and every route.
func New(cfg *config.Config, deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", deps.Ops.Health)
	r.GET("/ready", deps.Ops.Ready)
	r.GET("/metrics", deps.Ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", deps.AuthH.Register)
		auth.POST("/login", deps.AuthH.Login)
	}

	secured := api.Group("")
	secured.Use(middleware.Authenticate(deps.Auth, cfg.LoginPath))
	{
		secured.POST("/auth/logout", deps.AuthH.Logout)
		secured.GET("/auth/me", deps.AuthH.Me)

		dashboards := secured.Group("/dashboard")
		dashboards.GET("", deps.Dashboard.Redirect)
		dashboards.GET("/:role", middleware.RequireDashboard("role", cfg.APIPrefix+"/dashboard"), deps.Dashboard.Show)

		subjects := secured.Group("/subjects")
		subjects.GET("", middleware.RequireAction(policy.ActionViewSubjects), deps.Subjects.List)
		subjects.POST("", middleware.RequireAction(policy.ActionMutateSubjects),
			middleware.Audit(deps.Audit, models.AuditActionSubjectCreate, "subject"), deps.Subjects.Create)

		mountDocuments(secured.Group("/materials"), models.DocumentKindMaterial, deps.Materials, deps.Audit)
		mountDocuments(secured.Group("/assignments"), models.DocumentKindAssignment, deps.Assignments, deps.Audit)

		attendance := secured.Group("/attendance")
		mark := middleware.RequireAction(policy.ActionMarkAttendance)
		edit := middleware.RequireAction(policy.ActionEditAttendance)
		attendance.GET("/mark", mark, deps.Attendance.TodaySheet)
		attendance.POST("/mark", mark, middleware.Audit(deps.Audit, models.AuditActionAttendanceSubmit, "attendance"), deps.Attendance.SubmitToday)
		attendance.GET("/edit", edit, deps.Attendance.Sheet)
		attendance.POST("/edit", edit, middleware.Audit(deps.Audit, models.AuditActionAttendanceSubmit, "attendance"), deps.Attendance.SubmitSheet)
		attendance.POST("/records", mark, middleware.Audit(deps.Audit, models.AuditActionAttendanceMark, "attendance"), deps.Attendance.Mark)
		// History scoping (own vs all) is decided by the service from the caller's role.
		attendance.GET("/history", deps.Attendance.History)
		attendance.GET("/history/export", deps.Attendance.Export)
		attendance.GET("/history/:studentId", deps.Attendance.HistoryFor)

		counselor := secured.Group("/counselor-messages")
		counselor.GET("", middleware.RequireAction(policy.ActionViewCounselorMessages), deps.Counselor.List)
		counselor.POST("", middleware.RequireAction(policy.ActionSendCounselorMessage),
			middleware.Audit(deps.Audit, models.AuditActionCounselorMessage, "counselor_message"), deps.Counselor.Send)
	}

	return r
}

func mountDocuments(group *gin.RouterGroup, kind models.DocumentKind, h *handler.DocumentHandler, audit AuditWriter) {
	view := middleware.RequireAction(policy.ViewAction(kind))
	mutate := middleware.RequireAction(policy.MutateAction(kind))
	resource := kind.Collection()

	group.GET("", view, h.List)
	group.POST("", mutate, middleware.Audit(audit, models.AuditActionDocumentUpload, resource), h.Upload)
	group.GET("/:id", view, h.Get)
	group.GET("/:id/view", view, h.View)
	group.GET("/:id/download", view, h.Download)
	group.DELETE("/:id", mutate, middleware.Audit(audit, models.AuditActionDocumentDelete, resource), h.Delete)
}
