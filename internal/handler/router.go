package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/seanior/course-booking-api/internal/middleware"
	"github.com/seanior/course-booking-api/internal/models"
	"github.com/seanior/course-booking-api/internal/service"
	"github.com/seanior/course-booking-api/pkg/logger"
	corsmiddleware "github.com/seanior/course-booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/seanior/course-booking-api/pkg/middleware/requestid"
)

// RouterConfig carries everything the routing table needs.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Verifier       middleware.TokenVerifier

	Health          *MetricsHandler
	Courses         *CourseHandler
	CourseRequests  *CourseRequestHandler
	Payments        *PaymentHandler
	Enrollments     *EnrollmentHandler
	Attendance      *AttendanceHandler
	SessionProgress *SessionProgressHandler
	Notifications   *NotificationHandler
	// Files is nil unless attachments live on local disk.
	Files *FileHandler
}

// NewRouter builds the gin engine with every route the API serves.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(cfg.Logger))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(cfg.Metrics))

	r.GET("/health", cfg.Health.Health)
	r.GET("/ready", cfg.Health.Ready)
	r.GET("/metrics", cfg.Health.Prometheus)
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	// public: the provider authenticates with its signature
	api.POST("/payments/webhook", cfg.Payments.Webhook)
	if cfg.Files != nil {
		api.GET("/files/:token", cfg.Files.Download)
	}

	student := middleware.RequireUserTypes(models.UserTypeStudent)
	staff := middleware.RequireUserTypes(models.UserTypeInstructor, models.UserTypeAdmin)

	auth := api.Group("")
	auth.Use(middleware.JWT(cfg.Verifier))

	courses := auth.Group("/courses")
	courses.POST("", staff, cfg.Courses.Create)
	courses.GET("", cfg.Courses.List)
	courses.GET("/:id", cfg.Courses.Get)

	requests := auth.Group("/course-requests")
	requests.POST("", student, cfg.CourseRequests.Create)
	requests.GET("/mine", student, cfg.CourseRequests.Mine)
	requests.GET("/pending", staff, cfg.CourseRequests.Pending)
	requests.GET("/:id", cfg.CourseRequests.Get)
	requests.PATCH("/:id/approve", staff, cfg.CourseRequests.Approve)
	requests.PATCH("/:id/reject", staff, cfg.CourseRequests.Reject)

	auth.POST("/payments/checkout-session", student, cfg.Payments.CreateCheckoutSession)
	auth.GET("/bookings/:id", cfg.Payments.GetBooking)

	enrollments := auth.Group("/enrollments")
	enrollments.GET("/mine", student, cfg.Enrollments.Mine)
	enrollments.GET("/teaching", staff, cfg.Enrollments.Teaching)
	enrollments.GET("/:id", cfg.Enrollments.Get)
	enrollments.POST("/:id/attendance", staff, cfg.Attendance.Record)
	enrollments.POST("/:id/attendance/excuse", student, cfg.Attendance.Excuse)
	enrollments.GET("/:id/attendance", cfg.Attendance.List)
	enrollments.GET("/:id/attendance/export", staff, cfg.Attendance.Export)
	enrollments.PUT("/:id/progress", staff, cfg.SessionProgress.Upsert)
	enrollments.GET("/:id/progress", cfg.SessionProgress.List)

	progress := auth.Group("/progress")
	progress.GET("/:id", cfg.SessionProgress.Get)
	progress.PATCH("/:id", staff, cfg.SessionProgress.Update)
	progress.POST("/:id/attachment", staff, cfg.SessionProgress.Attach)

	notifications := auth.Group("/notifications")
	notifications.GET("", cfg.Notifications.List)
	notifications.PATCH("/:id/read", cfg.Notifications.MarkRead)

	return r
}
