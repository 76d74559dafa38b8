package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/seanior/course-booking-api/api/swagger"
	"github.com/seanior/course-booking-api/internal/adapters/mercadopago"
	"github.com/seanior/course-booking-api/internal/adapters/midtrans"
	"github.com/seanior/course-booking-api/internal/handler"
	"github.com/seanior/course-booking-api/internal/repository"
	"github.com/seanior/course-booking-api/internal/service"
	"github.com/seanior/course-booking-api/pkg/cache"
	"github.com/seanior/course-booking-api/pkg/config"
	"github.com/seanior/course-booking-api/pkg/database"
	"github.com/seanior/course-booking-api/pkg/jobs"
	"github.com/seanior/course-booking-api/pkg/logger"
	"github.com/seanior/course-booking-api/pkg/storage"
)

// @title Course Booking API
// @version 1.0.0
// @description Swimming course requests, payments, enrollments and attendance.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			return err
		}
	}

	cacheEnabled := cfg.Cache.Enabled
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		// the service degrades to uncached reads and best-effort idempotency
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		cacheEnabled = false
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	loc, err := time.LoadLocation(cfg.Booking.ScheduleTimezone)
	if err != nil {
		return fmt.Errorf("load schedule timezone %q: %w", cfg.Booking.ScheduleTimezone, err)
	}

	metrics := service.NewMetricsService()
	validate := validator.New()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.EnrollmentTTL, logr, cacheEnabled)

	courseRepo := repository.NewCourseRepository(db)
	requestRepo := repository.NewCourseRequestRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	progressRepo := repository.NewSessionProgressRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationSvc := service.NewNotificationService(notificationRepo, metrics, logr)
	notifyQueue := jobs.NewQueue("notifications", notificationSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: 2 * time.Second,
		JobTimeout: 10 * time.Second,
		Logger:     logr,
	})
	notificationSvc.AttachQueue(notifyQueue)
	notifyQueue.Start(ctx)

	gateway, err := newPaymentGateway(cfg.Payment, logr)
	if err != nil {
		return err
	}

	store, files, err := newObjectStore(ctx, cfg, logr)
	if err != nil {
		return err
	}

	courseSvc := service.NewCourseService(courseRepo, cfg.Booking.AbsenceBufferDefault, validate, logr)
	requestSvc := service.NewCourseRequestService(requestRepo, courseRepo, db, notificationSvc, loc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, cacheSvc, cfg.Cache.EnrollmentTTL, logr)
	paymentSvc := service.NewPaymentService(gateway, bookingRepo, requestRepo, courseRepo, enrollmentRepo, db, cacheSvc, notificationSvc, metrics, service.PaymentSettings{
		Currency:     cfg.Payment.Currency,
		Timeout:      cfg.Payment.Timeout,
		SuccessURL:   cfg.Payment.SuccessURL,
		CancelURL:    cfg.Payment.CancelURL,
		EventMarkTTL: cfg.Cache.EventMarkTTL,
		SessionTTL:   cfg.Payment.SessionTTL,
	}, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, enrollmentRepo, enrollmentSvc, db, notificationSvc, metrics, validate, logr)
	exportSvc := service.NewAttendanceExportService(attendanceRepo, enrollmentRepo, nil, logr)
	progressSvc := service.NewSessionProgressService(progressRepo, enrollmentRepo, store, service.AttachmentPolicy{
		MaxSizeBytes: cfg.Storage.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Storage.AllowedMIMEs,
	}, validate, logr)

	reaper := service.NewBookingReaper(bookingRepo, cfg.Booking.ReaperSchedule, cfg.Booking.PendingTTL, metrics, logr)
	if err := reaper.Start(); err != nil {
		return err
	}

	routerCfg := handler.RouterConfig{
		APIPrefix:       cfg.APIPrefix,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		EnableDocs:      cfg.Env != config.EnvProduction,
		Logger:          logr,
		Metrics:         metrics,
		Verifier:        service.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer),
		Health:          handler.NewMetricsHandler(metrics, readinessChecks(db, cacheRepo)),
		Courses:         handler.NewCourseHandler(courseSvc),
		CourseRequests:  handler.NewCourseRequestHandler(requestSvc),
		Payments:        handler.NewPaymentHandler(paymentSvc),
		Enrollments:     handler.NewEnrollmentHandler(enrollmentSvc),
		Attendance:      handler.NewAttendanceHandler(attendanceSvc, exportSvc),
		SessionProgress: handler.NewSessionProgressHandler(progressSvc, cfg.Storage.MaxFileSizeBytes),
		Notifications:   handler.NewNotificationHandler(notificationSvc),
	}
	if files != nil {
		routerCfg.Files = handler.NewFileHandler(files)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("payment_provider", gateway.Name()),
			zap.String("storage_driver", cfg.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown", zap.Error(err))
	}
	reaper.Stop(shutdownCtx)
	notifyQueue.Stop()
	return nil
}

func newPaymentGateway(cfg config.PaymentConfig, logr *zap.Logger) (service.PaymentGateway, error) {
	switch cfg.Provider {
	case config.PaymentProviderMidtrans:
		if cfg.MidtransServerKey == "" {
			logr.Warn("MIDTRANS_SERVER_KEY not set; checkout and webhooks will fail")
		}
		return midtrans.New(cfg.MidtransServerKey, cfg.MidtransProduction, logr), nil
	case config.PaymentProviderMercadoPago:
		if cfg.MercadoPagoWebhookSecret == "" {
			logr.Warn("MERCADOPAGO_WEBHOOK_SECRET not set; webhook signatures are not verified")
		}
		return mercadopago.New(cfg.MercadoPagoAccessToken, cfg.MercadoPagoWebhookSecret, cfg.MercadoPagoNotificationURL, logr)
	default:
		return nil, fmt.Errorf("unknown PAYMENT_PROVIDER %q", cfg.Provider)
	}
}

// newObjectStore returns the attachment store and, for local disk, the
// opener behind the signed download route.
func newObjectStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (storage.ObjectStore, *storage.LocalStorage, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverS3:
		store, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:   cfg.Storage.S3Bucket,
			Region:   cfg.Storage.S3Region,
			Endpoint: cfg.Storage.S3Endpoint,
			URLTTL:   cfg.Storage.SignedURLTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.StorageDriverLocal, "":
		signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
		local, err := storage.NewLocalStorage(cfg.Storage.LocalDir, cfg.APIPrefix+"/files", signer)
		if err != nil {
			return nil, nil, err
		}
		logr.Info("storing attachments on local disk", zap.String("dir", cfg.Storage.LocalDir))
		return local, local, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.Storage.Driver)
	}
}

func readinessChecks(db *sqlx.DB, cacheRepo *repository.CacheRepository) map[string]handler.Pinger {
	return map[string]handler.Pinger{
		"postgres": db.PingContext,
		"redis":    cacheRepo.Ping,
	}
}
