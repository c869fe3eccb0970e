package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/medibook/clinic-api/api/swagger"
	"github.com/medibook/clinic-api/internal/handler"
	"github.com/medibook/clinic-api/internal/middleware"
	"github.com/medibook/clinic-api/internal/models"
	"github.com/medibook/clinic-api/internal/repository"
	"github.com/medibook/clinic-api/internal/service"
	"github.com/medibook/clinic-api/pkg/cache"
	"github.com/medibook/clinic-api/pkg/config"
	"github.com/medibook/clinic-api/pkg/database"
	"github.com/medibook/clinic-api/pkg/jobs"
	"github.com/medibook/clinic-api/pkg/logger"
	corsmiddleware "github.com/medibook/clinic-api/pkg/middleware/cors"
	reqidmiddleware "github.com/medibook/clinic-api/pkg/middleware/requestid"
)

// @title MediBook Clinic API
// @version 1.0.0
// @description Appointment booking platform for clinics: doctors, weekly schedules and patient bookings
// @BasePath /api/v1
// @schemes http
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	validate := validator.New()
	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, slot cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Booking.SlotCacheTTL, logr, true)
		}
	}

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	specialtyRepo := repository.NewSpecialtyRepository(db)
	doctorRepo := repository.NewDoctorRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	bookingRepo := repository.NewBookingRepository(db, scheduleRepo, appointmentRepo)
	reviewRepo := repository.NewReviewRepository(db)
	recordRepo := repository.NewMedicalRecordRepository(db)

	auditService := service.NewAuditService(auditRepo, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
	}, logr)
	auditService.Start(context.Background())
	defer auditService.Stop()

	authService := service.NewAuthService(userRepo, auditService, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	availabilityService := service.NewAvailabilityService(scheduleRepo, appointmentRepo, cacheService, cfg.Booking.SlotCacheTTL, logr)
	appointmentService := service.NewAppointmentService(
		bookingRepo, appointmentRepo, doctorRepo, reviewRepo,
		availabilityService, auditService, metricsService,
		validate, logr, cfg.Booking.CancelWindow,
	)
	scheduleService := service.NewScheduleService(
		scheduleRepo, appointmentRepo, doctorRepo,
		availabilityService, auditService, validate, logr,
	)
	doctorService := service.NewDoctorService(doctorRepo, userRepo, specialtyRepo, validate, logr)
	specialtyService := service.NewSpecialtyService(specialtyRepo, validate, logr)
	userService := service.NewUserService(userRepo, validate, logr)
	reviewService := service.NewReviewService(reviewRepo, appointmentRepo, validate, logr)
	recordService := service.NewMedicalRecordService(recordRepo, appointmentRepo, doctorRepo, validate, logr)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	specialtyHandler := handler.NewSpecialtyHandler(specialtyService)
	doctorHandler := handler.NewDoctorHandler(doctorService, reviewService)
	scheduleHandler := handler.NewScheduleHandler(scheduleService)
	appointmentHandler := handler.NewAppointmentHandler(appointmentService, availabilityService)
	reviewHandler := handler.NewReviewHandler(reviewService)
	recordHandler := handler.NewMedicalRecordHandler(recordService)
	metricsHandler := handler.NewMetricsHandler(metricsService, auditService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authService))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	specialties := api.Group("/specialties")
	{
		specialties.GET("", specialtyHandler.List)
		specialties.GET("/:id", specialtyHandler.Get)

		admin := specialties.Group("", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
		admin.POST("", specialtyHandler.Create)
		admin.PUT("/:id", specialtyHandler.Update)
		admin.DELETE("/:id", specialtyHandler.Delete)
	}

	doctors := api.Group("/doctors")
	{
		doctors.GET("", doctorHandler.List)
		doctors.GET("/:id", doctorHandler.Get)
		doctors.GET("/:id/slots", appointmentHandler.AvailableSlots)
		doctors.GET("/:id/schedule", scheduleHandler.GetByDoctorWeek)
		doctors.GET("/:id/reviews", doctorHandler.Reviews)

		admin := doctors.Group("", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
		admin.POST("", doctorHandler.Create)
		admin.PUT("/:id", doctorHandler.Update)
		admin.DELETE("/:id", doctorHandler.Deactivate)
	}

	schedules := api.Group("/schedules", middleware.JWT(authService))
	{
		staff := schedules.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleDoctor))
		staff.GET("", scheduleHandler.List)
		staff.POST("", scheduleHandler.Create)
		staff.GET("/:id", scheduleHandler.Get)
		staff.PUT("/:id", scheduleHandler.Update)
		staff.DELETE("/:id", scheduleHandler.Delete)
		staff.GET("/:id/export.pdf", scheduleHandler.ExportPDF)
	}

	appointments := api.Group("/appointments", middleware.JWT(authService))
	{
		appointments.POST("", middleware.RequireRoles(models.RolePatient), appointmentHandler.Book)
		appointments.GET("", appointmentHandler.List)
		appointments.GET("/:id", appointmentHandler.Get)
		appointments.POST("/:id/cancel", middleware.RequireRoles(models.RolePatient), appointmentHandler.Cancel)
		appointments.PUT("/:id/status", middleware.RequireRoles(models.RoleDoctor), appointmentHandler.UpdateStatus)
		appointments.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), appointmentHandler.Delete)
	}

	reviews := api.Group("/reviews", middleware.JWT(authService))
	{
		reviews.POST("", middleware.RequireRoles(models.RolePatient), reviewHandler.Create)
	}

	records := api.Group("/medical-records", middleware.JWT(authService))
	{
		records.POST("", middleware.RequireRoles(models.RoleDoctor), recordHandler.Create)
		records.GET("/:id", recordHandler.Get)
	}
	api.GET("/patients/:id/medical-records",
		middleware.JWT(authService),
		middleware.RBAC(string(models.RoleAdmin), string(models.RoleDoctor), "SELF"),
		recordHandler.ListByPatient)

	users := api.Group("/users", middleware.JWT(authService))
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
		users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.PUT("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Update)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Deactivate)
	}

	admin := api.Group("/admin", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/metrics", metricsHandler.Snapshot)
		admin.GET("/users/:id/audit", metricsHandler.AuditTrail)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("forced shutdown", zap.Error(err))
	}
}
