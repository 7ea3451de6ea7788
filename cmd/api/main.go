package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/russiantech/score-app-server-sub000/api/swagger"
	"github.com/russiantech/score-app-server-sub000/internal/handler"
	"github.com/russiantech/score-app-server-sub000/internal/middleware"
	"github.com/russiantech/score-app-server-sub000/internal/models"
	"github.com/russiantech/score-app-server-sub000/internal/repository"
	"github.com/russiantech/score-app-server-sub000/internal/service"
	"github.com/russiantech/score-app-server-sub000/pkg/cache"
	"github.com/russiantech/score-app-server-sub000/pkg/config"
	"github.com/russiantech/score-app-server-sub000/pkg/database"
	"github.com/russiantech/score-app-server-sub000/pkg/logger"
	corsmiddleware "github.com/russiantech/score-app-server-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/russiantech/score-app-server-sub000/pkg/middleware/requestid"
)

// @title Score App API
// @version 1.0.0
// @description Course scoring, attendance and performance backend
// @BasePath /api/v1
// @schemes http

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	columnRepo := repository.NewScoreColumnRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	assignmentRepo := repository.NewTutorAssignmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	codeSender := service.NewLogCodeSender(logr)

	authSvc := service.NewAuthService(userRepo, codeSender, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		CodeTTL:            cfg.Verification.CodeTTL,
		CodeLength:         cfg.Verification.CodeLength,
	})
	userSvc := service.NewUserService(userRepo, logr)
	courseSvc := service.NewCourseService(courseRepo, moduleRepo, lessonRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, userRepo, validate, logr)
	scoringSvc := service.NewScoringService(columnRepo, scoreRepo, lessonRepo, enrollmentRepo, assignmentRepo, userRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, enrollmentRepo, lessonRepo, assignmentRepo, userRepo, validate, logr)
	reviewSvc := service.NewReviewService(reviewRepo, enrollmentRepo, validate, logr)
	tutorSvc := service.NewTutorService(assignmentRepo, userRepo, courseRepo, validate, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Performance.CacheTTL, logr, cfg.Performance.CacheEnabled && redisClient != nil)
	performanceSvc := service.NewPerformanceService(scoreRepo, enrollmentRepo, courseRepo, attendanceRepo, cacheSvc, service.PerformanceConfig{
		CacheTTL: cfg.Performance.CacheTTL,
	}, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	scoreHandler := handler.NewScoreHandler(scoringSvc, metricsSvc, performanceSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc, userSvc)
	tutorHandler := handler.NewTutorHandler(tutorSvc)
	performanceHandler := handler.NewPerformanceHandler(performanceSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
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
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/password", authHandler.ChangePassword)
	authed.POST("/auth/verification/request", authHandler.RequestVerification)
	authed.POST("/auth/verification/confirm", authHandler.ConfirmVerification)
	authed.GET("/auth/me", authHandler.Me)

	users := authed.Group("/users")
	users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleTutor), "SELF"), userHandler.Get)

	courses := authed.Group("/courses")
	courses.GET("", courseHandler.List)
	courses.GET("/:id", courseHandler.Get)
	courses.POST("", middleware.RequireRoles(models.RoleAdmin), courseHandler.Create)
	courses.PATCH("/:id", middleware.RequireRoles(models.RoleAdmin), courseHandler.Update)
	courses.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), courseHandler.Delete)
	courses.GET("/:id/modules", courseHandler.Modules)
	courses.POST("/:id/modules", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), courseHandler.CreateModule)
	courses.GET("/:id/reviews", reviewHandler.ListByCourse)
	courses.GET("/:id/rating", reviewHandler.Rating)
	courses.GET("/:id/tutors", tutorHandler.ListByCourse)

	modules := authed.Group("/modules")
	modules.PUT("/:moduleId", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), courseHandler.UpdateModule)
	modules.DELETE("/:moduleId", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), courseHandler.DeleteModule)
	modules.GET("/:moduleId/lessons", courseHandler.Lessons)
	modules.POST("/:moduleId/lessons", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), courseHandler.CreateLesson)

	lessons := authed.Group("/lessons")
	lessons.PUT("/:lessonId", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), courseHandler.UpdateLesson)
	lessons.DELETE("/:lessonId", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), courseHandler.DeleteLesson)

	enrollments := authed.Group("/enrollments")
	enrollments.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), enrollmentHandler.List)
	enrollments.GET("/:id", enrollmentHandler.Get)
	enrollments.POST("", middleware.RequireRoles(models.RoleAdmin), enrollmentHandler.Enroll)
	enrollments.PATCH("/:id/status", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), enrollmentHandler.UpdateStatus)
	enrollments.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), enrollmentHandler.Delete)

	scores := authed.Group("/scores")
	scores.GET("", scoreHandler.List)
	scores.GET("/columns", scoreHandler.Columns)
	scores.PUT("/columns", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), scoreHandler.ReconcileColumns)
	scores.DELETE("/columns/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), scoreHandler.DeleteColumn)
	scores.POST("/bulk", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), scoreHandler.Bulk)

	attendance := authed.Group("/attendance")
	attendance.GET("", attendanceHandler.List)
	attendance.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), attendanceHandler.Mark)
	attendance.POST("/bulk", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), attendanceHandler.Bulk)
	attendance.GET("/lessons/:lessonId", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), attendanceHandler.LessonReport)
	attendance.GET("/students/:studentId/summary", attendanceHandler.StudentSummary)

	reviews := authed.Group("/reviews")
	reviews.POST("", middleware.RequireRoles(models.RoleStudent), reviewHandler.Submit)
	reviews.DELETE("/:id", reviewHandler.Delete)

	tutors := authed.Group("/tutors")
	tutors.GET("/:id/assignments", tutorHandler.ListByTutor)
	tutors.POST("/assignments", middleware.RequireRoles(models.RoleAdmin), tutorHandler.Assign)
	tutors.DELETE("/assignments/:id", middleware.RequireRoles(models.RoleAdmin), tutorHandler.Revoke)

	performance := authed.Group("/performance")
	performance.GET("/students/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleTutor), "SELF"), performanceHandler.Student)
	performance.GET("/students/:id/export/csv", middleware.RBAC(string(models.RoleAdmin), string(models.RoleTutor), "SELF"), performanceHandler.ExportCSV)
	performance.GET("/students/:id/export/pdf", middleware.RBAC(string(models.RoleAdmin), string(models.RoleTutor), "SELF"), performanceHandler.ExportPDF)

	authed.GET("/metrics/snapshot", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
