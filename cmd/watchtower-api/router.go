package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/watchtower-api/internal/handler"
	internalmiddleware "github.com/noah-isme/watchtower-api/internal/middleware"
	"github.com/noah-isme/watchtower-api/internal/models"
	"github.com/noah-isme/watchtower-api/internal/service"
	"github.com/noah-isme/watchtower-api/pkg/config"
	"github.com/noah-isme/watchtower-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/watchtower-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/watchtower-api/pkg/middleware/requestid"
)

type routerDeps struct {
	Auth          gin.HandlerFunc
	Metrics       *service.MetricsService
	ExamPeriods   *handler.ExamPeriodHandler
	DutySchedules *handler.DutyScheduleHandler
	Exports       *handler.ExportHandler
	Health        *handler.HealthHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(deps.Metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", deps.Health.Health)
	r.GET("/ready", deps.Health.Ready)
	r.GET("/metrics", deps.Health.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/export/:token", deps.Exports.Download)

	secured := api.Group("")
	secured.Use(deps.Auth)
	admin := internalmiddleware.RequireRoles(models.RoleAdmin)
	audit := func(action string) gin.HandlerFunc { return internalmiddleware.Audit(logr, action) }

	periods := secured.Group("/exam-periods")
	periods.POST("", admin, audit("exam_period.create"), deps.ExamPeriods.Create)
	periods.GET("", deps.ExamPeriods.List)
	periods.GET("/:id", deps.ExamPeriods.Get)
	periods.PUT("/:id/roster", admin, audit("roster.submit"), deps.ExamPeriods.SubmitRoster)
	periods.GET("/:id/roster", deps.ExamPeriods.Roster)
	periods.PUT("/:id/timetable", admin, audit("timetable.submit"), deps.ExamPeriods.SubmitTimetable)
	periods.GET("/:id/timetable", deps.ExamPeriods.Timetable)
	periods.GET("/:id/sessions", deps.ExamPeriods.Sessions)
	periods.GET("/:id/duty-schedules", deps.DutySchedules.List)
	if cfg.Scheduler.Enabled {
		periods.POST("/:id/duty-schedules/generate", admin, deps.DutySchedules.Generate)
	}

	schedules := secured.Group("/duty-schedules")
	if cfg.Scheduler.Enabled {
		schedules.POST("/save", admin, audit("duty_schedule.save"), deps.DutySchedules.Save)
	}
	schedules.GET("/:id", deps.DutySchedules.Detail)
	schedules.POST("/:id/publish", admin, audit("duty_schedule.publish"), deps.DutySchedules.Publish)
	schedules.DELETE("/:id", admin, audit("duty_schedule.delete"), deps.DutySchedules.Delete)
	schedules.POST("/:id/exports", admin, audit("duty_schedule.export"), deps.Exports.Create)

	secured.GET("/exports/:id", deps.Exports.Status)
	return r
}
