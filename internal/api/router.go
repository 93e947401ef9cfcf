package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/schoolgrid/timetable-back/docs"
	"github.com/schoolgrid/timetable-back/internal/auth"
	"github.com/schoolgrid/timetable-back/internal/config"
	"github.com/schoolgrid/timetable-back/internal/db"
	"github.com/schoolgrid/timetable-back/internal/exchange"
	"github.com/schoolgrid/timetable-back/internal/excel"
	"github.com/schoolgrid/timetable-back/internal/models"
	"github.com/schoolgrid/timetable-back/internal/schedule"
	"github.com/schoolgrid/timetable-back/internal/slots"
)

// Handlers bundles the services the HTTP layer dispatches into.
type Handlers struct {
	cfg      *config.Config
	registry *slots.Registry
	grid     *schedule.Grid
	manager  *exchange.Manager
	importer *excel.Importer
	logger   *zap.Logger
}

func NewHandlers(cfg *config.Config, registry *slots.Registry, grid *schedule.Grid, manager *exchange.Manager, importer *excel.Importer, logger *zap.Logger) *Handlers {
	return &Handlers{
		cfg:      cfg,
		registry: registry,
		grid:     grid,
		manager:  manager,
		importer: importer,
		logger:   logger,
	}
}

// @title           SchoolGrid Timetable API
// @version         1.0
// @description     Weekly schedule grid and teacher slot-exchange backend.
// @host            localhost:8000
// @BasePath        /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func SetupRouter(cfg *config.Config, h *Handlers) *gin.Engine {
	auth.InitGoogle(cfg)

	r := gin.Default()

	// Public routes
	r.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(500, gin.H{"status": "db_ping_error"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Google login
	r.GET("/auth/google/login", auth.GoogleLoginHandler())
	r.GET("/auth/google/callback", auth.GoogleCallbackHandler(cfg))
	r.POST("/auth/refresh", auth.RefreshHandler(cfg))

	// Protected
	v1 := r.Group("/api/v1")
	v1.Use(auth.Middleware(cfg))
	{
		v1.GET("/time-slots", h.ListTimeSlots)
		v1.GET("/schedule", h.GetSchedule)

		v1.POST("/exchange-requests", h.CreateExchangeRequest)
		v1.GET("/exchange-requests", h.ListExchangeRequests)
		v1.GET("/exchange-requests/:id", h.GetExchangeRequest)
		v1.PUT("/exchange-requests", h.TransitionExchangeRequest)

		admin := v1.Group("")
		admin.Use(auth.RequireRole(models.RoleAdmin))
		{
			admin.POST("/time-slots", h.CreateTimeSlot)
			admin.PUT("/time-slots/:id", h.UpdateTimeSlot)
			admin.DELETE("/time-slots/:id", h.DeleteTimeSlot)
			admin.POST("/schedule/import", h.ImportSchedule)
		}
	}

	return r
}
