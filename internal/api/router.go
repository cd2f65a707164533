package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/civic-map/internal/handler"
	"github.com/jengzang/civic-map/internal/logging"
	"github.com/jengzang/civic-map/internal/metrics"
	"github.com/jengzang/civic-map/internal/middleware"
	"github.com/jengzang/civic-map/internal/service"
)

// Deps are the services the router exposes
type Deps struct {
	Maps        *service.MapService
	Reports     *service.ReportService
	Metrics     *metrics.Metrics
	Limiter     *middleware.RateLimiter
	Page        handler.PageConfig
	Log         logging.Logger
	ServiceName string
}

// cors allows the map page to be embedded from other origins
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SetupRouter builds the HTTP engine
func SetupRouter(d Deps) (*gin.Engine, error) {
	mapHandler, err := handler.NewMapHandler(d.Maps, d.Page)
	if err != nil {
		return nil, err
	}
	reportHandler := handler.NewReportHandler(d.Reports)

	log := d.Log
	if log == nil {
		log = logging.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log.Named("http")))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
	}
	r.Use(cors())

	r.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":   "ok",
			"message":  d.ServiceName + " is running",
			"sessions": d.Maps.SessionCount(),
		}
		if last := d.Reports.LastRefresh(); !last.IsZero() {
			body["reportsRefreshedAt"] = last.UTC().Format(time.RFC3339)
		}
		c.JSON(http.StatusOK, body)
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	r.GET("/map", mapHandler.Page)
	r.StaticFS("/static", handler.StaticFS())

	api := r.Group("/api/v1")
	{
		sessions := api.Group("/map/sessions")
		{
			sessions.POST("", mapHandler.CreateSession)
			sessions.GET("/:id/scene", mapHandler.Scene)
			if d.Limiter != nil {
				sessions.POST("/:id/events", middleware.RateLimit(d.Limiter), mapHandler.Event)
			} else {
				sessions.POST("/:id/events", mapHandler.Event)
			}
			sessions.DELETE("/:id", mapHandler.CloseSession)
		}

		reports := api.Group("/reports")
		{
			reports.GET("", reportHandler.GetReports)
			reports.GET("/heat", reportHandler.GetHeat)
			reports.GET("/categories", reportHandler.GetCategories)
		}
	}

	return r, nil
}
