package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/handler"
	"github.com/noah-isme/exam-seating-api/internal/middleware"
	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/internal/service"
	"github.com/noah-isme/exam-seating-api/pkg/config"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
	"github.com/noah-isme/exam-seating-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/exam-seating-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/exam-seating-api/pkg/middleware/requestid"
	"github.com/noah-isme/exam-seating-api/pkg/response"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth     *handler.AuthHandler
	Rooms    *handler.RoomHandler
	Students *handler.StudentHandler
	Seating  *handler.SeatingHandler
	Exports  *handler.ExportHandler
	Metrics  *handler.MetricsHandler
}

// Deps carries the cross-cutting collaborators used by middleware. Redis backs the generate
// rate limiter; leave it nil to disable limiting.
type Deps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Tokens  middleware.TokenValidator
	Metrics *service.MetricsService
	Redis   redis.Scripter
}

// New builds the gin engine with the full route table.
func New(deps Deps, h Handlers) *gin.Engine {
	cfg := deps.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
	})

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(apiPrefix(cfg.APIPrefix))

	api.POST("/auth/login", h.Auth.Login)
	api.GET("/export/:token", h.Exports.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.Tokens))
	authed.GET("/auth/me", h.Auth.Me)

	anyStaff := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	rooms := authed.Group("/rooms")
	rooms.GET("", anyStaff, h.Rooms.List)
	rooms.GET("/:id", anyStaff, h.Rooms.Get)
	rooms.POST("", adminOnly, h.Rooms.Create)
	rooms.PUT("/:id", adminOnly, h.Rooms.Update)
	rooms.DELETE("/:id", adminOnly, h.Rooms.Delete)

	students := authed.Group("/students")
	students.GET("", anyStaff, h.Students.List)
	students.GET("/:id", anyStaff, h.Students.Get)
	students.POST("", adminOnly, h.Students.Create)
	students.POST("/import", adminOnly, h.Students.Import)
	students.PUT("/:id", adminOnly, h.Students.Update)
	students.DELETE("/:id", adminOnly, h.Students.Delete)

	limiter := middleware.RateLimit(cfg.RateLimit, deps.Redis, middleware.RateLimitOptions{Logger: deps.Logger})
	seatingGroup := authed.Group("/seating")
	seatingGroup.POST("/generate", anyStaff, limiter, h.Seating.Generate)
	seatingGroup.POST("/save", adminOnly, h.Seating.Save)

	plans := authed.Group("/seating-plans")
	plans.GET("", anyStaff, h.Seating.List)
	plans.GET("/:id", anyStaff, h.Seating.Get)
	plans.POST("/:id/publish", adminOnly, h.Seating.Publish)
	plans.DELETE("/:id", adminOnly, h.Seating.Delete)
	plans.POST("/:id/exports", anyStaff, h.Exports.Create)

	authed.GET("/exports/:id", anyStaff, h.Exports.Status)

	return r
}

func apiPrefix(raw string) string {
	prefix := "/" + strings.Trim(strings.TrimSpace(raw), "/")
	if prefix == "/" {
		return "/api/v1"
	}
	return prefix
}

// Server wraps the engine in an http.Server. Uploads and exports bound the read and write timeouts.
func Server(addr string, engine http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
