package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	promhandler "github.com/kenko/clinic-api/internal/handler/prometheus"
	"github.com/kenko/clinic-api/internal/middleware"
	"github.com/kenko/clinic-api/pkg/errors"
	"github.com/kenko/clinic-api/pkg/httputil"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine       *gin.Engine
	appointmentH Handler
	healthH      Handler
	metricsH     *promhandler.Handler
	config       RouterConfig
}

type RouterConfig struct {
	Mode             string
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	RequestTimeout   time.Duration
	MaxBodySize      int64
	// MetricsPath is left unmounted when empty.
	MetricsPath string
}

func NewRouter(
	log zerolog.Logger,
	appointmentH Handler,
	healthH Handler,
	metricsH *promhandler.Handler,
	config RouterConfig,
) (*Router, error) {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if err := middleware.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}

	engine := gin.New()
	r := &Router{
		engine:       engine,
		appointmentH: appointmentH,
		healthH:      healthH,
		metricsH:     metricsH,
		config:       config,
	}

	// RequestID goes first so every later middleware logs with the id.
	engine.Use(
		middleware.RequestID(log),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
	)
	if metricsH != nil {
		engine.Use(metricsH.Middleware())
	}
	engine.Use(
		middleware.SecurityHeaders(),
		middleware.CORS(config.CORSConfig),
	)
	if config.RateLimitEnabled {
		engine.Use(middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		}).RateLimit())
	}
	engine.Use(
		middleware.Timeout(config.RequestTimeout),
		middleware.SizeLimit(config.MaxBodySize),
	)

	engine.NoRoute(func(c *gin.Context) {
		httputil.RespondWithError(c, errors.NewNotFound("route not found", nil))
	})
	engine.HandleMethodNotAllowed = true
	engine.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, httputil.NewErrorResponse("method not allowed"))
	})

	return r, nil
}

func (r *Router) Setup() {
	if r.metricsH != nil && r.config.MetricsPath != "" {
		r.engine.GET(r.config.MetricsPath, r.metricsH.Handler())
	}

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.healthH.RegisterRoutes(api)

	tenant := api.Group("", middleware.Tenant())
	r.appointmentH.RegisterRoutes(tenant)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
