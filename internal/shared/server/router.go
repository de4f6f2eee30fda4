package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"applicant-interview/internal/shared/config"
	"applicant-interview/internal/shared/metrics"
	"applicant-interview/internal/shared/server/middleware"
	"applicant-interview/internal/shared/server/respond"
)

// APIPrefix is where JSON routes are mounted.
const APIPrefix = "/api/v1"

// APIRoutes registers handlers under the API group.
type APIRoutes interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// PageRoutes registers handlers at the site root.
type PageRoutes interface {
	RegisterRoutes(r gin.IRoutes)
}

// DefaultRateRules keeps session creation stricter than answers.
func DefaultRateRules() map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		middleware.RateGroupSessionStart: {Rate: 0.2, Burst: 3},
		middleware.RateGroupAnswer:       {Rate: 1, Burst: 10},
		middleware.RateGroupDefault:      {Rate: 5, Burst: 20},
	}
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config, page PageRoutes, api ...APIRoutes) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    DefaultRateRules(),
			GroupFor: middleware.SessionGroupFor,
			Limiter:  middleware.NewRateLimiter(time.Now),
		}),
	)

	r.GET("/metrics", metrics.Handler())
	if page != nil {
		page.RegisterRoutes(r)
	}

	group := r.Group(APIPrefix)
	group.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	for _, routes := range api {
		routes.RegisterRoutes(group)
	}
	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":3000"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
