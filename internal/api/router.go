package api

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"

	"github.com/nekogravitycat/blog-backend/internal/auth"
	"github.com/nekogravitycat/blog-backend/internal/metrics"
	"github.com/nekogravitycat/blog-backend/internal/pkg/httpmw"
	"github.com/nekogravitycat/blog-backend/internal/pkg/ratelimit"
	"github.com/nekogravitycat/blog-backend/internal/pkg/response"
	"github.com/nekogravitycat/blog-backend/internal/post"
	postHttp "github.com/nekogravitycat/blog-backend/internal/post/http"
	"github.com/nekogravitycat/blog-backend/internal/user"
	userHttp "github.com/nekogravitycat/blog-backend/internal/user/http"
)

// Config holds everything the router needs.
type Config struct {
	Development    bool
	CORSOrigins    []string
	MaxBodyBytes   int64
	MaxUploadBytes int64

	Logger  *slog.Logger
	Metrics *metrics.ServerMetrics
	// Limiter may be nil to disable rate limiting.
	Limiter *ratelimit.IPLimiter
	DB      Pinger

	UserService user.Service
	PostService post.Service
	// Generator may be nil when content generation is disabled.
	Generator  postHttp.Generator
	JWTManager *auth.JWTManager
}

// NewRouter initializes the HTTP router engine.
//
// The pipeline runs in this order: security headers, request id, CORS,
// metrics, error responder, rate limit, compression, access log, body
// parsing, sanitization, panic recovery, routes and the 404 fallback. The
// error responder sits early so that it acts last, after every later stage
// has had the chance to forward an error.
func NewRouter(cfg Config) *gin.Engine {
	r := gin.New()
	r.ContextWithFallback = true

	r.Use(
		httpmw.SecurityHeaders(),
		httpmw.RequestID(),
		cors.New(corsConfig(cfg.CORSOrigins)),
		cfg.Metrics.Middleware(),
		response.ErrorHandler(cfg.Development),
	)
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.Middleware())
	}
	r.Use(
		httpmw.Compress(gzip.DefaultCompression),
		httpmw.RequestLogger(cfg.Logger),
		httpmw.ParseBody(cfg.MaxBodyBytes),
		httpmw.Sanitize(),
		httpmw.Recovery(cfg.Metrics.IncHTTPPanic),
	)

	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	optionalAuth := auth.OptionalAuth(cfg.JWTManager)
	adminMiddleware := auth.Authorize(auth.RoleAdmin)

	userHandler := userHttp.NewHandler(cfg.UserService, cfg.JWTManager)
	postHandler := postHttp.NewHandler(cfg.PostService, cfg.Generator, cfg.MaxUploadBytes)

	api := r.Group("/api")
	{
		api.GET("/health", Health(cfg.DB, time.Now()))
		api.GET("/docs", DocsYAML)
		api.GET("/docs/openapi.json", DocsJSON)

		userHttp.RegisterRoutes(api, userHandler, authMiddleware)
		postHttp.RegisterRoutes(api, postHandler, authMiddleware, optionalAuth, adminMiddleware)
	}

	r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	r.NoRoute(httpmw.NotFound())

	return r
}

func corsConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}
	config.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", httpmw.RequestIDHeader}
	config.ExposeHeaders = []string{httpmw.RequestIDHeader, "RateLimit-Limit", "RateLimit-Remaining", "Retry-After"}
	config.MaxAge = 12 * time.Hour
	return config
}
