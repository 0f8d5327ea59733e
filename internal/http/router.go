// Package httpapi wires the HTTP transport (Gin) to the thread and message
// services, middleware, and route handlers. It centralizes cross-cutting
// concerns such as tracing, correlation IDs, logging/redaction, panic
// recovery, metrics, compression, CORS, security headers, authentication and
// rate limiting.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/tbourn/go-messages-api/docs"
	"github.com/tbourn/go-messages-api/internal/auth"
	"github.com/tbourn/go-messages-api/internal/config"
	"github.com/tbourn/go-messages-api/internal/http/handlers"
	"github.com/tbourn/go-messages-api/internal/http/middleware"
)

// Deps are the collaborators the router mounts.
type Deps struct {
	Threads  handlers.ThreadService
	Messages handlers.MessageService
	// Auth is nil when authentication is disabled.
	Auth *auth.Service
	// Pingers are checked by GET /health/store.
	Pingers []handlers.Pinger
}

const maxBodyBytes = 1 << 20

var (
	corsMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", "X-Request-ID"}
	corsExpose  = []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After"}
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: access log with PII scrubbing (written after the handler)
//  4. ContextLogger: request-scoped logger for handlers and services
//  5. Recovery: capture panics after the loggers
//  6. Body size limiter
//  7. Metrics
//  8. Gzip (optional)
//  9. Rate limiter (per client IP)
//  10. CORS and security headers
//
// With authentication enabled, protected routes also get a per-user limiter
// after RequireAuth.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
		SkipPaths:   []string{"/metrics", "/health"},
	}))
	r.Use(middleware.ContextLogger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.GzipEnabled {
		r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	}

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	useCORS(r, cfg.CORS.AllowedOrigins)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/", handlers.Banner)
	r.GET("/health", handlers.Health)
	r.GET("/health/store", handlers.StoreHealth(deps.Pingers...))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// A typed nil *auth.Service must not leak into the interfaces.
	var authn handlers.Authenticator
	guard := []gin.HandlerFunc{}
	if deps.Auth != nil {
		authn = deps.Auth
		if cfg.Auth.Enabled {
			perUser := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
			guard = append(guard, middleware.RequireAuth(deps.Auth), perUser.Handler())
		}
	}
	h := handlers.New(deps.Threads, deps.Messages, authn)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/login", h.Login)

		// Reads by id are public.
		api.GET("/threads/:id", h.GetThread)
		api.GET("/messages/:id", h.GetMessage)

		protected := api.Group("", guard...)

		// Threads
		protected.GET("/threads", h.ListThreads)
		protected.POST("/threads", h.CreateThread)
		protected.PUT("/threads/:id", h.UpdateThread)
		protected.DELETE("/threads/:id", h.DeleteThread)

		// Messages
		protected.GET("/threads/:id/messages", h.ListThreadMessages)
		protected.POST("/threads/:id/messages", h.CreateMessage)
		protected.GET("/messages", h.ListMessages)
		protected.PUT("/messages/:id", h.UpdateMessage)
		protected.DELETE("/messages/:id", h.DeleteMessage)
	}
}

// useCORS installs gin-contrib/cors. With no configured origins every origin
// is allowed (without credentials); otherwise only the allowlist is echoed.
func useCORS(r *gin.Engine, origins []string) {
	if len(origins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExpose,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
		return
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     corsMethods,
		AllowHeaders:     corsHeaders,
		ExposeHeaders:    corsExpose,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}

// limitBody caps the request body at maxBytes using http.MaxBytesReader.
// Oversized bodies make downstream reads fail, which binding reports as 400.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
