package main

import (
	"database/sql"
	"net/http"
	"time"

	"collectvoice/internal/auth"
	"collectvoice/internal/config"
	"collectvoice/internal/httpapi"
	"collectvoice/internal/metrics"
	"collectvoice/internal/sessions"
	"collectvoice/internal/users"
	"collectvoice/internal/vapi"
	"collectvoice/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type deps struct {
	cfg      config.Config
	db       *sql.DB
	metrics  *metrics.Metrics
	users    *users.Service
	recorder *sessions.Recorder
	creds    *auth.CredentialStore
	tokens   *auth.Manager
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d deps) {
	// public
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "collectvoice",
			"routes": []string{
				"GET  /health",
				"GET  /metrics",
				"GET  /api/v1/users/:phone",
				"POST /api/v1/negotiate",
				"POST /api/v1/call-result",
				"POST /vapi/webhook",
				"POST /vapi/save-result",
			},
		})
	})

	r.GET("/health", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// first-party API: static keys or service bearer tokens
	api := r.Group("/api/v1")
	api.Use(auth.RequireAPIAuth(d.creds, d.tokens))
	{
		h := httpapi.Handlers{
			Users:         d.users,
			Recorder:      d.recorder,
			Metrics:       d.metrics,
			VerboseErrors: d.cfg.App.Env != "production",
		}
		api.GET("/users/:phone", h.GetUserByPhone)
		api.POST("/negotiate", h.Negotiate)
		api.POST("/call-result", h.RecordCallResult)
	}

	// voice platform callbacks, gated on the shared webhook secret
	hooks := r.Group("/vapi")
	hooks.Use(vapi.RequireWebhookSecret(d.cfg.Vapi.WebhookSecret))
	{
		h := vapi.Handlers{
			Users:    d.users,
			Recorder: d.recorder,
			Metrics:  d.metrics,
		}
		hooks.POST("/webhook", h.Webhook)
		hooks.POST("/save-result", h.SaveResult)
	}
}
