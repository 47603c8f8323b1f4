package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maildesk-io/maildesk-ce/internal/database"
	"github.com/maildesk-io/maildesk-ce/internal/middleware"
)

// Router wires the webhook surface onto a gin engine.
type Router struct {
	engine  *gin.Engine
	webhook *WebhookHandler
	db      *database.DB
}

// NewRouter creates the router.
func NewRouter(engine *gin.Engine, webhook *WebhookHandler, db *database.DB) *Router {
	return &Router{engine: engine, webhook: webhook, db: db}
}

// Setup registers middleware and routes. When gatherer is non-nil a
// /metrics endpoint is exposed for it.
func (r *Router) Setup(gatherer prometheus.Gatherer) {
	r.engine.Use(middleware.RequestID())
	r.engine.Use(gin.Recovery())

	r.engine.POST("/email", r.webhook.HandleInboundEmail)
	r.engine.GET("/email/health", r.webhook.HandleHealth)
	r.engine.GET("/healthz", r.handleReadiness)

	if gatherer != nil {
		r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// handleReadiness checks the database connection is alive.
func (r *Router) handleReadiness(c *gin.Context) {
	if r.db != nil {
		if err := r.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
