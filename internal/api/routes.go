package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/authcore/internal/alerts"
	"github.com/rawblock/authcore/internal/enroll"
	"github.com/rawblock/authcore/internal/integration"
	"github.com/rawblock/authcore/internal/verify"
)

// APIHandler wires the HTTP surface to the orchestrators and ambient
// services it dispatches to. No business logic lives here — every handler
// decodes its request, calls straight into C7/C8/C9, and maps the result.
type APIHandler struct {
	enroll   *enroll.Orchestrator
	verify   *verify.Orchestrator
	alertMgr *alerts.Manager
	hub      *alerts.Hub
	breaker  *integration.CircuitBreaker
}

// SetupRouter builds the gin.Engine implementing spec.md §6's HTTP API
// surface. Grounded on the teacher's SetupRouter: CORS middleware kept in
// shape (ALLOWED_ORIGINS env var), public vs. bearer-token-protected route
// groups kept in shape, only the handlers themselves are domain-rewritten.
func SetupRouter(enrollOrch *enroll.Orchestrator, verifyOrch *verify.Orchestrator, alertMgr *alerts.Manager, hub *alerts.Hub, breaker *integration.CircuitBreaker) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var.
	// Production: ALLOWED_ORIGINS=https://merchant.example,https://ops.example
	// Development: leave empty for *.
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		enroll:   enrollOrch,
		verify:   verifyOrch,
		alertMgr: alertMgr,
		hub:      hub,
		breaker:  breaker,
	}

	// ── Public endpoints (no bearer token; each carries its own
	// admission logic via C3/C5/C8/C9) ─────────────────────────────
	pub := r.Group("/v1")
	{
		pub.POST("/enroll", handler.handleEnroll)
		pub.GET("/factors/:user_id", handler.handleRetrieveFactors)
		pub.PUT("/factors/:user_id", handler.handleUpdateFactors)
		pub.DELETE("/factors/:user_id", handler.handleDeleteFactors)

		pub.POST("/sessions", handler.handleCreateSession)
		pub.POST("/sessions/:session_id/factors", handler.handleSubmitFactor)
	}
	r.GET("/ws/alerts", hub.Subscribe)
	r.GET("/healthz", handler.handleHealth)

	// ── Admin/ops endpoints (bearer token required if API_AUTH_TOKEN
	// is set) ────────────────────────────────────────────────────────
	admin := r.Group("/v1/admin")
	admin.Use(AuthMiddleware())
	{
		admin.GET("/alerts/recent", handler.handleRecentAlerts)
		admin.GET("/breaker", handler.handleBreakerState)
	}

	return r
}

// handleHealth reports circuit breaker state and is never gated behind
// auth — load balancers and uptime checks need it reachable.
func (h *APIHandler) handleHealth(c *gin.Context) {
	state := "UNKNOWN"
	if h.breaker != nil {
		state = h.breaker.State().String()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"breaker_state": state,
	})
}

func (h *APIHandler) handleRecentAlerts(c *gin.Context) {
	if h.alertMgr == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert manager not configured"})
		return
	}
	limit := 50
	c.JSON(http.StatusOK, gin.H{"alerts": h.alertMgr.RecentAlerts(limit)})
}

func (h *APIHandler) handleBreakerState(c *gin.Context) {
	if h.breaker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "circuit breaker not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.breaker.State().String()})
}
