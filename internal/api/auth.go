package api

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/authcore/internal/obslog"
)

// ──────────────────────────────────────────────────────────────────
// Bearer Token Authentication Middleware
//
// Reads API_AUTH_TOKEN from environment. If set, all admin/ops routes
// require: Authorization: Bearer <token>
//
// API_AUTH_TOKEN accepts a comma-separated list so a token can be rotated
// without a window where both the old and new operator credential are
// rejected: add the new token alongside the old one, roll operators over,
// then drop the old one from the list.
//
// Public endpoints (enroll, sessions, the alert websocket, healthz) are
// excluded — they carry their own admission logic (C3/C5/C8/C9).
// ──────────────────────────────────────────────────────────────────

var authLog = obslog.New("api-auth")

// AuthMiddleware returns a Gin middleware that validates bearer tokens
// against every token in API_AUTH_TOKEN. If the variable is unset, all
// requests are allowed (dev mode).
// WARNING: In GIN_MODE=release, leaving API_AUTH_TOKEN unset exposes all
// admin/ops routes to the public internet. Always set a strong token in prod.
func AuthMiddleware() gin.HandlerFunc {
	tokens := splitTokens(os.Getenv("API_AUTH_TOKEN"))

	// Fail loudly in production if auth is not configured.
	if len(tokens) == 0 && os.Getenv("GIN_MODE") == "release" {
		authLog.Warn("API_AUTH_TOKEN is not set in release mode. " +
			"All admin/ops endpoints are publicly accessible. " +
			"Set API_AUTH_TOKEN in your environment to enforce authentication.")
	}

	return func(c *gin.Context) {
		// If no token is configured, skip auth (development mode)
		if len(tokens) == 0 {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
				"hint":  "Use: Authorization: Bearer <API_AUTH_TOKEN>",
			})
			c.Abort()
			return
		}

		// Parse "Bearer <token>"
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid Authorization header format"})
			c.Abort()
			return
		}

		if !matchesAnyToken(parts[1], tokens) {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		authLog.Printf("admin request authorized method=%s path=%s remote=%s", c.Request.Method, c.Request.URL.Path, c.ClientIP())
		c.Next()
	}
}

// splitTokens parses a comma-separated API_AUTH_TOKEN value, trimming
// whitespace and dropping empty entries so a trailing comma doesn't
// silently admit a blank bearer token.
func splitTokens(raw string) []string {
	if raw == "" {
		return nil
	}
	var tokens []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// matchesAnyToken compares presented against every configured token in
// constant time, without short-circuiting on the first check, so the
// number of valid tokens configured cannot be inferred from response
// timing.
func matchesAnyToken(presented string, tokens []string) bool {
	ok := 0
	for _, t := range tokens {
		ok |= subtle.ConstantTimeCompare([]byte(presented), []byte(t))
	}
	return ok == 1
}

// IsShadowReplayEnabled returns true if ENABLE_SHADOW_REPLAY=true is set.
// Shadow replay (A8) runs candidate fraud-policy configurations against
// historical attempts without affecting any live decision; disabled by
// default so a misconfigured policy diff never touches production data.
func IsShadowReplayEnabled() bool {
	return os.Getenv("ENABLE_SHADOW_REPLAY") == "true"
}
