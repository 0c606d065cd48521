package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func withAuthRoute() *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/admin/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestAuthMiddlewareDevModeAllowsAllWhenTokenUnset(t *testing.T) {
	os.Unsetenv("API_AUTH_TOKEN")
	r := withAuthRoute()

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected dev-mode bypass to return 200, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	os.Setenv("API_AUTH_TOKEN", "secret-token")
	defer os.Unsetenv("API_AUTH_TOKEN")
	r := withAuthRoute()

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing Authorization header, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsWrongToken(t *testing.T) {
	os.Setenv("API_AUTH_TOKEN", "secret-token")
	defer os.Unsetenv("API_AUTH_TOKEN")
	r := withAuthRoute()

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for an incorrect token, got %d", w.Code)
	}
}

func TestAuthMiddlewareAcceptsCorrectToken(t *testing.T) {
	os.Setenv("API_AUTH_TOKEN", "secret-token")
	defer os.Unsetenv("API_AUTH_TOKEN")
	r := withAuthRoute()

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a correct bearer token, got %d", w.Code)
	}
}

func TestAuthMiddlewareAcceptsAnyTokenInRotationList(t *testing.T) {
	os.Setenv("API_AUTH_TOKEN", "old-token, new-token")
	defer os.Unsetenv("API_AUTH_TOKEN")
	r := withAuthRoute()

	for _, tok := range []string{"old-token", "new-token"} {
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for rotation token %q, got %d", tok, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer retired-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a token outside the rotation list, got %d", w.Code)
	}
}

func TestSplitTokensDropsBlankEntries(t *testing.T) {
	got := splitTokens(" a , , b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b] with blanks dropped, got %v", got)
	}
	if splitTokens("") != nil {
		t.Fatalf("expected nil for an empty API_AUTH_TOKEN")
	}
}

func TestIsShadowReplayEnabledReadsEnv(t *testing.T) {
	os.Unsetenv("ENABLE_SHADOW_REPLAY")
	if IsShadowReplayEnabled() {
		t.Fatalf("expected shadow replay disabled by default")
	}
	os.Setenv("ENABLE_SHADOW_REPLAY", "true")
	defer os.Unsetenv("ENABLE_SHADOW_REPLAY")
	if !IsShadowReplayEnabled() {
		t.Fatalf("expected shadow replay enabled when ENABLE_SHADOW_REPLAY=true")
	}
}
