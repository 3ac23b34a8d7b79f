package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"collectvoice/internal/config"

	"github.com/gin-gonic/gin"
)

func authRouter(t *testing.T, m *Manager) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// Nil credential store: the API-key branch is only taken when the header
	// is present, so bearer-only tests stay safe.
	r.GET("/protected", RequireAPIAuth(NewCredentialStore(nil), m), func(c *gin.Context) {
		name, err := CallerName(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"caller": name})
	})
	return r
}

func TestRequireAPIAuth_MissingCredentials(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", ServiceTokenTTL: time.Hour})
	r := authRouter(t, m)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireAPIAuth_ValidBearer(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", ServiceTokenTTL: time.Hour})
	r := authRouter(t, m)

	tok, err := m.Issue(time.Now(), "dashboard")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRequireAPIAuth_GarbageBearer(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", ServiceTokenTTL: time.Hour})
	r := authRouter(t, m)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireAPIAuth_NonBearerAuthorization(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", ServiceTokenTTL: time.Hour})
	r := authRouter(t, m)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
