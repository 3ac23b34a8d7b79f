package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader        = "X-API-Key"
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// RequireAPIAuth accepts either first-party scheme: a static API key checked
// against the credential store, or a service bearer token. Identity is
// injected into the request context on success.
func RequireAPIAuth(creds *CredentialStore, tokens *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := strings.TrimSpace(c.GetHeader(apiKeyHeader)); key != "" {
			cred, err := creds.Authenticate(c.Request.Context(), key)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
				return
			}
			attach(c, cred.Name, SchemeAPIKey)
			c.Next()
			return
		}

		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			return
		}
		claims, err := tokens.Verify(strings.TrimPrefix(raw, bearerPrefix), time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		attach(c, claims.ServiceName, SchemeBearer)
		c.Next()
	}
}

func attach(c *gin.Context, name string, scheme Scheme) {
	ctx := WithCaller(c.Request.Context(), name, scheme)
	c.Request = c.Request.WithContext(ctx)

	// Also store on gin context for handler convenience.
	c.Set("caller_name", name)
	c.Set("auth_scheme", string(scheme))
}
