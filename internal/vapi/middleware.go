package vapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"

	"github.com/gin-gonic/gin"
)

const secretHeader = "X-Vapi-Secret"

// RequireWebhookSecret gates the voice platform's callbacks on the shared
// secret header. Both values are hashed before comparison so the check is
// constant-time and leaks neither content nor length.
func RequireWebhookSecret(secret string) gin.HandlerFunc {
	want := sha256.Sum256([]byte(secret))
	return func(c *gin.Context) {
		got := sha256.Sum256([]byte(c.GetHeader(secretHeader)))
		if secret == "" || !hmac.Equal(got[:], want[:]) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
		c.Next()
	}
}
