package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/postpulse/models"
)

// ContextKey is where RequireKey stores the accepted key; RateLimit uses it
// as the client identity.
const ContextKey = "status_key"

// authRealm is sent in WWW-Authenticate with every 401.
const authRealm = `Bearer realm="postpulse-status"`

// RequireKey guards the status endpoints that expose run data. A key is
// read from "Authorization: Bearer <key>" (what Prometheus sends with
// bearer_token) or from X-API-Key. Every configured key is compared in
// constant time. With no keys configured the endpoints stay open.
func RequireKey(keys []string) gin.HandlerFunc {
	accepted := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			accepted = append(accepted, []byte(k))
		}
	}
	if len(accepted) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := presentedKey(c)
		if key == "" {
			unauthorized(c, "missing status key: send Authorization: Bearer <key> or X-API-Key")
			return
		}
		if !matchesAny(accepted, []byte(key)) {
			unauthorized(c, "invalid status key")
			return
		}
		c.Set(ContextKey, key)
		c.Next()
	}
}

func presentedKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.GetHeader("X-API-Key")
}

// matchesAny checks every key so timing does not reveal which one matched.
func matchesAny(accepted [][]byte, key []byte) bool {
	found := 0
	for _, a := range accepted {
		found |= subtle.ConstantTimeCompare(a, key)
	}
	return found == 1
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", authRealm)
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeUnauthorized,
			Message: msg,
		},
	})
}
