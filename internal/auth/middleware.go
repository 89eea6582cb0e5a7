package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyToken is the gin context key for the raw bearer token
	ContextKeyToken = "bearerToken"
	// ContextKeyClaims is the gin context key for parsed JWT claims
	ContextKeyClaims = "authClaims"
)

// Middleware extracts the bearer token from the Authorization header.
// Sets the token and parsed claims in context when present, and stores
// the token on the request context so upstream clients can forward it.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractBearer(c.GetHeader("Authorization"))
		if err == nil {
			c.Set(ContextKeyToken, token)
			if claims, err := ParseClaims(token); err == nil {
				c.Set(ContextKeyClaims, claims)
			}
			c.Request = c.Request.WithContext(ContextWithToken(c.Request.Context(), token))
		}
		c.Next()
	}
}

// RequireAuth middleware rejects requests without a bearer token
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextKeyToken); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Bearer token required. Include 'Authorization: Bearer ...' header.",
			})
			return
		}
		c.Next()
	}
}

// GetClaims returns the parsed JWT claims from context (if present)
func GetClaims(c *gin.Context) (*Claims, bool) {
	claims, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil, false
	}
	return claims.(*Claims), true
}

// GetToken returns the raw bearer token from context
func GetToken(c *gin.Context) string {
	token, exists := c.Get(ContextKeyToken)
	if !exists {
		return ""
	}
	return token.(string)
}
