package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/in-nis/untis-back/internal/config"
)

const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
)

// UserID and Username read what AuthMiddleware attached to the request.
func UserID(c *gin.Context) uint     { return c.GetUint(ctxUserID) }
func Username(c *gin.Context) string { return c.GetString(ctxUsername) }

// accessToken takes the bearer token from the Authorization header and falls
// back to the access cookie.
func accessToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return parts[1], true
	}
	if tok, err := c.Cookie(accessCookie); err == nil && tok != "" {
		return tok, true
	}
	return "", false
}

func (s *Service) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := accessToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		claims, err := s.ParseToken(tok, tokenAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUsername, claims.Username)
		c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.IsAdmin(Username(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}
