package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tharoon321/go-rentals/cache"
	"github.com/Tharoon321/go-rentals/utils"
)

// ClaimsKey is the gin context key holding the caller's *utils.Claims.
const ClaimsKey = "claims"

// TokenParser verifies a raw token and returns its claims.
type TokenParser interface {
	Parse(token string) (*utils.Claims, error)
}

// RevokedKey is the cache key marking a token ID as logged out.
func RevokedKey(jti string) string {
	return "revoked:" + jti
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}

// Auth verifies the bearer token, rejects revoked tokens and stores the
// claims in the gin context under ClaimsKey.
func Auth(tokens TokenParser, revoked cache.Store, logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "Token not found"})
			return
		}

		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			logger.Debugw("token rejected", "error", err, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "Unauthorized: Invalid token"})
			return
		}

		if claims.ID != "" {
			_, err := revoked.Get(c.Request.Context(), RevokedKey(claims.ID))
			switch {
			case err == nil:
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "Unauthorized: Token revoked"})
				return
			case !errors.Is(err, cache.ErrMiss):
				logger.Errorw("revocation lookup failed", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"err": "Server Error"})
				return
			}
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// CurrentClaims returns the claims stored by Auth.
func CurrentClaims(c *gin.Context) (*utils.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok && claims != nil
}

// RequireRole ensures that the authenticated user has the given role.
// Roles compare case-insensitively and there is no hierarchy.
// Example: router.POST("/post", auth, middleware.RequireRole("Seller"), handler)
func RequireRole(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok || !strings.EqualFold(claims.Role, required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"err": "Unauthorized: Insufficient role"})
			return
		}
		c.Next()
	}
}
