package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tesseract-hub/enquiry-service/internal/apperrors"
	"github.com/tesseract-hub/enquiry-service/internal/models"
	"github.com/tesseract-hub/enquiry-service/internal/services"
)

// ContextActor holds the authenticated *services.Actor
const ContextActor = "actor"

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

// AuthRequired rejects requests without a valid bearer token
func AuthRequired(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, string(apperrors.KindAuthentication), "authorization header required")
			return
		}
		claims, err := tokens.ValidateToken(token)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, string(apperrors.KindAuthentication), apperrors.MessageOf(err))
			return
		}
		c.Set(ContextActor, services.ActorFromClaims(claims, c.ClientIP(), c.Request.UserAgent()))
		c.Next()
	}
}

// OptionalAuth sets the actor when a valid bearer token is present and ignores it otherwise
func OptionalAuth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := tokens.ValidateToken(token); err == nil {
				c.Set(ContextActor, services.ActorFromClaims(claims, c.ClientIP(), c.Request.UserAgent()))
			}
		}
		c.Next()
	}
}

// RequireRole allows only the given roles. It must run after AuthRequired.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := GetActor(c)
		if actor == nil {
			abortWithError(c, http.StatusUnauthorized, string(apperrors.KindAuthentication), "authentication required")
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		abortWithError(c, http.StatusForbidden, string(apperrors.KindAuthorization), "insufficient permissions")
	}
}

// GetActor returns the authenticated actor, or nil for anonymous requests
func GetActor(c *gin.Context) *services.Actor {
	value, exists := c.Get(ContextActor)
	if !exists {
		return nil
	}
	actor, _ := value.(*services.Actor)
	return actor
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
