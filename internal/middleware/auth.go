package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/condohub/condofee/internal/auth"
	"github.com/condohub/condofee/internal/token"
	apperrors "github.com/condohub/condofee/pkg/errors"
	"github.com/condohub/condofee/pkg/response"
	"github.com/gin-gonic/gin"
)

// TokenValidator validates access tokens, including revocation
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*token.Claims, error)
}

// Auth rejects requests without a valid access token and stores its claims
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Abort(c, http.StatusUnauthorized, "Missing Authorization header")
			return
		}

		tokenString, ok := auth.BearerToken(header)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}

		claims, err := validator.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			abortInvalid(c, err)
			return
		}

		c.Set(auth.ClaimsKey, claims)
		c.Next()
	}
}

// abortInvalid keeps validator internals out of the response body
func abortInvalid(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		response.Abort(c, appErr.Status, appErr.Message)
		return
	}

	_ = c.Error(err)
	response.Abort(c, http.StatusInternalServerError, "Internal server error")
}

// RequireRole lets through only residents holding one of roles.
// It must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := auth.ClaimsFrom(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Abort(c, http.StatusForbidden, "Forbidden")
			return
		}
		c.Next()
	}
}
