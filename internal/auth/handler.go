package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/condohub/condofee/internal/token"
	apperrors "github.com/condohub/condofee/pkg/errors"
	"github.com/condohub/condofee/pkg/response"
	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key the auth middleware stores claims under
const ClaimsKey = "claims"

// HealthChecker is a dependency probed by /health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handler handles authentication HTTP requests
type Handler struct {
	service *Service
	checks  map[string]HealthChecker
}

// NewHandler creates a new authentication handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, checks: make(map[string]HealthChecker)}
}

// WithHealthCheck adds a named dependency to the health probe
func (h *Handler) WithHealthCheck(name string, hc HealthChecker) *Handler {
	h.checks[name] = hc
	return h
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}

// ClaimsFrom returns the claims stored by the auth middleware
func ClaimsFrom(c *gin.Context) (*token.Claims, bool) {
	v, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*token.Claims)
	return claims, ok
}

// Login handles email/password login
// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	if err := ValidateLoginRequest(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Register handles self-service resident sign up
// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	result, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// Refresh exchanges the refresh token carried as bearer credential
// GET /auth/refresh
func (h *Handler) Refresh(c *gin.Context) {
	refreshToken, ok := BearerToken(c.GetHeader("Authorization"))
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, pair)
}

// Logout handles logout (access token revocation)
// GET /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	accessToken, ok := BearerToken(c.GetHeader("Authorization"))
	if !ok {
		// Nothing to revoke; the client is already anonymous
		response.Success(c, http.StatusOK, gin.H{"message": "Logged out"})
		return
	}

	if err := h.service.Logout(c.Request.Context(), accessToken); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Logged out"})
}

// Profile returns the authenticated resident's profile
// GET /residents/me/profile
func (h *Handler) Profile(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	profile, err := h.service.Profile(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, profile)
}

// Health returns health status
// GET /health
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for name, hc := range h.checks {
		if err := hc.Health(ctx); err != nil {
			response.Fail(c, http.StatusServiceUnavailable, name+" unavailable")
			return
		}
	}

	response.Success(c, http.StatusOK, gin.H{"status": "healthy"})
}
