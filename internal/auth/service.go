package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/condohub/condofee/internal/metrics"
	"github.com/condohub/condofee/internal/ratelimit"
	"github.com/condohub/condofee/internal/resident"
	"github.com/condohub/condofee/internal/token"
	apperrors "github.com/condohub/condofee/pkg/errors"
	"go.uber.org/zap"
)

// Residents is the slice of the resident repository the auth flows need
type Residents interface {
	FindByEmail(ctx context.Context, email string) (*resident.Resident, error)
	FindByID(ctx context.Context, id int64) (*resident.Resident, error)
	Create(ctx context.Context, res *resident.Resident) error
	UpdateLastLoggedOn(ctx context.Context, id int64) error
	RecordLoginAttempt(ctx context.Context, email, ipAddress string, success bool) error
}

// Revoker tracks revoked token IDs
type Revoker interface {
	Add(ctx context.Context, tokenID string, expiry time.Time) error
	Claim(ctx context.Context, tokenID string, expiry time.Time) (bool, error)
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

// RateLimiter interface for rate limiting
type RateLimiter interface {
	Check(ctx context.Context, email, ipAddress string) (ratelimit.Decision, error)
	RecordFailure(ctx context.Context, email, ipAddress string) error
	RecordSuccess(ctx context.Context, email, ipAddress string) error
}

// Service handles authentication business logic
type Service struct {
	residents    Residents
	tokenService *token.Service
	revoked      Revoker
	rateLimiter  RateLimiter
	logger       *zap.Logger
}

// NewService creates a new authentication service. rateLimiter may be nil.
func NewService(
	residents Residents,
	tokenService *token.Service,
	revoked Revoker,
	rateLimiter RateLimiter,
	logger *zap.Logger,
) *Service {
	return &Service{
		residents:    residents,
		tokenService: tokenService,
		revoked:      revoked,
		rateLimiter:  rateLimiter,
		logger:       logger,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest represents a self-service resident registration
type RegisterRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the token pair plus the authenticated resident
type LoginResponse struct {
	token.TokenPair
	User resident.Profile `json:"user"`
}

// Login authenticates with email and password
func (s *Service) Login(ctx context.Context, email, password, ipAddress string) (*LoginResponse, error) {
	start := time.Now()
	email = SanitizeEmail(email)

	if s.rateLimiter != nil {
		decision, err := s.rateLimiter.Check(ctx, email, ipAddress)
		if err != nil {
			// Redis trouble must not lock everyone out
			s.logger.Warn("rate limiter check failed", zap.Error(err))
		} else if !decision.Allowed {
			metrics.RecordRateLimitHit()
			metrics.RecordLoginAttempt("password", "blocked", time.Since(start))
			return nil, apperrors.NewAppError(
				apperrors.ErrCodeRateLimitExceeded,
				fmt.Sprintf("Too many failed attempts, locked out for %v", decision.LockoutRemaining.Round(time.Second)),
				429,
			)
		}
	}

	res, err := s.residents.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if res == nil || VerifyPassword(password, res.PasswordDigest) != nil {
		s.recordFailure(ctx, email, ipAddress)
		metrics.RecordLoginAttempt("password", "failure", time.Since(start))
		return nil, apperrors.ErrInvalidCredentials
	}

	_ = s.residents.RecordLoginAttempt(ctx, email, ipAddress, true)
	if s.rateLimiter != nil {
		if err := s.rateLimiter.RecordSuccess(ctx, email, ipAddress); err != nil {
			s.logger.Warn("failed to reset rate limiter", zap.Error(err))
		}
	}

	if err := s.residents.UpdateLastLoggedOn(ctx, res.ID); err != nil {
		s.logger.Warn("failed to update last_logged_on", zap.Int64("resident_id", res.ID), zap.Error(err))
	}

	resp, err := s.issue(res)
	if err != nil {
		return nil, err
	}

	metrics.RecordLoginAttempt("password", "success", time.Since(start))
	return resp, nil
}

func (s *Service) recordFailure(ctx context.Context, email, ipAddress string) {
	_ = s.residents.RecordLoginAttempt(ctx, email, ipAddress, false)
	if s.rateLimiter != nil {
		if err := s.rateLimiter.RecordFailure(ctx, email, ipAddress); err != nil {
			s.logger.Warn("failed to record failed attempt", zap.Error(err))
		}
	}
}

// Register creates a resident account and signs it in
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	start := time.Now()
	req.Email = SanitizeEmail(req.Email)

	if err := ValidateRegisterRequest(&req); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrCodeValidationFailed, err.Error(), 400)
	}

	existing, err := s.residents.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if existing != nil {
		metrics.RecordLoginAttempt("register", "failure", time.Since(start))
		return nil, apperrors.ErrEmailTaken
	}

	digest, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	res := &resident.Resident{
		FullName:       req.FullName,
		Email:          req.Email,
		Phone:          req.Phone,
		Role:           resident.RoleResident,
		PasswordDigest: digest,
		ApartmentID:    sql.NullInt64{},
	}
	if err := s.residents.Create(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to register resident: %w", err)
	}

	s.logger.Info("resident registered", zap.Int64("resident_id", res.ID))

	resp, err := s.issue(res)
	if err != nil {
		return nil, err
	}

	metrics.RecordLoginAttempt("register", "success", time.Since(start))
	return resp, nil
}

// Refresh spends a refresh token and returns a fresh pair. Each refresh
// token can be spent exactly once; replays are rejected as revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*token.TokenPair, error) {
	claims, err := s.tokenService.ValidateRefreshToken(refreshToken)
	if err != nil {
		metrics.RecordJWTValidation("refresh", "invalid")
		return nil, apperrors.ErrInvalidToken
	}

	first, err := s.revoked.Claim(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if !first {
		metrics.RecordJWTValidation("refresh", "revoked")
		return nil, apperrors.ErrTokenRevoked
	}

	id, err := token.ResidentIDFromRefresh(claims)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	res, err := s.residents.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load resident: %w", err)
	}
	if res == nil {
		return nil, apperrors.ErrInvalidToken
	}

	metrics.RecordJWTValidation("refresh", "success")

	pair, err := s.tokenService.Generate(subjectOf(res))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return pair, nil
}

// ValidateToken validates an access token including revocation. Token
// problems are *AppError; anything else is an infrastructure failure.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*token.Claims, error) {
	claims, err := s.tokenService.Validate(tokenString)
	if err != nil {
		metrics.RecordJWTValidation("access", "invalid")
		return nil, apperrors.ErrInvalidToken
	}

	blacklisted, err := s.revoked.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check blacklist: %w", err)
	}
	if blacklisted {
		metrics.RecordJWTValidation("access", "revoked")
		return nil, apperrors.ErrTokenRevoked
	}

	metrics.RecordJWTValidation("access", "success")
	return claims, nil
}

// Logout revokes an access token by adding it to the blacklist
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.tokenService.Validate(tokenString)
	if err != nil {
		// An already invalid token is as good as logged out
		return nil
	}

	if err := s.revoked.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	return nil
}

// Profile loads the public profile of the authenticated resident
func (s *Service) Profile(ctx context.Context, claims *token.Claims) (*resident.Profile, error) {
	res, err := s.residents.FindByID(ctx, claims.ResidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load resident: %w", err)
	}
	if res == nil {
		return nil, apperrors.ErrNotFound
	}

	p := res.Profile()
	return &p, nil
}

func (s *Service) issue(res *resident.Resident) (*LoginResponse, error) {
	pair, err := s.tokenService.Generate(subjectOf(res))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResponse{
		TokenPair: *pair,
		User:      res.Profile(),
	}, nil
}

func subjectOf(res *resident.Resident) token.Subject {
	return token.Subject{
		ResidentID: res.ID,
		Email:      res.Email,
		Name:       res.FullName,
		Role:       res.Role,
	}
}
