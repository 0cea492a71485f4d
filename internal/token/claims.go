package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the access token claims structure
type Claims struct {
	ResidentID int64  `json:"rid"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"` // "resident" or "admin"
	jwt.RegisteredClaims
}

// TokenPair is the access/refresh pair handed to clients
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	TokenType    string    `json:"tokenType"`
}

// Subject identifies who a token pair is issued for
type Subject struct {
	ResidentID int64
	Email      string
	Name       string
	Role       string
}

// TokenType constants
const (
	TokenTypeBearer = "Bearer"
)
