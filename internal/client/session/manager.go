package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/condohub/condofee/internal/client"
	"github.com/condohub/condofee/internal/client/tokenstore"
	"go.uber.org/zap"
)

// Endpoints used by the session flows
const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	LogoutPath   = "/auth/logout"
	ProfilePath  = "/residents/me/profile"
)

// RegisterInput is the self-service sign up form
type RegisterInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

type authResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

// Manager runs the flows that move the session between logged in and out
type Manager struct {
	client *client.Client
	state  *State
	logger *zap.Logger
}

func NewManager(c *client.Client, state *State, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{client: c, state: state, logger: logger}
}

// State returns the session state the manager updates
func (m *Manager) State() *State { return m.state }

// Login signs in with email and password
func (m *Manager) Login(ctx context.Context, email, password string) (*User, error) {
	res, err := client.Call[authResult](ctx, m.client, http.MethodPost, LoginPath, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, res)
}

// Register creates a resident account and signs it in
func (m *Manager) Register(ctx context.Context, in RegisterInput) (*User, error) {
	res, err := client.Call[authResult](ctx, m.client, http.MethodPost, RegisterPath, in)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, res)
}

func (m *Manager) establish(ctx context.Context, res authResult) (*User, error) {
	pair := tokenstore.Pair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}
	if !pair.Complete() {
		return nil, fmt.Errorf("auth response carries no token pair")
	}
	if err := m.client.Tokens().Set(ctx, pair); err != nil {
		return nil, fmt.Errorf("save tokens failed: %w", err)
	}

	m.state.SetUser(&res.User)
	m.logger.Info("logged in", zap.Int64("resident_id", res.User.ID), zap.String("role", res.User.Role))
	return m.state.User(), nil
}

// Bootstrap restores the session at start up. The profile is fetched only
// when an access token is stored; a failed fetch leaves the state logged out
// and is not retried.
func (m *Manager) Bootstrap(ctx context.Context) error {
	if m.client.Tokens().Get(ctx).AccessToken == "" {
		m.state.Clear()
		return nil
	}

	if _, err := m.FetchProfile(ctx); err != nil {
		m.state.Clear()
		m.logger.Info("stored session is not usable", zap.Error(err))
		return err
	}
	return nil
}

// FetchProfile loads the current resident and stores it in the state
func (m *Manager) FetchProfile(ctx context.Context) (*User, error) {
	u, err := client.Call[User](ctx, m.client, http.MethodGet, ProfilePath, nil)
	if err != nil {
		return nil, err
	}
	m.state.SetUser(&u)
	return m.state.User(), nil
}

// Logout clears the local state first, then tells the backend and finally
// drops the stored tokens whatever the backend answered. The returned error
// only reports the backend notification.
func (m *Manager) Logout(ctx context.Context) error {
	m.state.Clear()

	_, err := client.Call[struct{}](ctx, m.client, http.MethodGet, LogoutPath, nil)
	if err != nil {
		m.logger.Warn("logout notification failed", zap.Error(err))
	}

	if rmErr := m.client.Tokens().Remove(ctx); rmErr != nil {
		m.logger.Warn("failed to remove tokens", zap.Error(rmErr))
	}
	return err
}
