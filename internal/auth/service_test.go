package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/condohub/condofee/internal/ratelimit"
	"github.com/condohub/condofee/internal/resident"
	"github.com/condohub/condofee/internal/token"
	apperrors "github.com/condohub/condofee/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type fakeResidents struct {
	mu       sync.Mutex
	byID     map[int64]*resident.Resident
	nextID   int64
	attempts []bool
}

func newFakeResidents() *fakeResidents {
	return &fakeResidents{byID: make(map[int64]*resident.Resident)}
}

func (f *fakeResidents) FindByEmail(ctx context.Context, email string) (*resident.Resident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.byID {
		if r.Email == email {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeResidents) FindByID(ctx context.Context, id int64) (*resident.Resident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeResidents) Create(ctx context.Context, res *resident.Resident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	res.ID = f.nextID
	res.CreatedAt = time.Now()
	res.UpdatedAt = res.CreatedAt
	cp := *res
	f.byID[res.ID] = &cp
	return nil
}

func (f *fakeResidents) UpdateLastLoggedOn(ctx context.Context, id int64) error {
	return nil
}

func (f *fakeResidents) RecordLoginAttempt(ctx context.Context, email, ipAddress string, success bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, success)
	return nil
}

type testEnv struct {
	svc       *Service
	residents *fakeResidents
	tokens    *token.Service
	mr        *miniredis.Miniredis
}

func newTestEnv(t *testing.T, maxAttempts int) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	residents := newFakeResidents()
	tokens := token.NewService(
		"test-secret-key-minimum-32-chars",
		"test-refresh-secret-key-32-chars",
		"condofee-test",
		15*time.Minute,
		168*time.Hour,
	)
	limiter := ratelimit.NewLimiter(client, 10*time.Minute, maxAttempts, 15*time.Minute)
	svc := NewService(residents, tokens, token.NewBlacklist(client), limiter, zap.NewNop())

	return &testEnv{svc: svc, residents: residents, tokens: tokens, mr: mr}
}

func (e *testEnv) register(t *testing.T, email, password string) *LoginResponse {
	t.Helper()

	resp, err := e.svc.Register(context.Background(), RegisterRequest{
		FullName: "Test Resident",
		Email:    email,
		Phone:    "+351 912 345 678",
		Password: password,
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	return resp
}

func TestService_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()

	reg := env.register(t, "Ana@Example.com ", "condo-password")
	if reg.AccessToken == "" || reg.RefreshToken == "" {
		t.Fatal("Register() should issue a token pair")
	}
	if reg.User.Email != "ana@example.com" {
		t.Errorf("User.Email = %q, want sanitized email", reg.User.Email)
	}
	if reg.User.Role != resident.RoleResident {
		t.Errorf("User.Role = %q, want %q", reg.User.Role, resident.RoleResident)
	}

	login, err := env.svc.Login(ctx, "ana@example.com", "condo-password", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	claims, err := env.svc.ValidateToken(ctx, login.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken() failed: %v", err)
	}
	if claims.ResidentID != reg.User.ID {
		t.Errorf("ResidentID = %d, want %d", claims.ResidentID, reg.User.ID)
	}

	profile, err := env.svc.Profile(ctx, claims)
	if err != nil {
		t.Fatalf("Profile() failed: %v", err)
	}
	if profile.FullName != "Test Resident" {
		t.Errorf("FullName = %q, want %q", profile.FullName, "Test Resident")
	}
}

func TestService_RegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, 5)
	env.register(t, "ana@example.com", "condo-password")

	_, err := env.svc.Register(context.Background(), RegisterRequest{
		FullName: "Someone Else",
		Email:    "ANA@example.com",
		Password: "another-password",
	})
	if !errors.Is(err, apperrors.ErrEmailTaken) {
		t.Errorf("Register() error = %v, want ErrEmailTaken", err)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	env := newTestEnv(t, 5)

	_, err := env.svc.Register(context.Background(), RegisterRequest{
		FullName: "Short Password",
		Email:    "short@example.com",
		Password: "abc",
	})

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrCodeValidationFailed {
		t.Errorf("Register() error = %v, want validation failure", err)
	}
}

func TestService_LoginWrongPasswordLocksOut(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()
	env.register(t, "ana@example.com", "condo-password")

	for i := 0; i < 2; i++ {
		_, err := env.svc.Login(ctx, "ana@example.com", "wrong", "10.0.0.1")
		if !errors.Is(err, apperrors.ErrInvalidCredentials) {
			t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
		}
	}

	_, err := env.svc.Login(ctx, "ana@example.com", "condo-password", "10.0.0.1")
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrCodeRateLimitExceeded {
		t.Errorf("Login() error = %v, want rate limit", err)
	}
}

func TestService_LoginUnknownEmail(t *testing.T) {
	env := newTestEnv(t, 5)

	_, err := env.svc.Login(context.Background(), "ghost@example.com", "whatever", "10.0.0.1")
	if !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
	if len(env.residents.attempts) != 1 || env.residents.attempts[0] {
		t.Errorf("attempts = %v, want one failed attempt", env.residents.attempts)
	}
}

func TestService_RefreshRotatesOnce(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	reg := env.register(t, "ana@example.com", "condo-password")

	pair, err := env.svc.Refresh(ctx, reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	if pair.RefreshToken == reg.RefreshToken {
		t.Error("Refresh() should rotate the refresh token")
	}
	if _, err := env.svc.ValidateToken(ctx, pair.AccessToken); err != nil {
		t.Errorf("new access token invalid: %v", err)
	}

	_, err = env.svc.Refresh(ctx, reg.RefreshToken)
	if !errors.Is(err, apperrors.ErrTokenRevoked) {
		t.Errorf("replayed Refresh() error = %v, want ErrTokenRevoked", err)
	}
}

func TestService_RefreshRejectsAccessToken(t *testing.T) {
	env := newTestEnv(t, 5)
	reg := env.register(t, "ana@example.com", "condo-password")

	_, err := env.svc.Refresh(context.Background(), reg.AccessToken)
	if !errors.Is(err, apperrors.ErrInvalidToken) {
		t.Errorf("Refresh() error = %v, want ErrInvalidToken", err)
	}
}

func TestService_LogoutRevokesAccessToken(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	reg := env.register(t, "ana@example.com", "condo-password")

	if err := env.svc.Logout(ctx, reg.AccessToken); err != nil {
		t.Fatalf("Logout() failed: %v", err)
	}

	if _, err := env.svc.ValidateToken(ctx, reg.AccessToken); !errors.Is(err, apperrors.ErrTokenRevoked) {
		t.Errorf("ValidateToken() after logout error = %v, want ErrTokenRevoked", err)
	}
	if _, err := env.svc.ValidateToken(ctx, "garbage"); !errors.Is(err, apperrors.ErrInvalidToken) {
		t.Errorf("ValidateToken(garbage) error = %v, want ErrInvalidToken", err)
	}

	// Logging out with garbage is not an error
	if err := env.svc.Logout(ctx, "undefined"); err != nil {
		t.Errorf("Logout() with invalid token error = %v, want nil", err)
	}
}
