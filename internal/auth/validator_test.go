package auth

import (
	"strings"
	"testing"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  bool
	}{
		{"valid email", "test@example.com", true},
		{"valid with subdomain", "user@mail.example.com", true},
		{"valid with plus", "user+tag@example.com", true},
		{"valid with dots", "first.last@example.co.uk", true},
		{"invalid no @", "userexample.com", false},
		{"invalid no domain", "user@", false},
		{"invalid no user", "@example.com", false},
		{"invalid spaces", "user @example.com", false},
		{"invalid double @", "user@@example.com", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidEmail(tt.email); got != tt.want {
				t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestSanitizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"lowercase", "USER@EXAMPLE.COM", "user@example.com"},
		{"trim spaces", "  user@example.com  ", "user@example.com"},
		{"both", "  USER@EXAMPLE.COM  ", "user@example.com"},
		{"already clean", "user@example.com", "user@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeEmail(tt.email); got != tt.want {
				t.Errorf("SanitizeEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  bool
	}{
		{"international", "+351 912 345 678", true},
		{"local digits", "0912345678", true},
		{"dashes", "091-234-5678", true},
		{"letters", "call-me-maybe", false},
		{"too short", "123", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidPhone(tt.phone); got != tt.want {
				t.Errorf("IsValidPhone(%q) = %v, want %v", tt.phone, got, tt.want)
			}
		})
	}
}

func TestValidateLoginRequest(t *testing.T) {
	tests := []struct {
		name        string
		req         *LoginRequest
		shouldError bool
		errorField  string
	}{
		{
			name:        "valid request",
			req:         &LoginRequest{Email: "user@example.com", Password: "password123"},
			shouldError: false,
		},
		{
			name:        "empty email",
			req:         &LoginRequest{Email: "", Password: "password123"},
			shouldError: true,
			errorField:  "email",
		},
		{
			name:        "invalid email",
			req:         &LoginRequest{Email: "notanemail", Password: "password123"},
			shouldError: true,
			errorField:  "email",
		},
		{
			name:        "empty password",
			req:         &LoginRequest{Email: "user@example.com", Password: ""},
			shouldError: true,
			errorField:  "password",
		},
		{
			name:        "short password is checked at registration only",
			req:         &LoginRequest{Email: "user@example.com", Password: "ab"},
			shouldError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLoginRequest(tt.req)
			if (err != nil) != tt.shouldError {
				t.Errorf("ValidateLoginRequest() error = %v, shouldError = %v", err, tt.shouldError)
				return
			}

			if err != nil && tt.errorField != "" {
				errStr := err.Error()
				if !strings.Contains(errStr, tt.errorField) {
					t.Errorf("Expected error to contain field %q, got: %v", tt.errorField, err)
				}
			}
		})
	}
}

func TestValidateRegisterRequest(t *testing.T) {
	valid := RegisterRequest{
		FullName: "Ana Pereira",
		Email:    "ana@example.com",
		Phone:    "+351 912 345 678",
		Password: "longenough",
	}

	tests := []struct {
		name       string
		mutate     func(r *RegisterRequest)
		errorField string
	}{
		{"valid request", func(r *RegisterRequest) {}, ""},
		{"phone optional", func(r *RegisterRequest) { r.Phone = "" }, ""},
		{"missing name", func(r *RegisterRequest) { r.FullName = "   " }, "fullName"},
		{"long name", func(r *RegisterRequest) { r.FullName = strings.Repeat("a", 121) }, "fullName"},
		{"bad email", func(r *RegisterRequest) { r.Email = "nope" }, "email"},
		{"bad phone", func(r *RegisterRequest) { r.Phone = "abc" }, "phone"},
		{"short password", func(r *RegisterRequest) { r.Password = "short" }, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			err := ValidateRegisterRequest(&req)
			if tt.errorField == "" {
				if err != nil {
					t.Errorf("ValidateRegisterRequest() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Fatalf("ValidateRegisterRequest() should fail on %s", tt.errorField)
			}
			if !strings.Contains(err.Error(), tt.errorField) {
				t.Errorf("Expected error to contain field %q, got: %v", tt.errorField, err)
			}
		})
	}
}
