package auth

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Email validation regex (RFC 5322 simplified)
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// Digits with optional leading + and separators
	phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,19}$`)

	minPasswordLength = 8
	maxFullNameLength = 120
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type validationErrors struct {
	Errors []ValidationError
}

func (e *validationErrors) Error() string {
	messages := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		messages[i] = err.Error()
	}
	return strings.Join(messages, "; ")
}

func (e *validationErrors) add(field, message string) {
	e.Errors = append(e.Errors, ValidationError{Field: field, Message: message})
}

func (e *validationErrors) orNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// ValidateLoginRequest validates a login request
func ValidateLoginRequest(req *LoginRequest) error {
	errs := &validationErrors{}

	if req.Email == "" {
		errs.add("email", "Email is required")
	} else if !IsValidEmail(req.Email) {
		errs.add("email", "Email format is invalid")
	}

	if req.Password == "" {
		errs.add("password", "Password is required")
	}

	return errs.orNil()
}

// ValidateRegisterRequest validates a registration request
func ValidateRegisterRequest(req *RegisterRequest) error {
	errs := &validationErrors{}

	name := strings.TrimSpace(req.FullName)
	if name == "" {
		errs.add("fullName", "Full name is required")
	} else if len(name) > maxFullNameLength {
		errs.add("fullName", fmt.Sprintf("Full name must be at most %d characters", maxFullNameLength))
	}

	if !IsValidEmail(req.Email) {
		errs.add("email", "Email format is invalid")
	}

	if req.Phone != "" && !IsValidPhone(req.Phone) {
		errs.add("phone", "Phone format is invalid")
	}

	if len(req.Password) < minPasswordLength {
		errs.add("password", fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}

	return errs.orNil()
}

// IsValidEmail checks if an email address is valid
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// IsValidPhone checks if a phone number looks dialable
func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(strings.TrimSpace(phone))
}

// SanitizeEmail normalizes an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
