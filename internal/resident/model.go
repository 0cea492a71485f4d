package resident

import (
	"database/sql"
	"time"
)

// Roles a resident account can hold
const (
	RoleResident = "resident"
	RoleAdmin    = "admin"
)

// Resident represents the residents table
type Resident struct {
	ID             int64         `db:"id" json:"id"`
	FullName       string        `db:"full_name" json:"fullName"`
	Email          string        `db:"email" json:"email"`
	Phone          string        `db:"phone" json:"phone"`
	Role           string        `db:"role" json:"role"`
	PasswordDigest string        `db:"password_digest" json:"-"`
	ApartmentID    sql.NullInt64 `db:"apartment_id" json:"-"`
	LastLoggedOn   sql.NullTime  `db:"last_logged_on" json:"-"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updatedAt"`
}

// Profile is the public view of a resident returned by the API
type Profile struct {
	ID          int64      `json:"id"`
	FullName    string     `json:"fullName"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Role        string     `json:"role"`
	ApartmentID *int64     `json:"apartmentId,omitempty"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
}

// Profile converts the row into its public view
func (r *Resident) Profile() Profile {
	p := Profile{
		ID:       r.ID,
		FullName: r.FullName,
		Email:    r.Email,
		Phone:    r.Phone,
		Role:     r.Role,
	}
	if r.ApartmentID.Valid {
		id := r.ApartmentID.Int64
		p.ApartmentID = &id
	}
	if r.LastLoggedOn.Valid {
		at := r.LastLoggedOn.Time
		p.LastLogin = &at
	}
	return p
}

// IsAdmin reports whether the resident has the admin role
func (r *Resident) IsAdmin() bool {
	return r.Role == RoleAdmin
}

// ValidRole reports whether role is one of the known roles
func ValidRole(role string) bool {
	return role == RoleResident || role == RoleAdmin
}

// LoginAttempt represents the login_attempts table for auditing
type LoginAttempt struct {
	ID          int64     `db:"id" json:"id"`
	Email       string    `db:"email" json:"email"`
	IPAddress   string    `db:"ip_address" json:"ipAddress"`
	Success     bool      `db:"success" json:"success"`
	AttemptedAt time.Time `db:"attempted_at" json:"attemptedAt"`
}
