package resident

import (
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestResident_Profile(t *testing.T) {
	logged := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	res := &Resident{
		ID:             7,
		FullName:       "Ana Pereira",
		Email:          "ana@example.com",
		Phone:          "+351 900 000 000",
		Role:           RoleResident,
		PasswordDigest: "digest",
		ApartmentID:    sql.NullInt64{Int64: 12, Valid: true},
		LastLoggedOn:   sql.NullTime{Time: logged, Valid: true},
	}

	p := res.Profile()

	if p.ID != 7 || p.FullName != "Ana Pereira" || p.Role != RoleResident {
		t.Errorf("Profile() = %+v, unexpected identity fields", p)
	}
	if p.ApartmentID == nil || *p.ApartmentID != 12 {
		t.Errorf("ApartmentID = %v, want 12", p.ApartmentID)
	}
	if p.LastLogin == nil || !p.LastLogin.Equal(logged) {
		t.Errorf("LastLogin = %v, want %v", p.LastLogin, logged)
	}
}

func TestResident_ProfileWithoutApartment(t *testing.T) {
	p := (&Resident{ID: 1, Role: RoleAdmin}).Profile()

	if p.ApartmentID != nil {
		t.Errorf("ApartmentID = %v, want nil", *p.ApartmentID)
	}

	body, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if strings.Contains(string(body), "apartmentId") {
		t.Errorf("profile JSON should omit apartmentId: %s", body)
	}
}

func TestResident_PasswordNeverSerialized(t *testing.T) {
	body, err := json.Marshal(&Resident{PasswordDigest: "secret-digest"})
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if strings.Contains(string(body), "secret-digest") {
		t.Errorf("password digest leaked into JSON: %s", body)
	}
}

func TestValidRole(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{RoleResident, true},
		{RoleAdmin, true},
		{"owner", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidRole(tt.role); got != tt.want {
			t.Errorf("ValidRole(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}
