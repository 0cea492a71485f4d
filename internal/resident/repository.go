package resident

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const residentColumns = `id, full_name, email, phone, role, password_digest, apartment_id, last_logged_on, created_at, updated_at`

// Repository handles resident data operations
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new resident repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// FindByEmail finds a resident by email address
func (r *Repository) FindByEmail(ctx context.Context, email string) (*Resident, error) {
	var res Resident
	query := `SELECT ` + residentColumns + ` FROM residents WHERE email = $1`

	err := r.db.GetContext(ctx, &res, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find resident by email: %w", err)
	}

	return &res, nil
}

// FindByID finds a resident by ID
func (r *Repository) FindByID(ctx context.Context, id int64) (*Resident, error) {
	var res Resident
	query := `SELECT ` + residentColumns + ` FROM residents WHERE id = $1`

	err := r.db.GetContext(ctx, &res, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find resident by ID: %w", err)
	}

	return &res, nil
}

// List returns residents ordered by ID
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Resident, error) {
	residents := make([]Resident, 0)
	query := `SELECT ` + residentColumns + ` FROM residents ORDER BY id LIMIT $1 OFFSET $2`

	if err := r.db.SelectContext(ctx, &residents, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list residents: %w", err)
	}

	return residents, nil
}

// Create inserts a resident and fills in the generated fields
func (r *Repository) Create(ctx context.Context, res *Resident) error {
	query := `INSERT INTO residents (full_name, email, phone, role, password_digest, apartment_id)
			  VALUES (:full_name, :email, :phone, :role, :password_digest, :apartment_id)
			  RETURNING id, created_at, updated_at`

	rows, err := r.db.NamedQueryContext(ctx, query, res)
	if err != nil {
		return fmt.Errorf("failed to create resident: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return fmt.Errorf("failed to create resident: no row returned")
	}
	if err := rows.Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return fmt.Errorf("failed to scan created resident: %w", err)
	}

	return nil
}

// Update writes the editable resident fields
func (r *Repository) Update(ctx context.Context, res *Resident) error {
	res.UpdatedAt = time.Now()
	query := `UPDATE residents
			  SET full_name = :full_name, phone = :phone, role = :role, apartment_id = :apartment_id, updated_at = :updated_at
			  WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, res)
	if err != nil {
		return fmt.Errorf("failed to update resident: %w", err)
	}

	return expectRow(result)
}

// UpdatePassword replaces a resident's password digest
func (r *Repository) UpdatePassword(ctx context.Context, id int64, digest string) error {
	query := `UPDATE residents SET password_digest = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, digest, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return expectRow(result)
}

// Delete removes a resident
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM residents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete resident: %w", err)
	}
	return expectRow(result)
}

// UpdateLastLoggedOn updates the last_logged_on timestamp
func (r *Repository) UpdateLastLoggedOn(ctx context.Context, id int64) error {
	query := `UPDATE residents SET last_logged_on = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update last logged on: %w", err)
	}
	return nil
}

// RecordLoginAttempt records a login attempt for auditing
func (r *Repository) RecordLoginAttempt(ctx context.Context, email, ipAddress string, success bool) error {
	query := `INSERT INTO login_attempts (email, ip_address, success, attempted_at)
			  VALUES ($1, $2, $3, $4)`

	if _, err := r.db.ExecContext(ctx, query, email, ipAddress, success, time.Now()); err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}

// ErrNotFound is returned by writes that matched no row
var ErrNotFound = errors.New("resident not found")

func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
