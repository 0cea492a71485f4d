package condo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when no row matches the requested ID
var ErrNotFound = errors.New("record not found")

// Entity is the pointer side of a row type: it can validate itself and
// take its primary key from the URL
type Entity[T any] interface {
	*T
	SetID(id int64)
	Validate() error
}

// Table describes a condo table: its name and the columns a client may write
type Table struct {
	Name    string
	Columns []string
}

// Store is a sqlx-backed CRUD repository for one table
type Store[T any, PT Entity[T]] struct {
	db    *sqlx.DB
	table Table

	selectAll string
	insert    string
	update    string
}

// NewStore builds the statements for table once
func NewStore[T any, PT Entity[T]](db *sqlx.DB, table Table) *Store[T, PT] {
	s := &Store[T, PT]{db: db, table: table}
	s.selectAll, s.insert, s.update = buildQueries(table)
	return s
}

func buildQueries(t Table) (selectAll, insert, update string) {
	named := make([]string, len(t.Columns))
	sets := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		named[i] = ":" + col
		sets[i] = col + " = :" + col
	}
	sets = append(sets, "updated_at = NOW()")

	selectAll = fmt.Sprintf(`SELECT * FROM %s`, t.Name)
	insert = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
		t.Name, strings.Join(t.Columns, ", "), strings.Join(named, ", "))
	update = fmt.Sprintf(`UPDATE %s SET %s WHERE id = :id RETURNING *`,
		t.Name, strings.Join(sets, ", "))
	return selectAll, insert, update
}

// List returns rows ordered by ID
func (s *Store[T, PT]) List(ctx context.Context, limit, offset int) ([]T, error) {
	return s.Where(ctx, "", limit, offset)
}

// Where lists rows matching a SQL condition using $1.. placeholders
func (s *Store[T, PT]) Where(ctx context.Context, cond string, limit, offset int, args ...interface{}) ([]T, error) {
	query := s.selectAll
	if cond != "" {
		query += " WHERE " + cond
	}
	n := len(args)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", n+1, n+2)

	rows := make([]T, 0)
	if err := s.db.SelectContext(ctx, &rows, query, append(args, limit, offset)...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.table.Name, err)
	}
	return rows, nil
}

// Get returns the row with id or ErrNotFound
func (s *Store[T, PT]) Get(ctx context.Context, id int64) (*T, error) {
	var row T
	err := s.db.GetContext(ctx, &row, s.selectAll+" WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %d: %w", s.table.Name, id, err)
	}
	return &row, nil
}

// Create inserts row and overwrites it with the stored version
func (s *Store[T, PT]) Create(ctx context.Context, row *T) error {
	return s.writeReturning(ctx, s.insert, row, "create")
}

// Update replaces the writable columns of the row with id
func (s *Store[T, PT]) Update(ctx context.Context, id int64, row *T) error {
	PT(row).SetID(id)
	return s.writeReturning(ctx, s.update, row, "update")
}

// Delete removes the row with id
func (s *Store[T, PT]) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table.Name), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", s.table.Name, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store[T, PT]) writeReturning(ctx context.Context, query string, row *T, op string) error {
	rows, err := s.db.NamedQueryContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", op, s.table.Name, err)
	}
	defer rows.Close()

	if err := scanReturning(rows, row); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to %s %s: %w", op, s.table.Name, err)
	}
	return nil
}

// rowScanner is the part of *sqlx.Rows a RETURNING write reads
type rowScanner interface {
	Next() bool
	Err() error
	StructScan(dest interface{}) error
}

// scanReturning scans the single row of a RETURNING statement into dest.
// No row is ErrNotFound unless iteration itself failed.
func scanReturning(rows rowScanner, dest interface{}) error {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return ErrNotFound
	}
	if err := rows.StructScan(dest); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return rows.Err()
}

// Tables of the condo schema with their client-writable columns
var (
	BuildingsTable     = Table{Name: "buildings", Columns: []string{"name", "address", "floors"}}
	ApartmentsTable    = Table{Name: "apartments", Columns: []string{"building_id", "number", "floor", "area_m2", "status"}}
	ContractsTable     = Table{Name: "contracts", Columns: []string{"resident_id", "apartment_id", "start_date", "end_date", "monthly_fee", "status"}}
	InvoicesTable      = Table{Name: "invoices", Columns: []string{"contract_id", "resident_id", "period", "amount", "due_date", "status"}}
	PaymentsTable      = Table{Name: "payments", Columns: []string{"invoice_id", "resident_id", "amount", "method", "paid_at"}}
	ServicesTable      = Table{Name: "services", Columns: []string{"name", "unit", "unit_price"}}
	SubscriptionsTable = Table{Name: "subscriptions", Columns: []string{"apartment_id", "service_id", "started_at", "ended_at"}}
	NotificationsTable = Table{Name: "notifications", Columns: []string{"resident_id", "title", "body", "read"}}
)
