package condo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Payment errors surfaced to the payer
var (
	ErrNotInvoiceOwner = errors.New("invoice belongs to another resident")
	ErrAlreadyPaid     = errors.New("invoice is already paid")
)

// Payer records payments against invoices
type Payer interface {
	Pay(ctx context.Context, payerID int64, admin bool, p *Payment) error
}

// PaymentLedger settles invoices in Postgres
type PaymentLedger struct {
	db     *sqlx.DB
	insert string
}

// NewPaymentLedger creates a ledger over db
func NewPaymentLedger(db *sqlx.DB) *PaymentLedger {
	_, insert, _ := buildQueries(PaymentsTable)
	return &PaymentLedger{db: db, insert: insert}
}

// Pay inserts the payment and marks its invoice paid in one transaction.
// Non-admin payers may only settle their own invoices.
func (l *PaymentLedger) Pay(ctx context.Context, payerID int64, admin bool, p *Payment) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin payment: %w", err)
	}
	defer tx.Rollback()

	var inv Invoice
	err = tx.GetContext(ctx, &inv, `SELECT * FROM invoices WHERE id = $1 FOR UPDATE`, p.InvoiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load invoice: %w", err)
	}
	if err := checkPayable(&inv, payerID, admin); err != nil {
		return err
	}

	p.ResidentID = inv.ResidentID
	rows, err := sqlx.NamedQueryContext(ctx, tx, l.insert, p)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	err = scanReturning(rows, p)
	rows.Close()
	if errors.Is(err, ErrNotFound) {
		return errors.New("failed to insert payment: no row returned")
	}
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE invoices SET status = $1, updated_at = NOW() WHERE id = $2`, InvoicePaid, inv.ID); err != nil {
		return fmt.Errorf("failed to mark invoice paid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit payment: %w", err)
	}
	return nil
}

func checkPayable(inv *Invoice, payerID int64, admin bool) error {
	if !admin && inv.ResidentID != payerID {
		return ErrNotInvoiceOwner
	}
	if inv.Status == InvoicePaid {
		return ErrAlreadyPaid
	}
	return nil
}
