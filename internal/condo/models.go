package condo

import (
	"fmt"
	"time"
)

// Base carries the columns every condo table shares
type Base struct {
	ID        int64     `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// SetID sets the primary key, used before updates
func (b *Base) SetID(id int64) { b.ID = id }

// Invoice and apartment states
const (
	InvoiceUnpaid = "unpaid"
	InvoicePaid   = "paid"

	ApartmentVacant   = "vacant"
	ApartmentOccupied = "occupied"
)

type Building struct {
	Base
	Name    string `db:"name" json:"name"`
	Address string `db:"address" json:"address"`
	Floors  int    `db:"floors" json:"floors"`
}

func (b *Building) Validate() error {
	if b.Name == "" || b.Address == "" {
		return fmt.Errorf("name and address are required")
	}
	if b.Floors < 1 {
		return fmt.Errorf("floors must be at least 1")
	}
	return nil
}

type Apartment struct {
	Base
	BuildingID int64   `db:"building_id" json:"buildingId"`
	Number     string  `db:"number" json:"number"`
	Floor      int     `db:"floor" json:"floor"`
	AreaM2     float64 `db:"area_m2" json:"areaM2"`
	Status     string  `db:"status" json:"status"`
}

func (a *Apartment) Validate() error {
	if a.BuildingID == 0 || a.Number == "" {
		return fmt.Errorf("buildingId and number are required")
	}
	if a.AreaM2 <= 0 {
		return fmt.Errorf("areaM2 must be positive")
	}
	switch a.Status {
	case "":
		a.Status = ApartmentVacant
	case ApartmentVacant, ApartmentOccupied:
	default:
		return fmt.Errorf("unknown apartment status %q", a.Status)
	}
	return nil
}

type Contract struct {
	Base
	ResidentID  int64      `db:"resident_id" json:"residentId"`
	ApartmentID int64      `db:"apartment_id" json:"apartmentId"`
	StartDate   time.Time  `db:"start_date" json:"startDate"`
	EndDate     *time.Time `db:"end_date" json:"endDate,omitempty"`
	MonthlyFee  float64    `db:"monthly_fee" json:"monthlyFee"`
	Status      string     `db:"status" json:"status"`
}

func (c *Contract) Validate() error {
	if c.ResidentID == 0 || c.ApartmentID == 0 {
		return fmt.Errorf("residentId and apartmentId are required")
	}
	if c.StartDate.IsZero() {
		return fmt.Errorf("startDate is required")
	}
	if c.MonthlyFee < 0 {
		return fmt.Errorf("monthlyFee must not be negative")
	}
	if c.Status == "" {
		c.Status = "active"
	}
	return nil
}

type Invoice struct {
	Base
	ContractID int64     `db:"contract_id" json:"contractId"`
	ResidentID int64     `db:"resident_id" json:"residentId"`
	Period     string    `db:"period" json:"period"`
	Amount     float64   `db:"amount" json:"amount"`
	DueDate    time.Time `db:"due_date" json:"dueDate"`
	Status     string    `db:"status" json:"status"`
}

func (i *Invoice) Validate() error {
	if i.ContractID == 0 || i.ResidentID == 0 {
		return fmt.Errorf("contractId and residentId are required")
	}
	if _, err := time.Parse("2006-01", i.Period); err != nil {
		return fmt.Errorf("period must look like 2024-05")
	}
	if i.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	switch i.Status {
	case "":
		i.Status = InvoiceUnpaid
	case InvoiceUnpaid, InvoicePaid:
	default:
		return fmt.Errorf("unknown invoice status %q", i.Status)
	}
	return nil
}

type Payment struct {
	Base
	InvoiceID  int64     `db:"invoice_id" json:"invoiceId"`
	ResidentID int64     `db:"resident_id" json:"residentId"`
	Amount     float64   `db:"amount" json:"amount"`
	Method     string    `db:"method" json:"method"`
	PaidAt     time.Time `db:"paid_at" json:"paidAt"`
}

func (p *Payment) Validate() error {
	if p.InvoiceID == 0 {
		return fmt.Errorf("invoiceId is required")
	}
	if p.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if p.Method == "" {
		return fmt.Errorf("method is required")
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now()
	}
	return nil
}

// Service is a billable building service such as water or parking
type Service struct {
	Base
	Name      string  `db:"name" json:"name"`
	Unit      string  `db:"unit" json:"unit"`
	UnitPrice float64 `db:"unit_price" json:"unitPrice"`
}

func (s *Service) Validate() error {
	if s.Name == "" || s.Unit == "" {
		return fmt.Errorf("name and unit are required")
	}
	if s.UnitPrice < 0 {
		return fmt.Errorf("unitPrice must not be negative")
	}
	return nil
}

type Subscription struct {
	Base
	ApartmentID int64      `db:"apartment_id" json:"apartmentId"`
	ServiceID   int64      `db:"service_id" json:"serviceId"`
	StartedAt   time.Time  `db:"started_at" json:"startedAt"`
	EndedAt     *time.Time `db:"ended_at" json:"endedAt,omitempty"`
}

func (s *Subscription) Validate() error {
	if s.ApartmentID == 0 || s.ServiceID == 0 {
		return fmt.Errorf("apartmentId and serviceId are required")
	}
	if s.StartedAt.IsZero() {
		return fmt.Errorf("startedAt is required")
	}
	return nil
}

// Notification with a null resident is broadcast to everyone
type Notification struct {
	Base
	ResidentID *int64 `db:"resident_id" json:"residentId,omitempty"`
	Title      string `db:"title" json:"title"`
	Body       string `db:"body" json:"body"`
	Read       bool   `db:"read" json:"read"`
}

func (n *Notification) Validate() error {
	if n.Title == "" || n.Body == "" {
		return fmt.Errorf("title and body are required")
	}
	return nil
}
