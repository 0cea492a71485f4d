package condo

import (
	"context"
	"errors"
	"net/http"

	"github.com/condohub/condofee/internal/auth"
	"github.com/condohub/condofee/internal/resident"
	apperrors "github.com/condohub/condofee/pkg/errors"
	"github.com/condohub/condofee/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Lister lists rows matching a condition, as Store.Where does
type Lister[T any] interface {
	Where(ctx context.Context, cond string, limit, offset int, args ...interface{}) ([]T, error)
}

// SelfService serves the endpoints a resident uses on their own account
type SelfService struct {
	invoices      Lister[Invoice]
	notifications Lister[Notification]
	payer         Payer
	logger        *zap.Logger
}

// NewSelfService creates the resident self-service handler
func NewSelfService(invoices Lister[Invoice], notifications Lister[Notification], payer Payer, logger *zap.Logger) *SelfService {
	return &SelfService{
		invoices:      invoices,
		notifications: notifications,
		payer:         payer,
		logger:        logger,
	}
}

// MyInvoices lists the caller's invoices
// GET /residents/me/invoices
func (s *SelfService) MyInvoices(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	limit, offset, err := Page(c)
	if err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	rows, err := s.invoices.Where(c.Request.Context(), "resident_id = $1", limit, offset, claims.ResidentID)
	if err != nil {
		s.logger.Error("failed to list own invoices", zap.Int64("resident_id", claims.ResidentID), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

// MyNotifications lists notifications addressed to the caller or broadcast
// GET /residents/me/notifications
func (s *SelfService) MyNotifications(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	limit, offset, err := Page(c)
	if err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	rows, err := s.notifications.Where(c.Request.Context(),
		"resident_id = $1 OR resident_id IS NULL", limit, offset, claims.ResidentID)
	if err != nil {
		s.logger.Error("failed to list own notifications", zap.Int64("resident_id", claims.ResidentID), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

// Pay records a payment. Residents may only pay their own invoices.
// POST /payments
func (s *SelfService) Pay(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	p, ok := bindEntity[Payment](c)
	if !ok {
		return
	}

	err := s.payer.Pay(c.Request.Context(), claims.ResidentID, claims.Role == resident.RoleAdmin, p)
	switch {
	case err == nil:
		s.logger.Info("invoice paid", zap.Int64("invoice_id", p.InvoiceID), zap.Int64("payer_id", claims.ResidentID))
		response.Success(c, http.StatusCreated, p)
	case errors.Is(err, ErrNotFound):
		response.Error(c, apperrors.ErrNotFound)
	case errors.Is(err, ErrNotInvoiceOwner):
		response.Error(c, apperrors.ErrForbidden)
	case errors.Is(err, ErrAlreadyPaid):
		response.Error(c, apperrors.NewAppError(apperrors.ErrCodeConflict, ErrAlreadyPaid.Error(), http.StatusConflict))
	default:
		s.logger.Error("payment failed", zap.Error(err))
		response.Error(c, err)
	}
}
