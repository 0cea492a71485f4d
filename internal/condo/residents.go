package condo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/condohub/condofee/internal/auth"
	"github.com/condohub/condofee/internal/resident"
	apperrors "github.com/condohub/condofee/pkg/errors"
	"github.com/condohub/condofee/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResidentRepository is the resident store used by the admin endpoints
type ResidentRepository interface {
	List(ctx context.Context, limit, offset int) ([]resident.Resident, error)
	FindByID(ctx context.Context, id int64) (*resident.Resident, error)
	FindByEmail(ctx context.Context, email string) (*resident.Resident, error)
	Create(ctx context.Context, res *resident.Resident) error
	Update(ctx context.Context, res *resident.Resident) error
	Delete(ctx context.Context, id int64) error
}

// ResidentInput is the admin create/update payload
type ResidentInput struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Role        string `json:"role"`
	Password    string `json:"password"`
	ApartmentID *int64 `json:"apartmentId"`
}

// ResidentHandler serves admin CRUD on /residents
type ResidentHandler struct {
	repo   ResidentRepository
	logger *zap.Logger
}

// NewResidentHandler creates the admin resident handler
func NewResidentHandler(repo ResidentRepository, logger *zap.Logger) *ResidentHandler {
	return &ResidentHandler{repo: repo, logger: logger}
}

// Mount registers the resident CRUD routes on rg
func (h *ResidentHandler) Mount(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

func (h *ResidentHandler) List(c *gin.Context) {
	limit, offset, err := Page(c)
	if err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	rows, err := h.repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}

	profiles := make([]resident.Profile, len(rows))
	for i := range rows {
		profiles[i] = rows[i].Profile()
	}
	response.Success(c, http.StatusOK, profiles)
}

func (h *ResidentHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	res, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if res == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, res.Profile())
}

func (h *ResidentHandler) Create(c *gin.Context) {
	var in ResidentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	in.Email = auth.SanitizeEmail(in.Email)
	if in.Role == "" {
		in.Role = resident.RoleResident
	}
	if err := auth.ValidateRegisterRequest(&auth.RegisterRequest{
		FullName: in.FullName,
		Email:    in.Email,
		Phone:    in.Phone,
		Password: in.Password,
	}); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	if !resident.ValidRole(in.Role) {
		response.ValidationError(c, fmt.Sprintf("unknown role %q", in.Role))
		return
	}

	existing, err := h.repo.FindByEmail(c.Request.Context(), in.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	if existing != nil {
		response.Error(c, apperrors.ErrEmailTaken)
		return
	}

	digest, err := auth.HashPassword(in.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	res := &resident.Resident{
		FullName:       in.FullName,
		Email:          in.Email,
		Phone:          in.Phone,
		Role:           in.Role,
		PasswordDigest: digest,
		ApartmentID:    nullID(in.ApartmentID),
	}
	if err := h.repo.Create(c.Request.Context(), res); err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("resident created by admin", zap.Int64("resident_id", res.ID), zap.String("role", res.Role))
	response.Success(c, http.StatusCreated, res.Profile())
}

func (h *ResidentHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in ResidentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	res, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if res == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}

	if in.FullName != "" {
		res.FullName = in.FullName
	}
	if in.Phone != "" {
		if !auth.IsValidPhone(in.Phone) {
			response.ValidationError(c, "invalid phone number")
			return
		}
		res.Phone = in.Phone
	}
	if in.Role != "" {
		if !resident.ValidRole(in.Role) {
			response.ValidationError(c, fmt.Sprintf("unknown role %q", in.Role))
			return
		}
		res.Role = in.Role
	}
	if in.ApartmentID != nil {
		res.ApartmentID = nullID(in.ApartmentID)
	}

	if err := h.repo.Update(c.Request.Context(), res); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res.Profile())
}

func (h *ResidentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if claims, ok := auth.ClaimsFrom(c); ok && claims.ResidentID == id {
		response.ValidationError(c, "cannot delete your own account")
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id})
}

func (h *ResidentHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, resident.ErrNotFound) {
		response.Error(c, apperrors.ErrNotFound)
		return
	}
	h.logger.Error("resident store failure", zap.String("route", c.FullPath()), zap.Error(err))
	response.Error(c, err)
}

// nullID maps an optional JSON ID to a nullable column; 0 clears it
func nullID(id *int64) sql.NullInt64 {
	if id == nil || *id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
