package condo

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	apperrors "github.com/condohub/condofee/pkg/errors"
	"github.com/condohub/condofee/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Paging defaults for list endpoints
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Repository is the CRUD surface a Handler serves
type Repository[T any] interface {
	List(ctx context.Context, limit, offset int) ([]T, error)
	Get(ctx context.Context, id int64) (*T, error)
	Create(ctx context.Context, row *T) error
	Update(ctx context.Context, id int64, row *T) error
	Delete(ctx context.Context, id int64) error
}

// Handler exposes a Repository as REST endpoints
type Handler[T any, PT Entity[T]] struct {
	repo   Repository[T]
	logger *zap.Logger
}

// NewHandler creates a CRUD handler over repo
func NewHandler[T any, PT Entity[T]](repo Repository[T], logger *zap.Logger) *Handler[T, PT] {
	return &Handler[T, PT]{repo: repo, logger: logger}
}

// Mount registers GET /, GET /:id, POST /, PUT /:id and DELETE /:id on rg
func (h *Handler[T, PT]) Mount(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

func (h *Handler[T, PT]) List(c *gin.Context) {
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
	response.Success(c, http.StatusOK, rows)
}

func (h *Handler[T, PT]) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	row, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, row)
}

func (h *Handler[T, PT]) Create(c *gin.Context) {
	row, ok := bindEntity[T, PT](c)
	if !ok {
		return
	}

	if err := h.repo.Create(c.Request.Context(), row); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, row)
}

func (h *Handler[T, PT]) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	row, ok := bindEntity[T, PT](c)
	if !ok {
		return
	}

	if err := h.repo.Update(c.Request.Context(), id, row); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, row)
}

func (h *Handler[T, PT]) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id})
}

// Page reads limit/offset query parameters, clamping limit to MaxLimit
func Page(c *gin.Context) (limit, offset int, err error) {
	limit, offset = DefaultLimit, 0

	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		if limit > MaxLimit {
			limit = MaxLimit
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		response.ValidationError(c, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func bindEntity[T any, PT Entity[T]](c *gin.Context) (*T, bool) {
	row := new(T)
	if err := c.ShouldBindJSON(row); err != nil {
		response.ValidationError(c, err.Error())
		return nil, false
	}
	if err := PT(row).Validate(); err != nil {
		response.ValidationError(c, err.Error())
		return nil, false
	}
	return row, true
}

func (h *Handler[T, PT]) fail(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		response.Error(c, apperrors.ErrNotFound)
		return
	}
	h.logger.Error("condo store failure", zap.String("route", c.FullPath()), zap.Error(err))
	response.Error(c, err)
}
