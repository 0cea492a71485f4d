package response

import (
	"errors"
	"net/http"

	apperrors "github.com/condohub/condofee/pkg/errors"
	"github.com/gin-gonic/gin"
)

// Envelope codes. Every response body carries one of them.
const (
	CodeFailure = 0
	CodeSuccess = 1
)

// Envelope is the uniform wire wrapper around every API response
type Envelope struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

// Success sends a successful JSON response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Envelope{
		Code: CodeSuccess,
		Msg:  "ok",
		Data: data,
	})
}

// Fail sends a declared failure with the given HTTP status
func Fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Envelope{
		Code: CodeFailure,
		Msg:  msg,
	})
}

// Abort is Fail for middleware: it stops the handler chain
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Envelope{
		Code: CodeFailure,
		Msg:  msg,
	})
}

// Error sends an error JSON response
func Error(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		Fail(c, appErr.Status, appErr.Message)
		return
	}

	// Default internal server error
	_ = c.Error(err)
	Fail(c, http.StatusInternalServerError, "Internal server error")
}

// ValidationError sends a validation error response
func ValidationError(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, message)
}
