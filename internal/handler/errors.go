package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/umsys/user-management/shared/errs"
	"github.com/umsys/user-management/shared/middleware"
	"github.com/umsys/user-management/shared/utils"
)

// ErrorReporter receives unexpected failures, normally Sentry.
type ErrorReporter interface {
	CaptureException(err error)
}

// Responder turns service errors into HTTP responses.
type Responder struct {
	logger   *slog.Logger
	reporter ErrorReporter
}

func NewResponder(logger *slog.Logger, reporter ErrorReporter) *Responder {
	return &Responder{logger: logger, reporter: reporter}
}

// Error writes the status for err's kind. Unknown errors become a 500 with
// fallback as the message and are logged and reported.
func (r *Responder) Error(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		r.logger.Error(fallback, "method", c.Request.Method, "path", c.FullPath(), "error", err)
		if r.reporter != nil {
			r.reporter.CaptureException(err)
		}
		middleware.RespondWithError(c, status, fallback)
		return
	}
	middleware.RespondWithError(c, status, errs.Message(err, fallback))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// normalizer is implemented by requests that canonicalise fields, such as
// upper-casing codes, before validation.
type normalizer interface {
	normalize()
}

// bindJSON decodes and validates the body, writing a 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if n, ok := req.(normalizer); ok {
		n.normalize()
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}

// pathID reads the named path parameter, answering 400 when valid rejects it.
func pathID(c *gin.Context, name, label string, valid func(string) bool) (string, bool) {
	id := c.Param(name)
	if !valid(id) {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid "+label+" ID format")
		return "", false
	}
	return id, true
}

func userIDParam(c *gin.Context) (string, bool) {
	return pathID(c, "userId", "user", utils.ValidateUserID)
}

func addressIDParam(c *gin.Context) (string, bool) {
	return pathID(c, "addressId", "address", utils.ValidateAddressID)
}

func requestIDParam(c *gin.Context) (string, bool) {
	return pathID(c, "requestId", "password change request", utils.ValidatePasswordChangeID)
}
