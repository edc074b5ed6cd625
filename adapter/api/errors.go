package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	attendanceDomain "github.com/felixgeelhaar/studiobook/internal/attendance/domain"
	bookingDomain "github.com/felixgeelhaar/studiobook/internal/booking/domain"
	pricingDomain "github.com/felixgeelhaar/studiobook/internal/pricing/domain"
	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// APIError represents an API error.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common API errors
var (
	ErrBadRequest = &APIError{
		Status:  http.StatusBadRequest,
		Code:    "bad_request",
		Message: "Invalid request",
	}
	ErrUnauthorized = &APIError{
		Status:  http.StatusUnauthorized,
		Code:    "unauthorized",
		Message: "Missing or invalid bearer token",
	}
	ErrForbidden = &APIError{
		Status:  http.StatusForbidden,
		Code:    "forbidden",
		Message: "Insufficient permissions",
	}
	ErrNotFound = &APIError{
		Status:  http.StatusNotFound,
		Code:    "not_found",
		Message: "Resource not found",
	}
	ErrInternalServer = &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "Internal server error",
	}
)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	Fields               []fieldError                 `json:"fields,omitempty"`
	Conflicts            []bookingDomain.ConflictInfo `json:"conflicts,omitempty"`
	RequiresConfirmation bool                         `json:"requiresConfirmation,omitempty"`
	SkippedDates         []bookingDomain.SkippedDate  `json:"skippedDates,omitempty"`
}

// errorResponse maps an error to its status and body. It is the only place
// where domain errors meet HTTP.
func errorResponse(err error) (int, errorBody) {
	var (
		apiErr     *APIError
		conflict   *bookingDomain.ConflictError
		allSkipped *bookingDomain.AllDatesConflictedError
		invalid    *sharedDomain.ValidationError
		fields     validator.ValidationErrors
	)
	unprocessable := func(code string) (int, errorBody) {
		return http.StatusUnprocessableEntity, errorBody{Code: code, Message: err.Error()}
	}

	switch {
	case errors.As(err, &apiErr):
		return apiErr.Status, errorBody{Code: apiErr.Code, Message: apiErr.Message}
	case errors.As(err, &conflict):
		return http.StatusConflict, errorBody{
			Code:                 "conflict",
			Message:              err.Error(),
			Conflicts:            conflict.Conflicts,
			RequiresConfirmation: true,
		}
	case errors.As(err, &allSkipped):
		return http.StatusUnprocessableEntity, errorBody{
			Code:         "all_dates_conflicted",
			Message:      err.Error(),
			SkippedDates: allSkipped.Skipped,
		}
	case errors.As(err, &fields):
		body := errorBody{Code: "validation_failed", Message: "request validation failed"}
		for _, fe := range fields {
			body.Fields = append(body.Fields, fieldError{Field: fe.Namespace(), Message: fe.Tag()})
		}
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, errorBody{
			Code:    "validation_failed",
			Message: err.Error(),
			Fields:  []fieldError{{Field: invalid.Field, Message: invalid.Message}},
		}
	case errors.Is(err, bookingDomain.ErrInvalidWindow),
		errors.Is(err, bookingDomain.ErrNoResources),
		errors.Is(err, bookingDomain.ErrInvalidKind),
		errors.Is(err, bookingDomain.ErrInvalidQuantity):
		return unprocessable("validation_failed")
	case errors.Is(err, bookingDomain.ErrReservationCancelled):
		return unprocessable("reservation_cancelled")
	case errors.Is(err, bookingDomain.ErrAmbiguousParticipant):
		return unprocessable("ambiguous_participant")
	case errors.Is(err, pricingDomain.ErrServiceTypeNotFound):
		return unprocessable("unknown_service_type")
	case errors.Is(err, bookingDomain.ErrConcurrentModification):
		return http.StatusConflict, errorBody{Code: "concurrent_modification", Message: err.Error()}
	case errors.Is(err, bookingDomain.ErrParticipantNotFound),
		errors.Is(err, attendanceDomain.ErrRegistrationNotFound),
		errors.Is(err, sharedDomain.ErrNotFound):
		return http.StatusNotFound, errorBody{Code: ErrNotFound.Code, Message: err.Error()}
	default:
		return ErrInternalServer.Status, errorBody{Code: ErrInternalServer.Code, Message: ErrInternalServer.Message}
	}
}

// respondError writes err as JSON and aborts the chain. Unexpected errors
// are logged; their text never reaches the client.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, body)
}
