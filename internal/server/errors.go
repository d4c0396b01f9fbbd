package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	"github.com/smallbiznis/rentledger/internal/scheduler"
	utilitydomain "github.com/smallbiznis/rentledger/internal/utility/domain"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrBillingRunFailed   = errors.New("billing_run_failed")
)

// validationFields maps domain validation codes to the request field at fault.
var validationFields = map[error]string{
	ErrInvalidRequest:                   "request",
	invoicedomain.ErrInvalidInvoiceType: "type",
	invoicedomain.ErrInvalidAmount:      "amount",
	invoicedomain.ErrInvalidDueDate:     "due_date",
	invoicedomain.ErrInvalidPeriod:      "period",
	invoicedomain.ErrInvalidLease:       "lease_id",
	leasedomain.ErrInvalidPeriod:        "period",
	paymentdomain.ErrInvalidAmount:      "amount",
	paymentdomain.ErrInvalidMethod:      "method",
	paymentdomain.ErrMissingReason:      "reason",
	paymentdomain.ErrReferenceTooLong:   "reference",
	pagination.ErrInvalidPageToken:      "page_token",
}

var conflictErrors = []error{
	invoicedomain.ErrDuplicateInvoice,
	paymentdomain.ErrAlreadyReversed,
	scheduler.ErrRunInProgress,
}

var businessRuleErrors = []error{
	paymentdomain.ErrExcessPayment,
	leasedomain.ErrLeaseNotActive,
	invoicedomain.ErrMissingRentAmount,
	invoicedomain.ErrCurrencyUnsupported,
	utilitydomain.ErrNoUtilitiesAssigned,
	utilitydomain.ErrMissingReading,
	utilitydomain.ErrNegativeConsumption,
	utilitydomain.ErrUnknownUtilityType,
	ledgerdomain.ErrCurrencyMismatch,
}

var notFoundErrors = []error{
	ErrNotFound,
	invoicedomain.ErrInvoiceNotFound,
	paymentdomain.ErrPaymentNotFound,
	leasedomain.ErrLeaseNotFound,
	ledgerdomain.ErrEntityNotFound,
	ledgerdomain.ErrAccountNotFound,
	gorm.ErrRecordNotFound,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if sentinel, field, ok := matchValidation(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   field,
					Code:    sentinel.Error(),
					Message: err.Error(),
				},
			},
		}
	}

	// Business rejections carry the wrapped reason, e.g. the remaining balance
	// an excess payment was checked against.
	if sentinel := matchAny(err, conflictErrors); sentinel != nil {
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    sentinel.Error(),
			Message: err.Error(),
		}
	}
	if sentinel := matchAny(err, businessRuleErrors); sentinel != nil {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "business_rule_violation",
			Code:    sentinel.Error(),
			Message: err.Error(),
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isNotFoundError(err):
		code := ""
		if sentinel := matchAny(err, notFoundErrors); sentinel != nil {
			code = sentinel.Error()
		}
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    code,
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog reports the error type and code the request logger
// attaches to failed requests.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if code == "" {
		code = http.StatusText(status)
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func matchValidation(err error) (error, string, bool) {
	for sentinel, field := range validationFields {
		if errors.Is(err, sentinel) {
			return sentinel, field, true
		}
	}
	return nil, "", false
}

func matchAny(err error, candidates []error) error {
	for _, candidate := range candidates {
		if errors.Is(err, candidate) {
			return candidate
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	return matchAny(err, notFoundErrors) != nil
}
