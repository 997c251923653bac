package errors

import (
	"net/http"

	"github.com/pkg/errors"

	petmailerrors "github.com/pawpal/petmail/internal/errors"
	"github.com/pawpal/petmail/internal/repository"
)

type statusRule struct {
	target error
	status int
}

// first match wins
var statusRules = []statusRule{
	{petmailerrors.ErrInvalidSignature, http.StatusUnauthorized},
	{petmailerrors.ErrUnparseablePayload, http.StatusBadRequest},
	{petmailerrors.ErrMissingRecipient, http.StatusBadRequest},
	{petmailerrors.ErrMissingSender, http.StatusBadRequest},
	{petmailerrors.ErrMissingMessageID, http.StatusBadRequest},
	{repository.ErrInvalidInput, http.StatusBadRequest},
	{petmailerrors.ErrForeignDocument, http.StatusForbidden},
	{petmailerrors.ErrPetNotFound, http.StatusNotFound},
	{petmailerrors.ErrApprovalNotFound, http.StatusNotFound},
	{repository.ErrNotFound, http.StatusNotFound},
	{petmailerrors.ErrApprovalAlreadyResolved, http.StatusConflict},
	{petmailerrors.ErrApprovalPayloadMissing, http.StatusGone},
}

// StatusCode maps a request level error to the HTTP status returned to the
// caller. Unknown errors are 500 so the mail provider retries them.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, rule := range statusRules {
		if errors.Is(err, rule.target) {
			return rule.status
		}
	}
	return http.StatusInternalServerError
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewErrorResponse hides internal error text behind a generic message for
// 500s.
func NewErrorResponse(err error) (int, ErrorResponse) {
	code := StatusCode(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		message = "internal error"
	}
	return code, ErrorResponse{
		Success: false,
		Status:  statusName(code),
		Message: message,
	}
}

func statusName(code int) string {
	switch code {
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusGone:
		return "gone"
	default:
		return "error"
	}
}
