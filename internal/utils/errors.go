// internal/utils/errors.go
package utils

import (
	"errors"
	"net/http"
)

// Domain-level errors used by the service layer to provide
// fine-grained failure reasons.
var (
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidPhone       = errors.New("invalid_phone")
	ErrEmailExists        = errors.New("email_exists")
	ErrPhoneExists        = errors.New("phone_exists")
	ErrNationalIDExists   = errors.New("national_id_exists")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidToken       = errors.New("invalid_token")

	// Ownership / role
	ErrNotOwner     = errors.New("not_owner")
	ErrNotPermitted = errors.New("not_permitted")

	// Occupancy
	ErrRoomNotFound = errors.New("room_not_found")
	ErrRoomOccupied = errors.New("room_occupied")

	// For concurrency conflicts
	ErrRowVersionConflict = errors.New("row_version_conflict")

	// External service failures (Twilio, SendGrid)
	ErrExternalServiceFailure = errors.New("external_service_failure")

	// Mobile-money gateway failures
	ErrGatewayFailure = errors.New("gateway_failure")

	// A gateway callback disagrees with the gateway's record or the pending payment
	ErrCallbackMismatch = errors.New("callback_mismatch")

	// A client-supplied idempotency key was already used by the same actor
	ErrIdempotencyKeyReused = errors.New("idempotency_key_reused")

	ErrNoRowsUpdated = errors.New("no_rows_updated")
)

// AppError carries a failure from services to controllers together with the
// status and code it should be rendered with.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Constructors for the error taxonomy.

func NewValidationError(msg string, err error) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Code: ErrCodeValidation, Message: msg, Err: err}
}

func NewUnauthorizedError(msg string) *AppError {
	return &AppError{StatusCode: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: msg}
}

// NewNotPermittedError is a role or ownership mismatch. It answers 401 like a
// missing token does; the code tells the two apart.
func NewNotPermittedError(msg string) *AppError {
	return &AppError{StatusCode: http.StatusUnauthorized, Code: ErrCodeNotPermitted, Message: msg, Err: ErrNotPermitted}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Code: ErrCodeNotFound, Message: msg}
}

func NewConflictError(msg string, err error) *AppError {
	return &AppError{StatusCode: http.StatusConflict, Code: ErrCodeConflict, Message: msg, Err: err}
}

func NewGatewayError(msg string, err error) *AppError {
	return &AppError{StatusCode: http.StatusBadGateway, Code: ErrCodeGateway, Message: msg, Err: err}
}

func NewInternalError(msg string, err error) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Code: ErrCodeInternal, Message: msg, Err: err}
}

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
	} else {
		// Fallback for unexpected error types
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
