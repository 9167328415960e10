// internal/utils/response.go
package utils

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

const (
	ErrCodeInvalidPayload         = "invalid_payload"
	ErrCodeValidation             = "validation_error"
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeNotPermitted           = "not_permitted"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeInvalidCredentials     = "invalid_credentials"
	ErrCodeInternal               = "internal_server_error"
	ErrCodeNotFound               = "not_found"
	ErrCodeConflict               = "conflict"
	ErrCodeRowVersionConflict     = "row_version_conflict"
	ErrCodeGateway                = "gateway_error"
	ErrCodeExternalServiceFailure = "external_service_failure"
)

// ExposeDevErrors controls whether the developer-facing error text is echoed
// back to clients under details.error. Only enabled in development.
var ExposeDevErrors = false

// ErrorResponse carries an optional `Details` field for extra context
// (validation failures, the conflicting entity, ...).
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// RespondErrorWithCode builds a JSON error response with a standard
// code and message. The optional `details` is included if non-nil.
func RespondErrorWithCode(
	w http.ResponseWriter,
	status int,
	errorCode string,
	publicMessage string,
	details any,
	devErrs ...error,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errBody := ErrorResponse{
		Code:    errorCode,
		Message: publicMessage,
	}
	if details != nil {
		errBody.Details = details
	} else if ExposeDevErrors && len(devErrs) > 0 && devErrs[0] != nil {
		errBody.Details = map[string]string{"error": devErrs[0].Error()}
	}
	_ = json.NewEncoder(w).Encode(errBody)

	fields := logrus.Fields{"status": status, "code": errorCode}
	if len(devErrs) > 0 && devErrs[0] != nil {
		fields["error"] = devErrs[0].Error()
	}
	if status >= http.StatusInternalServerError {
		Logger.WithFields(fields).Error(publicMessage)
	} else {
		Logger.WithFields(fields).Warn(publicMessage)
	}
}

// RespondWithJSON for successful cases
func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
