package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/middleware"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// formatValidationErrors converts validator errors into a user-friendly format.
func formatValidationErrors(errs validator.ValidationErrors) []dtos.ValidationErrorDetail {
	details := make([]dtos.ValidationErrorDetail, 0, len(errs))
	for _, err := range errs {
		var message string
		switch err.Tag() {
		case "required", "required_without":
			message = fmt.Sprintf("Field '%s' is required", err.Field())
		case "email":
			message = fmt.Sprintf("Field '%s' must be a valid email address", err.Field())
		case "min":
			message = fmt.Sprintf("Field '%s' must be at least %s in length", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("Field '%s' must not exceed %s in length", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("Field '%s' must be one of [%s]", err.Field(), err.Param())
		case "gt", "gte":
			message = fmt.Sprintf("Field '%s' must be %s %s", err.Field(), comparisonWord(err.Tag()), err.Param())
		case "gtfield":
			message = fmt.Sprintf("Field '%s' must be after '%s'", err.Field(), err.Param())
		default:
			message = fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", err.Field(), err.Tag())
		}
		details = append(details, dtos.ValidationErrorDetail{
			Field:   err.Field(),
			Message: message,
			Code:    "validation_" + err.Tag(),
		})
	}
	return details
}

func comparisonWord(tag string) string {
	if tag == "gt" {
		return "greater than"
	}
	return "at least"
}

// decodeAndValidate reads a JSON body into dst and validates it. On failure
// the response has been written and false is returned.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation failed", formatValidationErrors(validationErrs))
		} else {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", nil, err)
		}
		return false
	}
	return true
}

func actorFrom(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Missing identity", nil)
		return models.Actor{}, false
	}
	return id, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, fmt.Sprintf("Invalid %s", name), nil, err)
		return uuid.Nil, false
	}
	return id, true
}
