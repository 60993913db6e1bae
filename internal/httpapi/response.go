package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the envelope for failed requests
type ErrorResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// SuccessResponse is the envelope for successful requests
type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string, errs []string) {
	respondWithJSON(w, code, ErrorResponse{
		Status:  "error",
		Message: message,
		Errors:  errs,
	})
}

func respondWithSuccess(w http.ResponseWriter, code int, message string, data interface{}) {
	respondWithJSON(w, code, SuccessResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// validationMessages flattens validator errors into readable messages
func validationMessages(err error) []string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	out := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = formatValidationError(fe)
	}
	return out
}

// fieldPath is the JSON path of the field without the request struct name
func fieldPath(err validator.FieldError) string {
	_, path, ok := strings.Cut(err.Namespace(), ".")
	if !ok {
		return err.Field()
	}
	return path
}

func formatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fieldPath(err) + " is required"
	case "min":
		return fieldPath(err) + " must be at least " + err.Param()
	case "max":
		return fieldPath(err) + " must be at most " + err.Param()
	case "latitude", "longitude":
		return fieldPath(err) + " must be a valid " + err.Tag()
	default:
		return fieldPath(err) + " failed " + err.Tag() + " validation"
	}
}
