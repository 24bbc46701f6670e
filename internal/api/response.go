package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/kbchat/internal/domain"
)

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
}

// OKResponse is returned by endpoints that only acknowledge success.
type OKResponse struct {
	OK bool `json:"ok"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeCollaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage is the caller-facing text for err. Validation messages are
// returned verbatim; collaborator causes stay in the logs.
func ErrorMessage(err error) string {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return "internal server error"
	}
	if domainErr.Code == domain.ErrCodeValidation {
		return domainErr.Message
	}
	return domainErr.Code + ": " + domainErr.Message
}

// HandleError writes an appropriate error response based on the error type
func HandleError(w http.ResponseWriter, err error) {
	Error(w, DomainErrorToHTTP(err), ErrorMessage(err))
}
