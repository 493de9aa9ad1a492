package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/chapterforge/internal/api/shared"
	"github.com/phrazzld/chapterforge/internal/generation"
	"github.com/phrazzld/chapterforge/internal/job"
)

// Handler-level errors
var (
	// ErrJobNotFound is returned when no job is registered under the requested id
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a control action does not apply
	// to the job's current status
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrInvalidQuery is returned for malformed query parameters
	ErrInvalidQuery = errors.New("invalid query parameter")

	// ErrInvalidJobID is returned when a client-supplied job id is unusable
	ErrInvalidJobID = errors.New("invalid job id")
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict

	case errors.Is(err, shared.ErrInvalidBody),
		errors.Is(err, ErrInvalidQuery),
		errors.Is(err, ErrInvalidJobID),
		errors.Is(err, job.ErrEmptyJobID),
		errors.Is(err, job.ErrInvalidStatus),
		errors.Is(err, generation.ErrInvalidRequest):
		return http.StatusBadRequest

	case errors.Is(err, job.ErrProcessorStopped):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, generation.ErrInvalidRequest):
		return SanitizeValidationError(err)

	case errors.Is(err, job.ErrInvalidStatus):
		return "Invalid status filter"

	case errors.Is(err, shared.ErrInvalidBody):
		return "Invalid request format"

	case errors.Is(err, ErrInvalidJobID), errors.Is(err, job.ErrEmptyJobID):
		return "Invalid job id"

	case errors.Is(err, job.ErrProcessorStopped):
		return "Server is shutting down"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator errors into a short message
// naming the offending fields, e.g. "Invalid outline: required field".
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag())))
	}
	return strings.Join(parts, "; ")
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too small"
	case "max":
		return "too long"
	case "printascii":
		return "must be printable ASCII"
	default:
		return "validation failed"
	}
}

// respondWithDomainError maps err and writes the matching error response.
func respondWithDomainError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
