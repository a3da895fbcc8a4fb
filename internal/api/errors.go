package api

import (
	"errors"
	"net/http"

	"github.com/ocgrimoire/grimoire-api/internal/api/middleware"
	"github.com/ocgrimoire/grimoire-api/internal/api/shared"
	"github.com/ocgrimoire/grimoire-api/internal/domain"
	"github.com/ocgrimoire/grimoire-api/internal/media/images"
	"github.com/ocgrimoire/grimoire-api/internal/service"
	"github.com/ocgrimoire/grimoire-api/internal/service/auth"
	"github.com/ocgrimoire/grimoire-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var maxErr *http.MaxBytesError

	switch {
	case err == nil:
		return http.StatusOK

	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, domain.ErrNotOwner):
		return http.StatusForbidden

	// Not found errors
	case store.IsNotFoundError(err):
		return http.StatusNotFound

	// Conflicts are reported as bad requests, like the validation family.
	case errors.Is(err, store.ErrEmailExists),
		errors.Is(err, domain.ErrDuplicateRating):
		return http.StatusBadRequest

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, service.ErrImageRequired),
		images.IsClientError(err),
		errors.As(err, &maxErr):
		return http.StatusBadRequest

	// Default: internal server error
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

	var maxErr *http.MaxBytesError
	var validationErr *domain.ValidationError

	switch {
	// Authentication errors share one message.
	case MapErrorToStatusCode(err) == http.StatusUnauthorized &&
		!errors.Is(err, service.ErrInvalidCredentials):
		return middleware.UnauthorizedMessage
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid email or password"

	case errors.Is(err, domain.ErrNotOwner):
		return "You are not allowed to modify this book"

	case errors.Is(err, store.ErrBookNotFound):
		return "Book not found"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case store.IsNotFoundError(err):
		return "Not found"

	case errors.Is(err, store.ErrEmailExists):
		return "Email already exists"
	case errors.Is(err, domain.ErrDuplicateRating):
		return "You have already rated this book"
	case errors.Is(err, domain.ErrInvalidGrade):
		return "Rating must be an integer between 1 and 5"

	case errors.Is(err, images.ErrUnsupportedType):
		return "Image must be a JPEG or PNG"
	case errors.Is(err, images.ErrPayloadTooLarge):
		return "Image is too large"
	case errors.As(err, &maxErr):
		return "Request body is too large"
	case errors.Is(err, images.ErrCorruptImage):
		return "Image could not be decoded"
	case errors.Is(err, service.ErrImageRequired):
		return "Image is required"

	case errors.Is(err, shared.ErrMalformedBody):
		return "Invalid request format"
	case errors.As(err, &validationErr):
		return "Invalid " + validationErr.Field + ": " + validationErr.Message
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, store.ErrInvalidEntity):
		return "Validation error"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError maps err to a status and safe message, logs the detail and
// writes the error response. A non-empty fallback replaces the generic
// message of internal errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
