package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ocgrimoire/grimoire-api/internal/domain"
)

// Global validator instance for reuse
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so messages match what the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ErrMalformedBody is returned when a request body is not valid JSON for the
// target type.
var ErrMalformedBody = fmt.Errorf("%w: malformed request body", domain.ErrValidation)

// DecodeJSON decodes the request body into the given struct. Unknown fields
// are ignored.
func DecodeJSON(r *http.Request, v interface{}) error {
	return DecodeJSONBytes(r.Body, v)
}

// DecodeJSONBytes decodes a single JSON value from rd.
func DecodeJSONBytes(rd io.Reader, v interface{}) error {
	if err := json.NewDecoder(rd).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return nil
}

// ValidateRequest validates the given struct using the validator package.
// The first failing field is returned as a *domain.ValidationError.
func ValidateRequest(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domain.NewValidationError(fe.Field(), tagMessage(fe.Tag()), domain.ErrValidation)
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}

// tagMessage maps validation tags to user-friendly error messages
func tagMessage(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "has invalid email format"
	case "min", "gte":
		return "is too small or too short"
	case "max", "lte":
		return "is too large or too long"
	case "uuid":
		return "has invalid format"
	default:
		return "is invalid"
	}
}
