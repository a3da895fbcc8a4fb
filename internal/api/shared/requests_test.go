package shared

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ocgrimoire/grimoire-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Email  string `json:"email"  validate:"required,email"`
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
}

func TestDecodeJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		var req sampleRequest
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","rating":3,"extra":true}`))
		require.NoError(t, DecodeJSON(r, &req))
		assert.Equal(t, sampleRequest{Email: "a@b.co", Rating: 3}, req)
	})

	t.Run("malformed", func(t *testing.T) {
		var req sampleRequest
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":`))
		err := DecodeJSON(r, &req)
		assert.ErrorIs(t, err, ErrMalformedBody)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("too large passes through", func(t *testing.T) {
		var req sampleRequest
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","rating":3}`))
		r.Body = http.MaxBytesReader(httptest.NewRecorder(), r.Body, 4)
		err := DecodeJSON(r, &req)

		var maxErr *http.MaxBytesError
		assert.True(t, errors.As(err, &maxErr))
		assert.NotErrorIs(t, err, ErrMalformedBody)
	})
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(&sampleRequest{Email: "a@b.co", Rating: 5}))

	tests := []struct {
		name    string
		req     sampleRequest
		field   string
		message string
	}{
		{"missing email", sampleRequest{Rating: 1}, "email", "is required"},
		{"bad email", sampleRequest{Email: "nope", Rating: 1}, "email", "has invalid email format"},
		{"rating too high", sampleRequest{Email: "a@b.co", Rating: 6}, "rating", "is too large or too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(&tt.req)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.message, verr.Message)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}
