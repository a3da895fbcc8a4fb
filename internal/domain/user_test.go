package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	t.Parallel()

	user, err := NewUser("  Reader@Example.COM ", "hashedpassword123")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "reader@example.com", user.Email)
	assert.Equal(t, "hashedpassword123", user.HashedPassword)
	assert.False(t, user.CreatedAt.IsZero())
	assert.False(t, user.UpdatedAt.IsZero())
}

func TestNewUser_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		email    string
		password string
		field    string
	}{
		{name: "empty email", email: "", password: "hash", field: "email"},
		{name: "malformed email", email: "invalidemail", password: "hash", field: "email"},
		{name: "display name form", email: "Bob <bob@example.com>", password: "hash", field: "email"},
		{name: "empty hash", email: "bob@example.com", password: "", field: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUser(tt.email, tt.password)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestUserValidate_EmptyID(t *testing.T) {
	t.Parallel()

	user := User{Email: "a@example.com", HashedPassword: "hash"}
	err := user.Validate()
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mixed@case.org", NormalizeEmail("\tMiXeD@Case.ORG\n"))
}
