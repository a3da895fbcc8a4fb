package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptVerifier_HashAndCompare(t *testing.T) {
	t.Parallel()

	v := NewBcryptVerifier(bcrypt.MinCost)

	hash, err := v.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	again, err := v.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "each hash uses a fresh salt")

	assert.NoError(t, v.Compare(hash, "correct horse battery staple"))
	assert.ErrorIs(t, v.Compare(hash, "wrong"), ErrPasswordMismatch)
	assert.Error(t, v.Compare("not-a-bcrypt-hash", "anything"))
}

func TestNewBcryptVerifier_Cost(t *testing.T) {
	t.Parallel()

	hash, err := NewBcryptVerifier(99).Hash("pw")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)

	hash, err = NewBcryptVerifier(bcrypt.MinCost).Hash("pw")
	require.NoError(t, err)
	cost, err = bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestBcryptVerifier_DummyHash(t *testing.T) {
	t.Parallel()

	v := NewBcryptVerifier(bcrypt.MinCost)
	dummy := v.DummyHash()
	require.NotEmpty(t, dummy)
	assert.Equal(t, dummy, v.DummyHash())
	assert.ErrorIs(t, v.Compare(dummy, ""), ErrPasswordMismatch)
	assert.ErrorIs(t, v.Compare(dummy, "password"), ErrPasswordMismatch)
}
