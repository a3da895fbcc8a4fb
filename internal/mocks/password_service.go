package mocks

import (
	"strings"
	"sync"

	"github.com/ocgrimoire/grimoire-api/internal/service/auth"
)

const (
	mockHashPrefix = "hashed:"
	mockDummyHash  = "dummy-hash"
)

// MockPasswordService is a reversible stand-in for bcrypt. Hash prefixes the
// password and Compare checks the prefix, so tests run without bcrypt's cost.
type MockPasswordService struct {
	// HashFn and CompareFn override the default behavior.
	HashFn    func(password string) (string, error)
	CompareFn func(hashedPassword, password string) error

	mu sync.Mutex
	// CompareCalledWith records the hash of every Compare call.
	CompareCalledWith []string
}

// Hash implements auth.PasswordHasher
func (m *MockPasswordService) Hash(password string) (string, error) {
	if m.HashFn != nil {
		return m.HashFn(password)
	}
	return mockHashPrefix + password, nil
}

// Compare implements auth.PasswordVerifier
func (m *MockPasswordService) Compare(hashedPassword, password string) error {
	m.mu.Lock()
	m.CompareCalledWith = append(m.CompareCalledWith, hashedPassword)
	m.mu.Unlock()

	if m.CompareFn != nil {
		return m.CompareFn(hashedPassword, password)
	}
	if !strings.HasPrefix(hashedPassword, mockHashPrefix) ||
		strings.TrimPrefix(hashedPassword, mockHashPrefix) != password {
		return auth.ErrPasswordMismatch
	}
	return nil
}

// DummyHash returns a hash no password matches.
func (m *MockPasswordService) DummyHash() string {
	return mockDummyHash
}

// CompareCalls returns a copy of the recorded Compare hashes.
func (m *MockPasswordService) CompareCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CompareCalledWith...)
}
