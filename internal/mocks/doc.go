// Package mocks provides centralized mock implementations for testing.
//
// The in-memory stores honor the same contracts as the Postgres stores
// (sentinel errors, case-insensitive email uniqueness, best-rated ordering),
// so service and handler tests exercise real behavior without a database.
// Function fields override individual methods when a test needs a failure.
//
// Usage:
//
//	userStore := mocks.NewMockUserStore()
//	userStore.CreateFn = func(ctx context.Context, u *domain.User) error {
//	    return errors.New("boom")
//	}
package mocks
