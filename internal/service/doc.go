// Package service orchestrates the catalogue's use cases on top of the domain
// rules and the store interfaces.
//
// UserService handles signup and login: passwords are hashed and compared on
// the shared worker pool, and an unknown email costs as much as a wrong
// password. BookService owns the book lifecycle: it validates input, enforces
// ownership through domain.RequireOwner, hands uploads to the image pipeline,
// and removes blobs that no record references any more.
//
// Services depend only on interfaces, so tests run them against the in-memory
// fakes in internal/mocks.
package service
