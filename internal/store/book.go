package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/ocgrimoire/grimoire-api/internal/domain"
)

// BookStore defines the interface for book data persistence.
// Books are always returned with their ratings loaded.
type BookStore interface {
	// Create saves a new book together with any initial ratings.
	// Returns ErrInvalidEntity wrapping the domain error if validation fails.
	Create(ctx context.Context, book *domain.Book) error

	// GetByID retrieves a book by its unique ID.
	// Returns ErrBookNotFound if the book does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error)

	// List returns every book ordered by creation time, oldest first.
	List(ctx context.Context) ([]*domain.Book, error)

	// ListBestRated returns at most limit books ordered by average rating,
	// highest first. Ties are broken by ascending id.
	ListBestRated(ctx context.Context, limit int) ([]*domain.Book, error)

	// Update persists the descriptive fields and image of an existing book.
	// Ratings are not touched; use AddRating.
	// Returns ErrBookNotFound if the book does not exist.
	Update(ctx context.Context, book *domain.Book) error

	// Delete removes a book and its ratings.
	// Returns ErrBookNotFound if the book does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// AddRating atomically records raterID's grade and recomputes the average.
	// Concurrent calls on the same book are serialized so no rating is lost.
	// Returns ErrBookNotFound, domain.ErrInvalidGrade or
	// domain.ErrDuplicateRating, and the updated book on success.
	AddRating(ctx context.Context, bookID, raterID uuid.UUID, grade int) (*domain.Book, error)

	// WithTx returns a new BookStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) BookStore
}
