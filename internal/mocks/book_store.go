package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ocgrimoire/grimoire-api/internal/domain"
	"github.com/ocgrimoire/grimoire-api/internal/store"
)

// MockBookStore implements store.BookStore in memory. Returned books are
// copies, so callers cannot mutate stored state.
type MockBookStore struct {
	// Function fields for customizable behavior
	CreateFn    func(ctx context.Context, book *domain.Book) error
	UpdateFn    func(ctx context.Context, book *domain.Book) error
	DeleteFn    func(ctx context.Context, id uuid.UUID) error
	AddRatingFn func(ctx context.Context, bookID, raterID uuid.UUID, grade int) (*domain.Book, error)

	mu    sync.Mutex
	books map[uuid.UUID]*domain.Book
}

var _ store.BookStore = (*MockBookStore)(nil)

// NewMockBookStore creates an empty store.
func NewMockBookStore() *MockBookStore {
	return &MockBookStore{books: make(map[uuid.UUID]*domain.Book)}
}

func copyBook(b *domain.Book) *domain.Book {
	cp := *b
	cp.Ratings = append([]domain.Rating{}, b.Ratings...)
	return &cp
}

// Put stores book as-is, bypassing validation. Useful for test setup.
func (m *MockBookStore) Put(book *domain.Book) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[book.ID] = copyBook(book)
}

// Len returns the number of stored books.
func (m *MockBookStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.books)
}

// Create implements the BookStore interface
func (m *MockBookStore) Create(ctx context.Context, book *domain.Book) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, book)
	}
	if err := book.Validate(); err != nil {
		return err
	}
	book.AverageRating = domain.AverageRating(book.Ratings)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.books[book.ID]; exists {
		return store.ErrDuplicate
	}
	m.books[book.ID] = copyBook(book)
	return nil
}

// GetByID implements the BookStore interface
func (m *MockBookStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok {
		return nil, store.ErrBookNotFound
	}
	return copyBook(book), nil
}

// List implements the BookStore interface
func (m *MockBookStore) List(context.Context) ([]*domain.Book, error) {
	m.mu.Lock()
	books := make([]*domain.Book, 0, len(m.books))
	for _, b := range m.books {
		books = append(books, copyBook(b))
	}
	m.mu.Unlock()

	sort.Slice(books, func(i, j int) bool {
		if !books[i].CreatedAt.Equal(books[j].CreatedAt) {
			return books[i].CreatedAt.Before(books[j].CreatedAt)
		}
		return books[i].ID.String() < books[j].ID.String()
	})
	return books, nil
}

// ListBestRated implements the BookStore interface
func (m *MockBookStore) ListBestRated(ctx context.Context, limit int) ([]*domain.Book, error) {
	books, _ := m.List(ctx)
	sort.SliceStable(books, func(i, j int) bool {
		if books[i].AverageRating != books[j].AverageRating {
			return books[i].AverageRating > books[j].AverageRating
		}
		return books[i].ID.String() < books[j].ID.String()
	})
	if limit >= 0 && len(books) > limit {
		books = books[:limit]
	}
	return books, nil
}

// Update implements the BookStore interface
func (m *MockBookStore) Update(ctx context.Context, book *domain.Book) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, book)
	}
	if err := book.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.books[book.ID]
	if !ok {
		return store.ErrBookNotFound
	}
	updated := copyBook(book)
	updated.Ratings = existing.Ratings
	updated.AverageRating = existing.AverageRating
	updated.CreatedAt = existing.CreatedAt
	m.books[book.ID] = updated
	return nil
}

// Delete implements the BookStore interface
func (m *MockBookStore) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return store.ErrBookNotFound
	}
	delete(m.books, id)
	return nil
}

// AddRating implements the BookStore interface. The mutex stands in for the
// row lock of the Postgres store.
func (m *MockBookStore) AddRating(
	ctx context.Context,
	bookID, raterID uuid.UUID,
	grade int,
) (*domain.Book, error) {
	if m.AddRatingFn != nil {
		return m.AddRatingFn(ctx, bookID, raterID, grade)
	}
	if err := domain.ValidateGrade(grade); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.books[bookID]
	if !ok {
		return nil, store.ErrBookNotFound
	}

	book := copyBook(stored)
	if err := book.AddRating(raterID, grade); err != nil {
		return nil, err
	}
	book.UpdatedAt = time.Now().UTC()
	m.books[bookID] = book
	return copyBook(book), nil
}

// WithTx implements the BookStore interface for transaction support
func (m *MockBookStore) WithTx(*sql.Tx) store.BookStore {
	return m
}
