package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ocgrimoire/grimoire-api/internal/domain"
	"github.com/ocgrimoire/grimoire-api/internal/platform/logger"
	"github.com/ocgrimoire/grimoire-api/internal/redact"
	"github.com/ocgrimoire/grimoire-api/internal/store"
)

// selectBooks loads books with their ratings aggregated into a JSON array so
// one round trip returns the whole aggregate.
const selectBooks = `
	SELECT
		b.id, b.user_id, b.title, b.author, b.year, b.genre,
		b.image_ref, b.blur_hash, b.average_rating, b.created_at, b.updated_at,
		COALESCE((
			SELECT json_agg(json_build_object('userId', r.user_id, 'grade', r.grade)
				ORDER BY r.created_at, r.user_id)
			FROM book_ratings r
			WHERE r.book_id = b.id
		), '[]'::json)
	FROM books b
`

// PostgresBookStore implements the store.BookStore interface
// using a PostgreSQL database as the storage backend.
type PostgresBookStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresBookStore creates a new PostgreSQL implementation of the BookStore interface.
// db may be a *sql.DB or a *sql.Tx. Operations that need atomicity open their
// own transaction on a *sql.DB and join the caller's otherwise.
func NewPostgresBookStore(db store.DBTX, logger *slog.Logger) *PostgresBookStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresBookStore{
		db:     db,
		logger: logger.With(slog.String("component", "book_store")),
	}
}

// Ensure PostgresBookStore implements store.BookStore interface
var _ store.BookStore = (*PostgresBookStore)(nil)

// WithTx implements store.BookStore.WithTx
func (s *PostgresBookStore) WithTx(tx *sql.Tx) store.BookStore {
	return &PostgresBookStore{db: tx, logger: s.logger}
}

// inTx runs fn in a transaction, reusing the store's own when it already has one.
func (s *PostgresBookStore) inTx(ctx context.Context, fn func(q store.DBTX) error) error {
	db, ok := s.db.(*sql.DB)
	if !ok {
		return fn(s.db)
	}
	return store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(tx)
	})
}

// Create implements store.BookStore.Create.
// The book row and its initial ratings are inserted atomically.
func (s *PostgresBookStore) Create(ctx context.Context, book *domain.Book) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := book.Validate(); err != nil {
		log.Warn("book validation failed during create",
			slog.String("error", err.Error()),
			slog.String("book_id", book.ID.String()))
		return err
	}
	book.AverageRating = domain.AverageRating(book.Ratings)

	err := s.inTx(ctx, func(q store.DBTX) error {
		query := `
			INSERT INTO books (id, user_id, title, author, year, genre,
				image_ref, blur_hash, average_rating, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		if _, err := q.ExecContext(ctx, query,
			book.ID,
			book.UserID,
			book.Title,
			book.Author,
			book.Year,
			book.Genre,
			book.ImageRef,
			book.BlurHash,
			book.AverageRating,
			book.CreatedAt,
			book.UpdatedAt,
		); err != nil {
			if IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: owner %s does not exist", store.ErrInvalidEntity, book.UserID)
			}
			return MapError(err)
		}

		for _, r := range book.Ratings {
			if err := insertRating(ctx, q, book.ID, r, book.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to create book",
			slog.String("error", redact.Error(err)),
			slog.String("book_id", book.ID.String()),
			slog.String("user_id", book.UserID.String()))
		return err
	}

	log.Info("book created successfully",
		slog.String("book_id", book.ID.String()),
		slog.String("user_id", book.UserID.String()))
	return nil
}

// GetByID implements store.BookStore.GetByID
func (s *PostgresBookStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	book, err := getBook(ctx, s.db, id)
	if err != nil && !errors.Is(err, store.ErrBookNotFound) {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get book",
			slog.String("error", redact.Error(err)),
			slog.String("book_id", id.String()))
	}
	return book, err
}

// List implements store.BookStore.List
func (s *PostgresBookStore) List(ctx context.Context) ([]*domain.Book, error) {
	return s.query(ctx, selectBooks+` ORDER BY b.created_at ASC, b.id ASC`)
}

// ListBestRated implements store.BookStore.ListBestRated
func (s *PostgresBookStore) ListBestRated(ctx context.Context, limit int) ([]*domain.Book, error) {
	if limit <= 0 {
		return []*domain.Book{}, nil
	}
	return s.query(ctx, selectBooks+` ORDER BY b.average_rating DESC, b.id ASC LIMIT $1`, limit)
}

func (s *PostgresBookStore) query(ctx context.Context, query string, args ...any) ([]*domain.Book, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query books", slog.String("error", redact.Error(err)))
		return nil, fmt.Errorf("failed to query books: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	books := []*domain.Book{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			log.Error("failed to scan book", slog.String("error", redact.Error(err)))
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		log.Error("failed to iterate books", slog.String("error", redact.Error(err)))
		return nil, fmt.Errorf("failed to iterate books: %w", MapError(err))
	}

	return books, nil
}

// Update implements store.BookStore.Update
func (s *PostgresBookStore) Update(ctx context.Context, book *domain.Book) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := book.Validate(); err != nil {
		log.Warn("book validation failed during update",
			slog.String("error", err.Error()),
			slog.String("book_id", book.ID.String()))
		return err
	}

	query := `
		UPDATE books
		SET title = $1, author = $2, year = $3, genre = $4,
			image_ref = $5, blur_hash = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := s.db.ExecContext(ctx, query,
		book.Title,
		book.Author,
		book.Year,
		book.Genre,
		book.ImageRef,
		book.BlurHash,
		book.UpdatedAt,
		book.ID,
	)
	if err != nil {
		log.Error("failed to update book",
			slog.String("error", redact.Error(err)),
			slog.String("book_id", book.ID.String()))
		return store.NewStoreError("book", "update", "failed to update book", MapError(err))
	}
	if err := CheckRowsAffected(result, store.ErrBookNotFound); err != nil {
		return err
	}

	log.Info("book updated successfully", slog.String("book_id", book.ID.String()))
	return nil
}

// Delete implements store.BookStore.Delete.
// Ratings are removed by the ON DELETE CASCADE constraint.
func (s *PostgresBookStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete book",
			slog.String("error", redact.Error(err)),
			slog.String("book_id", id.String()))
		return store.NewStoreError("book", "delete", "failed to delete book", MapError(err))
	}
	if err := CheckRowsAffected(result, store.ErrBookNotFound); err != nil {
		return err
	}

	log.Info("book deleted successfully", slog.String("book_id", id.String()))
	return nil
}

// AddRating implements store.BookStore.AddRating.
// The book row is locked with its own SELECT ... FOR UPDATE before the
// ratings are read, so the read runs on a snapshot taken after any earlier
// rater committed. Concurrent raters of one book are serialized.
func (s *PostgresBookStore) AddRating(
	ctx context.Context,
	bookID, raterID uuid.UUID,
	grade int,
) (*domain.Book, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("book_id", bookID.String()),
		slog.String("rater_id", raterID.String()))

	if err := domain.ValidateGrade(grade); err != nil {
		return nil, err
	}

	var updated *domain.Book
	err := s.inTx(ctx, func(q store.DBTX) error {
		if err := lockBook(ctx, q, bookID); err != nil {
			return err
		}

		book, err := getBook(ctx, q, bookID)
		if err != nil {
			return err
		}

		if err := book.AddRating(raterID, grade); err != nil {
			return err
		}

		now := time.Now().UTC()
		rating := domain.Rating{UserID: raterID, Grade: grade}
		if err := insertRating(ctx, q, bookID, rating, now); err != nil {
			return err
		}

		if _, err := q.ExecContext(ctx,
			`UPDATE books SET average_rating = $1, updated_at = $2 WHERE id = $3`,
			book.AverageRating, now, bookID,
		); err != nil {
			return store.NewStoreError("book", "rate", "failed to update average", MapError(err))
		}

		book.UpdatedAt = now
		updated = book
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrBookNotFound),
			errors.Is(err, domain.ErrDuplicateRating),
			errors.Is(err, domain.ErrValidation):
			log.Debug("rating rejected", slog.String("reason", err.Error()))
		default:
			log.Error("failed to add rating", slog.String("error", redact.Error(err)))
		}
		return nil, err
	}

	log.Info("rating added",
		slog.Int("grade", grade),
		slog.Float64("average_rating", updated.AverageRating))
	return updated, nil
}

func insertRating(ctx context.Context, q store.DBTX, bookID uuid.UUID, r domain.Rating, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO book_ratings (book_id, user_id, grade, created_at) VALUES ($1, $2, $3, $4)`,
		bookID, r.UserID, r.Grade, at,
	)
	switch {
	case err == nil:
		return nil
	case IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", domain.ErrDuplicateRating, err)
	case IsForeignKeyViolation(err):
		return fmt.Errorf("%w: rater %s does not exist", store.ErrInvalidEntity, r.UserID)
	default:
		return store.NewStoreError("book", "rate", "failed to insert rating", MapError(err))
	}
}

// lockBook takes the row lock on one book. It must be a separate statement
// from the ratings read: under READ COMMITTED a statement that waited on a
// lock keeps its original snapshot for every other table it reads.
func lockBook(ctx context.Context, q store.DBTX, id uuid.UUID) error {
	var locked uuid.UUID
	err := q.QueryRowContext(ctx, `SELECT id FROM books WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrBookNotFound
	default:
		return store.NewStoreError("book", "rate", "failed to lock book", MapError(err))
	}
}

func getBook(ctx context.Context, q store.DBTX, id uuid.UUID) (*domain.Book, error) {
	book, err := scanBook(q.QueryRowContext(ctx, selectBooks+` WHERE b.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*domain.Book, error) {
	var (
		book    domain.Book
		ratings []byte
	)
	err := row.Scan(
		&book.ID,
		&book.UserID,
		&book.Title,
		&book.Author,
		&book.Year,
		&book.Genre,
		&book.ImageRef,
		&book.BlurHash,
		&book.AverageRating,
		&book.CreatedAt,
		&book.UpdatedAt,
		&ratings,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan book: %w", MapError(err))
	}

	book.Ratings = []domain.Rating{}
	if err := json.Unmarshal(ratings, &book.Ratings); err != nil {
		return nil, fmt.Errorf("failed to decode ratings of book %s: %w", book.ID, err)
	}
	return &book, nil
}
