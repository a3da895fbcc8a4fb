package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ocgrimoire/grimoire-api/internal/domain"
	"github.com/ocgrimoire/grimoire-api/internal/media/images"
	"github.com/ocgrimoire/grimoire-api/internal/platform/logger"
	"github.com/ocgrimoire/grimoire-api/internal/redact"
	"github.com/ocgrimoire/grimoire-api/internal/store"
)

// BestRatedLimit is the number of books returned by BestRatedBooks.
const BestRatedLimit = 3

// ImageIngester stores and removes book images.
// *images.Pipeline satisfies it.
type ImageIngester interface {
	Ingest(ctx context.Context, up images.Upload) (*images.Result, error)
	Remove(ctx context.Context, name string) error
}

// CreateBookCommand carries a validated create request.
type CreateBookCommand struct {
	Input domain.BookInput

	// Ratings as sent by the client. Only the owner's own entry is kept.
	Ratings []domain.Rating

	Image *images.Upload
}

// UpdateBookCommand carries a partial update and an optional new image.
type UpdateBookCommand struct {
	Patch domain.BookPatch
	Image *images.Upload
}

// BookService provides catalogue operations.
type BookService interface {
	// ListBooks returns every book, oldest first.
	ListBooks(ctx context.Context) ([]*domain.Book, error)

	// GetBook returns one book or store.ErrBookNotFound.
	GetBook(ctx context.Context, bookID uuid.UUID) (*domain.Book, error)

	// BestRatedBooks returns up to BestRatedLimit books by descending average.
	BestRatedBooks(ctx context.Context) ([]*domain.Book, error)

	// CreateBook ingests the image and stores a new book owned by ownerID.
	CreateBook(ctx context.Context, ownerID uuid.UUID, cmd CreateBookCommand) (*domain.Book, error)

	// UpdateBook applies cmd if requesterID owns the book.
	UpdateBook(ctx context.Context, bookID, requesterID uuid.UUID, cmd UpdateBookCommand) (*domain.Book, error)

	// DeleteBook removes the book and its image if requesterID owns it.
	DeleteBook(ctx context.Context, bookID, requesterID uuid.UUID) error

	// RateBook records raterID's grade and returns the updated book.
	RateBook(ctx context.Context, bookID, raterID uuid.UUID, grade int) (*domain.Book, error)
}

type bookServiceImpl struct {
	bookStore store.BookStore
	images    ImageIngester
	logger    *slog.Logger
}

var _ BookService = (*bookServiceImpl)(nil)

// NewBookService creates a new BookService.
// It returns an error if any of the required dependencies are nil.
func NewBookService(bookStore store.BookStore, ingester ImageIngester, logger *slog.Logger) (BookService, error) {
	if bookStore == nil {
		return nil, domain.NewValidationError("bookStore", "cannot be nil", domain.ErrValidation)
	}
	if ingester == nil {
		return nil, domain.NewValidationError("images", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &bookServiceImpl{
		bookStore: bookStore,
		images:    ingester,
		logger:    logger.With(slog.String("component", "book_service")),
	}, nil
}

// ListBooks implements BookService.ListBooks
func (s *bookServiceImpl) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	books, err := s.bookStore.List(ctx)
	if err != nil {
		return nil, newServiceError("book_service", "list", err)
	}
	return books, nil
}

// GetBook implements BookService.GetBook
func (s *bookServiceImpl) GetBook(ctx context.Context, bookID uuid.UUID) (*domain.Book, error) {
	book, err := s.bookStore.GetByID(ctx, bookID)
	if err != nil {
		return nil, newServiceError("book_service", "get", err)
	}
	return book, nil
}

// BestRatedBooks implements BookService.BestRatedBooks
func (s *bookServiceImpl) BestRatedBooks(ctx context.Context) ([]*domain.Book, error) {
	books, err := s.bookStore.ListBestRated(ctx, BestRatedLimit)
	if err != nil {
		return nil, newServiceError("book_service", "best_rated", err)
	}
	return books, nil
}

// CreateBook implements BookService.CreateBook
func (s *bookServiceImpl) CreateBook(
	ctx context.Context,
	ownerID uuid.UUID,
	cmd CreateBookCommand,
) (*domain.Book, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := cmd.Input.Validate(); err != nil {
		return nil, err
	}
	ownerGrade, err := ownerRating(ownerID, cmd.Ratings)
	if err != nil {
		return nil, err
	}
	if cmd.Image == nil {
		return nil, ErrImageRequired
	}

	img, err := s.images.Ingest(ctx, *cmd.Image)
	if err != nil {
		return nil, newServiceError("book_service", "create", err)
	}

	book, err := domain.NewBook(ownerID, cmd.Input, img.Name, img.BlurHash)
	if err == nil && ownerGrade != 0 {
		err = book.AddRating(ownerID, ownerGrade)
	}
	if err == nil {
		// A cancelled request must not leave a record behind.
		err = ctx.Err()
	}
	if err == nil {
		err = s.bookStore.Create(ctx, book)
	}
	if err != nil {
		s.removeImage(ctx, log, img.Name)
		log.Error("failed to create book",
			slog.String("owner_id", ownerID.String()),
			slog.String("error", redact.Error(err)))
		return nil, newServiceError("book_service", "create", err)
	}

	log.Info("book created",
		slog.String("book_id", book.ID.String()),
		slog.String("owner_id", ownerID.String()))
	return book, nil
}

// ownerRating picks the owner's own grade from client-supplied ratings.
// Entries for other users are ignored and a zero grade means unrated.
func ownerRating(ownerID uuid.UUID, ratings []domain.Rating) (int, error) {
	for _, r := range ratings {
		if r.UserID != ownerID || r.Grade == 0 {
			continue
		}
		if err := domain.ValidateGrade(r.Grade); err != nil {
			return 0, err
		}
		return r.Grade, nil
	}
	return 0, nil
}

// UpdateBook implements BookService.UpdateBook
func (s *bookServiceImpl) UpdateBook(
	ctx context.Context,
	bookID, requesterID uuid.UUID,
	cmd UpdateBookCommand,
) (*domain.Book, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("book_id", bookID.String()),
		slog.String("user_id", requesterID.String()))

	book, err := s.bookStore.GetByID(ctx, bookID)
	if err != nil {
		return nil, newServiceError("book_service", "update", err)
	}
	if err := domain.RequireOwner(book, requesterID); err != nil {
		log.Warn("update rejected for non-owner")
		return nil, err
	}
	if err := book.ApplyPatch(cmd.Patch); err != nil {
		return nil, err
	}

	previousImage := ""
	if cmd.Image != nil {
		img, err := s.images.Ingest(ctx, *cmd.Image)
		if err != nil {
			return nil, newServiceError("book_service", "update", err)
		}
		previousImage = book.ReplaceImage(img.Name, img.BlurHash)
	}

	if err := s.bookStore.Update(ctx, book); err != nil {
		if cmd.Image != nil {
			s.removeImage(ctx, log, book.ImageRef)
		}
		if !errors.Is(err, store.ErrBookNotFound) {
			log.Error("failed to update book", slog.String("error", redact.Error(err)))
		}
		return nil, newServiceError("book_service", "update", err)
	}

	if previousImage != "" {
		s.removeImage(ctx, log, previousImage)
	}

	log.Info("book updated")
	return book, nil
}

// DeleteBook implements BookService.DeleteBook
func (s *bookServiceImpl) DeleteBook(ctx context.Context, bookID, requesterID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("book_id", bookID.String()),
		slog.String("user_id", requesterID.String()))

	book, err := s.bookStore.GetByID(ctx, bookID)
	if err != nil {
		return newServiceError("book_service", "delete", err)
	}
	if err := domain.RequireOwner(book, requesterID); err != nil {
		log.Warn("delete rejected for non-owner")
		return err
	}

	if err := s.bookStore.Delete(ctx, bookID); err != nil {
		return newServiceError("book_service", "delete", err)
	}

	s.removeImage(ctx, log, book.ImageRef)
	log.Info("book deleted")
	return nil
}

// RateBook implements BookService.RateBook
func (s *bookServiceImpl) RateBook(
	ctx context.Context,
	bookID, raterID uuid.UUID,
	grade int,
) (*domain.Book, error) {
	if err := domain.ValidateGrade(grade); err != nil {
		return nil, err
	}

	book, err := s.bookStore.AddRating(ctx, bookID, raterID, grade)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateRating) {
			logger.FromContextOrDefault(ctx, s.logger).Debug("duplicate rating",
				slog.String("book_id", bookID.String()),
				slog.String("user_id", raterID.String()))
		}
		return nil, newServiceError("book_service", "rate", err)
	}
	return book, nil
}

// removeImage deletes a blob after the request's outcome is decided, so it
// ignores cancellation of ctx. Failures are logged only.
func (s *bookServiceImpl) removeImage(ctx context.Context, log *slog.Logger, name string) {
	if err := s.images.Remove(context.WithoutCancel(ctx), name); err != nil {
		log.Error("failed to remove book image",
			slog.String("image", name),
			slog.String("error", redact.Error(err)))
	}
}
