package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/ocgrimoire/grimoire-api/internal/domain"
	"github.com/ocgrimoire/grimoire-api/internal/media/images"
	"github.com/ocgrimoire/grimoire-api/internal/mocks"
	"github.com/ocgrimoire/grimoire-api/internal/service"
	"github.com/ocgrimoire/grimoire-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookFixture struct {
	svc    service.BookService
	books  *mocks.MockBookStore
	images *mocks.MockImageIngester
}

func newBookFixture(t *testing.T) bookFixture {
	t.Helper()
	books := mocks.NewMockBookStore()
	ingester := mocks.NewMockImageIngester()
	svc, err := service.NewBookService(books, ingester, testLogger())
	require.NoError(t, err)
	return bookFixture{svc: svc, books: books, images: ingester}
}

func upload() *images.Upload {
	return &images.Upload{Filename: "cover.png", ContentType: "image/png", Data: strings.NewReader("png")}
}

func bookInput() domain.BookInput {
	return domain.BookInput{Title: "Dune", Author: "Frank Herbert", Year: 1965, Genre: "SF"}
}

func (f bookFixture) create(t *testing.T, owner uuid.UUID) *domain.Book {
	t.Helper()
	book, err := f.svc.CreateBook(context.Background(), owner, service.CreateBookCommand{
		Input: bookInput(),
		Image: upload(),
	})
	require.NoError(t, err)
	return book
}

func TestBookService_CreateBook(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()

	t.Run("stores book with image and owner rating only", func(t *testing.T) {
		f := newBookFixture(t)
		book, err := f.svc.CreateBook(ctx, owner, service.CreateBookCommand{
			Input: bookInput(),
			Ratings: []domain.Rating{
				{UserID: uuid.New(), Grade: 1},
				{UserID: owner, Grade: 4},
			},
			Image: upload(),
		})
		require.NoError(t, err)

		assert.Equal(t, owner, book.UserID)
		assert.Equal(t, []domain.Rating{{UserID: owner, Grade: 4}}, book.Ratings)
		assert.Equal(t, 4.0, book.AverageRating)
		assert.Equal(t, []string{book.ImageRef}, f.images.Stored())

		stored, err := f.books.GetByID(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, book.Title, stored.Title)
	})

	t.Run("owner grade zero means unrated", func(t *testing.T) {
		f := newBookFixture(t)
		book, err := f.svc.CreateBook(ctx, owner, service.CreateBookCommand{
			Input:   bookInput(),
			Ratings: []domain.Rating{{UserID: owner, Grade: 0}},
			Image:   upload(),
		})
		require.NoError(t, err)
		assert.Empty(t, book.Ratings)
		assert.Zero(t, book.AverageRating)
	})

	t.Run("image required", func(t *testing.T) {
		f := newBookFixture(t)
		_, err := f.svc.CreateBook(ctx, owner, service.CreateBookCommand{Input: bookInput()})
		assert.ErrorIs(t, err, service.ErrImageRequired)
		assert.Zero(t, f.books.Len())
	})

	t.Run("invalid input writes no blob", func(t *testing.T) {
		f := newBookFixture(t)
		in := bookInput()
		in.Title = ""
		_, err := f.svc.CreateBook(ctx, owner, service.CreateBookCommand{Input: in, Image: upload()})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Empty(t, f.images.Stored())
	})

	t.Run("invalid owner grade", func(t *testing.T) {
		f := newBookFixture(t)
		_, err := f.svc.CreateBook(ctx, owner, service.CreateBookCommand{
			Input:   bookInput(),
			Ratings: []domain.Rating{{UserID: owner, Grade: 9}},
			Image:   upload(),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidGrade)
		assert.Empty(t, f.images.Stored())
	})

	t.Run("image rejection propagates", func(t *testing.T) {
		f := newBookFixture(t)
		f.images.IngestFn = func(context.Context, images.Upload) (*images.Result, error) {
			return nil, images.ErrUnsupportedType
		}
		_, err := f.svc.CreateBook(ctx, owner, service.CreateBookCommand{Input: bookInput(), Image: upload()})
		assert.ErrorIs(t, err, images.ErrUnsupportedType)
		assert.Zero(t, f.books.Len())
	})

	t.Run("store failure removes the blob", func(t *testing.T) {
		f := newBookFixture(t)
		f.books.CreateFn = func(context.Context, *domain.Book) error {
			return errors.New("insert failed")
		}
		_, err := f.svc.CreateBook(ctx, owner, service.CreateBookCommand{Input: bookInput(), Image: upload()})
		require.Error(t, err)
		assert.Empty(t, f.images.Stored())
		assert.Len(t, f.images.Removed(), 1)
	})

	t.Run("cancelled request leaves no record", func(t *testing.T) {
		f := newBookFixture(t)
		cctx, cancel := context.WithCancel(ctx)
		f.images.IngestFn = func(context.Context, images.Upload) (*images.Result, error) {
			cancel()
			return &images.Result{Name: "late.jpg"}, nil
		}
		_, err := f.svc.CreateBook(cctx, owner, service.CreateBookCommand{Input: bookInput(), Image: upload()})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, f.books.Len())
		assert.Equal(t, []string{"late.jpg"}, f.images.Removed())
	})
}

func TestBookService_UpdateBook(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	title := "Dune Messiah"

	t.Run("owner patches fields and replaces image", func(t *testing.T) {
		f := newBookFixture(t)
		book := f.create(t, owner)
		oldImage := book.ImageRef

		updated, err := f.svc.UpdateBook(ctx, book.ID, owner, service.UpdateBookCommand{
			Patch: domain.BookPatch{Title: &title},
			Image: upload(),
		})
		require.NoError(t, err)
		assert.Equal(t, title, updated.Title)
		assert.Equal(t, "Frank Herbert", updated.Author)
		assert.NotEqual(t, oldImage, updated.ImageRef)
		assert.Equal(t, []string{oldImage}, f.images.Removed())

		stored, _ := f.books.GetByID(ctx, book.ID)
		assert.Equal(t, title, stored.Title)
		assert.Equal(t, updated.ImageRef, stored.ImageRef)
	})

	t.Run("non-owner is forbidden before any blob write", func(t *testing.T) {
		f := newBookFixture(t)
		book := f.create(t, owner)

		_, err := f.svc.UpdateBook(ctx, book.ID, uuid.New(), service.UpdateBookCommand{
			Patch: domain.BookPatch{Title: &title},
			Image: upload(),
		})
		assert.ErrorIs(t, err, domain.ErrNotOwner)
		assert.Equal(t, []string{book.ImageRef}, f.images.Stored())

		stored, _ := f.books.GetByID(ctx, book.ID)
		assert.Equal(t, "Dune", stored.Title)
	})

	t.Run("missing book", func(t *testing.T) {
		f := newBookFixture(t)
		_, err := f.svc.UpdateBook(ctx, uuid.New(), owner, service.UpdateBookCommand{})
		assert.ErrorIs(t, err, store.ErrBookNotFound)
	})

	t.Run("store failure removes the new image and keeps the old", func(t *testing.T) {
		f := newBookFixture(t)
		book := f.create(t, owner)
		f.books.UpdateFn = func(context.Context, *domain.Book) error { return errors.New("update failed") }

		_, err := f.svc.UpdateBook(ctx, book.ID, owner, service.UpdateBookCommand{Image: upload()})
		require.Error(t, err)
		assert.Equal(t, []string{book.ImageRef}, f.images.Stored())
	})

	t.Run("invalid patch writes no blob", func(t *testing.T) {
		f := newBookFixture(t)
		book := f.create(t, owner)
		year := domain.MaxYear + 1

		_, err := f.svc.UpdateBook(ctx, book.ID, owner, service.UpdateBookCommand{
			Patch: domain.BookPatch{Year: &year},
			Image: upload(),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Len(t, f.images.Stored(), 1)
	})
}

func TestBookService_DeleteBook(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()

	t.Run("owner deletes book and image, second delete is not found", func(t *testing.T) {
		f := newBookFixture(t)
		book := f.create(t, owner)

		require.NoError(t, f.svc.DeleteBook(ctx, book.ID, owner))
		assert.Empty(t, f.images.Stored())

		err := f.svc.DeleteBook(ctx, book.ID, owner)
		assert.ErrorIs(t, err, store.ErrBookNotFound)
	})

	t.Run("non-owner is forbidden and record is unchanged", func(t *testing.T) {
		f := newBookFixture(t)
		book := f.create(t, owner)

		err := f.svc.DeleteBook(ctx, book.ID, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotOwner)
		assert.Equal(t, 1, f.books.Len())
		assert.Len(t, f.images.Stored(), 1)
	})

	t.Run("image removal failure is not fatal", func(t *testing.T) {
		f := newBookFixture(t)
		book := f.create(t, owner)
		f.images.RemoveFn = func(context.Context, string) error { return errors.New("disk gone") }

		require.NoError(t, f.svc.DeleteBook(ctx, book.ID, owner))
		assert.Zero(t, f.books.Len())
	})
}

func TestBookService_RateBook(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()

	t.Run("average follows ratings", func(t *testing.T) {
		f := newBookFixture(t)
		book := f.create(t, owner)

		_, err := f.svc.RateBook(ctx, book.ID, uuid.New(), 5)
		require.NoError(t, err)
		rated, err := f.svc.RateBook(ctx, book.ID, uuid.New(), 2)
		require.NoError(t, err)

		assert.Len(t, rated.Ratings, 2)
		assert.InDelta(t, 3.5, rated.AverageRating, 1e-9)
	})

	t.Run("duplicate rating leaves ratings unchanged", func(t *testing.T) {
		f := newBookFixture(t)
		book := f.create(t, owner)
		rater := uuid.New()

		_, err := f.svc.RateBook(ctx, book.ID, rater, 3)
		require.NoError(t, err)
		_, err = f.svc.RateBook(ctx, book.ID, rater, 5)
		assert.ErrorIs(t, err, domain.ErrDuplicateRating)

		stored, _ := f.books.GetByID(ctx, book.ID)
		assert.Len(t, stored.Ratings, 1)
		assert.Equal(t, 3.0, stored.AverageRating)
	})

	for _, grade := range []int{0, 6, -1} {
		t.Run(fmt.Sprintf("grade %d rejected", grade), func(t *testing.T) {
			f := newBookFixture(t)
			book := f.create(t, owner)
			_, err := f.svc.RateBook(ctx, book.ID, uuid.New(), grade)
			assert.ErrorIs(t, err, domain.ErrInvalidGrade)
		})
	}

	t.Run("concurrent raters are all retained", func(t *testing.T) {
		f := newBookFixture(t)
		book := f.create(t, owner)

		const n = 25
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(grade int) {
				defer wg.Done()
				_, err := f.svc.RateBook(ctx, book.ID, uuid.New(), grade)
				assert.NoError(t, err)
			}(i%5 + 1)
		}
		wg.Wait()

		stored, err := f.svc.GetBook(ctx, book.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Ratings, n)
		assert.InDelta(t, domain.AverageRating(stored.Ratings), stored.AverageRating, 1e-9)
	})
}

func TestBookService_BestRatedBooks(t *testing.T) {
	ctx := context.Background()
	f := newBookFixture(t)
	owner := uuid.New()

	grades := []int{2, 5, 4, 5, 1}
	for _, g := range grades {
		book := f.create(t, owner)
		_, err := f.svc.RateBook(ctx, book.ID, uuid.New(), g)
		require.NoError(t, err)
	}

	best, err := f.svc.BestRatedBooks(ctx)
	require.NoError(t, err)
	require.Len(t, best, service.BestRatedLimit)

	assert.Equal(t, 5.0, best[0].AverageRating)
	assert.Equal(t, 5.0, best[1].AverageRating)
	assert.Less(t, best[0].ID.String(), best[1].ID.String())
	assert.Equal(t, 4.0, best[2].AverageRating)

	all, err := f.svc.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(grades))
}

func TestNewBookService_NilDependencies(t *testing.T) {
	_, err := service.NewBookService(nil, mocks.NewMockImageIngester(), nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = service.NewBookService(mocks.NewMockBookStore(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
