package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/ocgrimoire/grimoire-api/internal/api/shared"
	"github.com/ocgrimoire/grimoire-api/internal/media/images"
	"github.com/ocgrimoire/grimoire-api/internal/service"
	"github.com/ocgrimoire/grimoire-api/internal/service/auth"
)

// Multipart field names.
const (
	BookFormField  = "book"
	ImageFormField = "image"

	// multipartMemory is how much of a multipart body is held in memory before
	// spilling to temp files.
	multipartMemory = 1 << 20
)

// BookHandler handles the book catalogue endpoints.
type BookHandler struct {
	books service.BookService
	urls  ImageURLs
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(books service.BookService, urls ImageURLs) *BookHandler {
	if books == nil {
		panic("books cannot be nil")
	}
	return &BookHandler{books: books, urls: urls}
}

// List handles GET /api/books.
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.ListBooks(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list books")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toBookResponses(books, h.urls))
}

// BestRated handles GET /api/books/bestrating.
func (h *BookHandler) BestRated(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.BestRatedBooks(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list books")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toBookResponses(books, h.urls))
}

// Get handles GET /api/books/{id}.
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	bookID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	book, err := h.books.GetBook(r.Context(), bookID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get book")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toBookResponse(book, h.urls))
}

// Create handles POST /api/books with a multipart body holding the "book"
// JSON field and the "image" file.
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := shared.GetUserID(r.Context())
	if !ok {
		HandleAPIError(w, r, auth.ErrMissingToken, "")
		return
	}

	form, err := parseBookForm(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	defer form.close()

	var req CreateBookRequest
	if form.book == "" {
		HandleAPIError(w, r, shared.ErrMalformedBody, "")
		return
	}
	if err := shared.DecodeJSONBytes(strings.NewReader(form.book), &req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	input, ratings := req.Command()
	book, err := h.books.CreateBook(r.Context(), ownerID, service.CreateBookCommand{
		Input:   input,
		Ratings: ratings,
		Image:   form.image,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create book")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, toBookResponse(book, h.urls))
}

// Update handles PUT /api/books/{id}. The body is either a multipart form
// with a "book" JSON field and an optional "image" file, or plain JSON.
func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, bookID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateBookRequest
	var image *images.Upload

	if isMultipart(r) {
		form, err := parseBookForm(r)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		defer form.close()

		if form.book != "" {
			if err := shared.DecodeJSONBytes(strings.NewReader(form.book), &req); err != nil {
				HandleAPIError(w, r, err, "")
				return
			}
		}
		image = form.image
	} else if err := shared.DecodeJSON(r, &req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	_, err := h.books.UpdateBook(r.Context(), bookID, userID, service.UpdateBookCommand{
		Patch: req.Patch(),
		Image: image,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update book")
		return
	}
	shared.RespondWithMessage(w, r, http.StatusOK, "Book updated")
}

// Delete handles DELETE /api/books/{id}.
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, bookID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.books.DeleteBook(r.Context(), bookID, userID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete book")
		return
	}
	shared.RespondWithMessage(w, r, http.StatusOK, "Book deleted")
}

// Rate handles POST /api/books/{id}/rating.
func (h *BookHandler) Rate(w http.ResponseWriter, r *http.Request) {
	userID, bookID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req RateBookRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	book, err := h.books.RateBook(r.Context(), bookID, userID, req.Rating)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to rate book")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toBookResponse(book, h.urls))
}

// bookForm is a parsed multipart book submission.
type bookForm struct {
	book  string
	image *images.Upload
	file  io.Closer
	r     *http.Request
}

func (f *bookForm) close() {
	if f.file != nil {
		_ = f.file.Close()
	}
	if f.r.MultipartForm != nil {
		_ = f.r.MultipartForm.RemoveAll()
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// parseBookForm reads the "book" field and the optional "image" file. The
// image content type is taken from the part header and checked by the
// ingestion pipeline.
func parseBookForm(r *http.Request) (*bookForm, error) {
	if !isMultipart(r) {
		return nil, shared.ErrMalformedBody
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			return nil, images.ErrPayloadTooLarge
		}
		return nil, shared.ErrMalformedBody
	}

	form := &bookForm{r: r, book: r.FormValue(BookFormField)}

	file, header, err := r.FormFile(ImageFormField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		form.close()
		return nil, shared.ErrMalformedBody
	default:
		form.file = file
		form.image = &images.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        file,
		}
	}
	return form, nil
}
