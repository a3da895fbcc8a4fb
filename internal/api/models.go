package api

import (
	"strings"

	"github.com/google/uuid"
	"github.com/ocgrimoire/grimoire-api/internal/domain"
)

// Common request/response structures

// SignupRequest defines the payload for the signup endpoint.
type SignupRequest struct {
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginResponse defines the successful response for the login endpoint.
type LoginResponse struct {
	UserID uuid.UUID `json:"userId"`
	Token  string    `json:"token"`
}

// RatingPayload is a rating as sent inside a book payload.
type RatingPayload struct {
	UserID uuid.UUID `json:"userId"`
	Grade  int       `json:"grade"`
}

// CreateBookRequest is the JSON carried in the "book" form field on create.
// A client-supplied averageRating is accepted and ignored.
type CreateBookRequest struct {
	Title   string          `json:"title"   validate:"required,max=255"`
	Author  string          `json:"author"  validate:"required,max=255"`
	Year    int             `json:"year"    validate:"required,min=-3000,max=9999"`
	Genre   string          `json:"genre"   validate:"required,max=255"`
	Ratings []RatingPayload `json:"ratings" validate:"max=1000"`
}

// Command converts the request into domain input and client ratings.
func (r CreateBookRequest) Command() (domain.BookInput, []domain.Rating) {
	ratings := make([]domain.Rating, 0, len(r.Ratings))
	for _, rp := range r.Ratings {
		ratings = append(ratings, domain.Rating{UserID: rp.UserID, Grade: rp.Grade})
	}
	return domain.BookInput{
		Title:  strings.TrimSpace(r.Title),
		Author: strings.TrimSpace(r.Author),
		Year:   r.Year,
		Genre:  strings.TrimSpace(r.Genre),
	}, ratings
}

// UpdateBookRequest is a partial update. Absent or zero fields are left
// unchanged.
type UpdateBookRequest struct {
	Title  *string `json:"title"  validate:"omitempty,max=255"`
	Author *string `json:"author" validate:"omitempty,max=255"`
	Year   *int    `json:"year"   validate:"omitempty,min=-3000,max=9999"`
	Genre  *string `json:"genre"  validate:"omitempty,max=255"`
}

// Patch converts the request into a domain patch.
func (r UpdateBookRequest) Patch() domain.BookPatch {
	return domain.BookPatch{
		Title:  r.Title,
		Author: r.Author,
		Year:   r.Year,
		Genre:  r.Genre,
	}
}

// RateBookRequest defines the payload for the rating endpoint. The rater is
// always the authenticated user.
type RateBookRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

// RatingResponse is one rating in a book response.
type RatingResponse struct {
	UserID uuid.UUID `json:"userId"`
	Grade  int       `json:"grade"`
}

// BookResponse is the public representation of a book.
type BookResponse struct {
	ID            uuid.UUID        `json:"id"`
	UserID        uuid.UUID        `json:"userId"`
	Title         string           `json:"title"`
	Author        string           `json:"author"`
	Year          int              `json:"year"`
	Genre         string           `json:"genre"`
	ImageURL      string           `json:"imageUrl"`
	BlurHash      string           `json:"blurHash,omitempty"`
	Ratings       []RatingResponse `json:"ratings"`
	AverageRating float64          `json:"averageRating"`
}

// ImageURLs builds public image URLs from stored image names.
type ImageURLs struct {
	BaseURL      string
	PublicPrefix string
}

// URL returns base_url/public_prefix/name.
func (u ImageURLs) URL(name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimRight(u.BaseURL, "/") + "/" + strings.Trim(u.PublicPrefix, "/") + "/" + name
}

func toBookResponse(book *domain.Book, urls ImageURLs) BookResponse {
	ratings := make([]RatingResponse, 0, len(book.Ratings))
	for _, r := range book.Ratings {
		ratings = append(ratings, RatingResponse{UserID: r.UserID, Grade: r.Grade})
	}
	return BookResponse{
		ID:            book.ID,
		UserID:        book.UserID,
		Title:         book.Title,
		Author:        book.Author,
		Year:          book.Year,
		Genre:         book.Genre,
		ImageURL:      urls.URL(book.ImageRef),
		BlurHash:      book.BlurHash,
		Ratings:       ratings,
		AverageRating: book.AverageRating,
	}
}

func toBookResponses(books []*domain.Book, urls ImageURLs) []BookResponse {
	out := make([]BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, toBookResponse(b, urls))
	}
	return out
}
