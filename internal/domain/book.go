package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Rating bounds and field limits.
const (
	MinGrade = 1
	MaxGrade = 5

	MinYear = -3000
	MaxYear = 9999

	MaxTextLength = 255
)

// Rating is a single user's grade for a book. At most one rating per user
// exists on a book.
type Rating struct {
	UserID uuid.UUID `json:"userId"`
	Grade  int       `json:"grade"`
}

// Book is a catalogue entry. Only the user referenced by UserID may mutate
// or delete it. AverageRating always equals the mean of Ratings, or 0.
type Book struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"userId"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Year          int       `json:"year"`
	Genre         string    `json:"genre"`
	ImageRef      string    `json:"imageRef"`
	BlurHash      string    `json:"blurHash,omitempty"`
	Ratings       []Rating  `json:"ratings"`
	AverageRating float64   `json:"averageRating"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// BookInput carries the descriptive fields of a new book.
type BookInput struct {
	Title  string
	Author string
	Year   int
	Genre  string
}

// Validate checks the descriptive fields without requiring an image.
func (in BookInput) Validate() error {
	if err := validateText("title", strings.TrimSpace(in.Title)); err != nil {
		return err
	}
	if err := validateText("author", strings.TrimSpace(in.Author)); err != nil {
		return err
	}
	if err := validateText("genre", strings.TrimSpace(in.Genre)); err != nil {
		return err
	}
	return ValidateYear(in.Year)
}

// NewBook creates a validated Book owned by ownerID pointing at an already
// ingested image.
func NewBook(ownerID uuid.UUID, input BookInput, imageRef, blurHash string) (*Book, error) {
	now := time.Now().UTC()
	book := &Book{
		ID:        uuid.New(),
		UserID:    ownerID,
		Title:     strings.TrimSpace(input.Title),
		Author:    strings.TrimSpace(input.Author),
		Year:      input.Year,
		Genre:     strings.TrimSpace(input.Genre),
		ImageRef:  imageRef,
		BlurHash:  blurHash,
		Ratings:   []Rating{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := book.Validate(); err != nil {
		return nil, err
	}
	return book, nil
}

// Validate checks every field of the book, including the rating invariant.
func (b *Book) Validate() error {
	if b.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if b.UserID == uuid.Nil {
		return NewValidationError("userId", "cannot be empty", ErrInvalidID)
	}
	if err := validateText("title", b.Title); err != nil {
		return err
	}
	if err := validateText("author", b.Author); err != nil {
		return err
	}
	if err := validateText("genre", b.Genre); err != nil {
		return err
	}
	if err := ValidateYear(b.Year); err != nil {
		return err
	}
	if b.ImageRef == "" {
		return NewValidationError("imageRef", "cannot be empty", nil)
	}

	seen := make(map[uuid.UUID]struct{}, len(b.Ratings))
	for _, r := range b.Ratings {
		if err := ValidateGrade(r.Grade); err != nil {
			return err
		}
		if _, dup := seen[r.UserID]; dup {
			return ErrDuplicateRating
		}
		seen[r.UserID] = struct{}{}
	}
	return nil
}

// HasRated reports whether userID already rated the book.
func (b *Book) HasRated(userID uuid.UUID) bool {
	for _, r := range b.Ratings {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// AddRating appends userID's grade and recomputes AverageRating. It fails
// without mutating the book when the grade is out of range or the user
// already rated it.
func (b *Book) AddRating(userID uuid.UUID, grade int) error {
	if err := ValidateGrade(grade); err != nil {
		return err
	}
	if userID == uuid.Nil {
		return NewValidationError("userId", "cannot be empty", ErrInvalidID)
	}
	if b.HasRated(userID) {
		return ErrDuplicateRating
	}

	b.Ratings = append(b.Ratings, Rating{UserID: userID, Grade: grade})
	b.AverageRating = AverageRating(b.Ratings)
	return nil
}

// BookPatch is a partial update. Nil pointers and zero values leave the
// corresponding field untouched.
type BookPatch struct {
	Title  *string
	Author *string
	Year   *int
	Genre  *string
}

// Empty reports whether the patch would change nothing.
func (p BookPatch) Empty() bool {
	return blank(p.Title) && blank(p.Author) && blank(p.Genre) && (p.Year == nil || *p.Year == 0)
}

// ApplyPatch copies the present fields of p onto the book and validates the
// result. On error the book is left unchanged.
func (b *Book) ApplyPatch(p BookPatch) error {
	next := *b
	if !blank(p.Title) {
		next.Title = strings.TrimSpace(*p.Title)
	}
	if !blank(p.Author) {
		next.Author = strings.TrimSpace(*p.Author)
	}
	if !blank(p.Genre) {
		next.Genre = strings.TrimSpace(*p.Genre)
	}
	if p.Year != nil && *p.Year != 0 {
		next.Year = *p.Year
	}
	if err := next.Validate(); err != nil {
		return err
	}

	next.UpdatedAt = time.Now().UTC()
	*b = next
	return nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// ReplaceImage points the book at a newly ingested image and returns the
// previous reference so the caller can remove it.
func (b *Book) ReplaceImage(imageRef, blurHash string) string {
	previous := b.ImageRef
	b.ImageRef = imageRef
	b.BlurHash = blurHash
	b.UpdatedAt = time.Now().UTC()
	return previous
}

// AverageRating returns the arithmetic mean of the grades, or 0 for none.
func AverageRating(ratings []Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Grade
	}
	return float64(sum) / float64(len(ratings))
}

// RequireOwner returns ErrNotOwner unless requesterID created the book.
func RequireOwner(book *Book, requesterID uuid.UUID) error {
	if book == nil || requesterID == uuid.Nil || book.UserID != requesterID {
		return ErrNotOwner
	}
	return nil
}

// ValidateGrade checks that grade is within MinGrade..MaxGrade.
func ValidateGrade(grade int) error {
	if grade < MinGrade || grade > MaxGrade {
		return ErrInvalidGrade
	}
	return nil
}

// ValidateYear checks that year is within MinYear..MaxYear.
func ValidateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return NewValidationError("year", "is out of range", nil)
	}
	return nil
}

func validateText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(field, "cannot be empty", nil)
	}
	if utf8.RuneCountInString(value) > MaxTextLength {
		return NewValidationError(field, "is too long", nil)
	}
	return nil
}
