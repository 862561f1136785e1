package main

import "context"

// MissingValue is stored for any derived book field the metadata provider did not supply.
const MissingValue = "missing"

// ValidGenres is the closed set of accepted genres.
var ValidGenres = []string{
	"Fiction",
	"Children",
	"Biography",
	"Science",
	"Science Fiction",
	"Fantasy",
	"Other",
}

// Book represents a book entity.
type Book struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	ISBN          string `json:"ISBN"`
	Genre         string `json:"genre"`
	Authors       string `json:"authors"`
	Publisher     string `json:"publisher"`
	PublishedDate string `json:"publishedDate"`
}

// Field returns the value of the field identified by its json name.
// The boolean is false when the name does not designate a book field.
func (b Book) Field(name string) (string, bool) {
	switch name {
	case "id":
		return b.ID, true
	case "title":
		return b.Title, true
	case "ISBN":
		return b.ISBN, true
	case "genre":
		return b.Genre, true
	case "authors":
		return b.Authors, true
	case "publisher":
		return b.Publisher, true
	case "publishedDate":
		return b.PublishedDate, true
	}
	return "", false
}

// Matches reports whether every filter entry equals the book field of the same name.
// An unknown field name never matches. An empty filter matches any book.
func (b Book) Matches(filter map[string]string) bool {
	for name, want := range filter {
		got, ok := b.Field(name)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// IsValidGenre tells if genre belongs to the closed genres set.
func IsValidGenre(genre string) bool {
	for _, g := range ValidGenres {
		if g == genre {
			return true
		}
	}
	return false
}

// BookStorage defines possible operations on book entity. Implementations
// must enforce ISBN uniqueness themselves on Add and Update.
type BookStorage interface {
	Add(ctx context.Context, book Book) error
	HasISBN(ctx context.Context, isbn string) (bool, error)
	GetOne(ctx context.Context, id string) (Book, error)
	GetAll(ctx context.Context, filter map[string]string) ([]Book, error)
	Update(ctx context.Context, id string, book Book) (Book, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}
