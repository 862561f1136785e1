package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CatalogServiceProvider describes the catalog workflows exposed to the api handlers.
type CatalogServiceProvider interface {
	CreateBook(ctx context.Context, in BookInput) (string, error)
	GetBook(ctx context.Context, id string) (Book, error)
	ListBooks(ctx context.Context, filter map[string]string) ([]Book, error)
	UpdateBook(ctx context.Context, id string, in BookInput) (Book, error)
	DeleteBook(ctx context.Context, id string) error
	GetRating(ctx context.Context, id string) (RatingAggregate, error)
	ListRatings(ctx context.Context) ([]RatingAggregate, error)
	SubmitRating(ctx context.Context, id string, value int) (float64, error)
	TopBooks(ctx context.Context) ([]TopBook, error)
}

// CatalogService keeps the books and their rating aggregates consistent.
type CatalogService struct {
	logger   *zap.Logger
	ids      UIDHandler
	books    BookStorage
	ratings  RatingStorage
	metadata MetadataLookup
	ranking  *RankingEngine
}

func NewCatalogService(logger *zap.Logger, ids UIDHandler, books BookStorage, ratings RatingStorage, metadata MetadataLookup) *CatalogService {
	return &CatalogService{
		logger:   logger,
		ids:      ids,
		books:    books,
		ratings:  ratings,
		metadata: metadata,
		ranking:  NewRankingEngine(logger, ratings),
	}
}

// CreateBook validates the input, fetches the derived fields from the metadata
// provider then stores the book and its empty rating aggregate under the same id.
// Nothing is stored when any step fails.
func (cs *CatalogService) CreateBook(ctx context.Context, in BookInput) (string, error) {
	if err := ValidateCreateBookInput(in); err != nil {
		return "", err
	}

	isbn := in["ISBN"]
	exists, err := cs.books.HasISBN(ctx, isbn)
	if err != nil {
		return "", fmt.Errorf("service: failed to check isbn: %w", err)
	}
	if exists {
		return "", ErrDuplicateISBN
	}

	md, err := cs.metadata.Lookup(ctx, isbn)
	if err != nil {
		if !errors.Is(err, ErrMetadataUnavailable) {
			err = fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
		}
		return "", err
	}

	book := Book{
		ID:            cs.ids.Generate(BookIDPrefix),
		Title:         in["title"],
		ISBN:          isbn,
		Genre:         in["genre"],
		Authors:       JoinAuthors(md.Authors),
		Publisher:     orMissing(md.Publisher),
		PublishedDate: NormalizePublishedDate(md.PublishedDate),
	}

	if err = cs.books.Add(ctx, book); err != nil {
		return "", err
	}

	if err = cs.ratings.Create(ctx, book.ID, book.Title); err != nil {
		if derr := cs.books.Delete(ctx, book.ID); derr != nil {
			cs.logger.Error("service: failed to rollback book creation", zap.String("book.id", book.ID), zap.Error(derr))
		}
		return "", fmt.Errorf("service: failed to create rating entry: %w", err)
	}

	cs.logger.Info("service: book created", zap.String("book.id", book.ID), zap.String("book.isbn", book.ISBN))
	return book.ID, nil
}

func (cs *CatalogService) GetBook(ctx context.Context, id string) (Book, error) {
	return cs.books.GetOne(ctx, id)
}

func (cs *CatalogService) ListBooks(ctx context.Context, filter map[string]string) ([]Book, error) {
	return cs.books.GetAll(ctx, filter)
}

// UpdateBook replaces the whole book record. The rating aggregate keeps its
// original title snapshot.
func (cs *CatalogService) UpdateBook(ctx context.Context, id string, in BookInput) (Book, error) {
	if _, err := cs.books.GetOne(ctx, id); err != nil {
		return Book{}, err
	}
	if err := ValidateUpdateBookInput(in); err != nil {
		return Book{}, err
	}
	book := Book{
		ID:            id,
		Title:         in["title"],
		ISBN:          in["ISBN"],
		Genre:         in["genre"],
		Authors:       in["authors"],
		Publisher:     in["publisher"],
		PublishedDate: in["publishedDate"],
	}
	return cs.books.Update(ctx, id, book)
}

// DeleteBook removes the book then its rating aggregate. The ratings are left
// untouched when the book does not exist.
func (cs *CatalogService) DeleteBook(ctx context.Context, id string) error {
	if err := cs.books.Delete(ctx, id); err != nil {
		return err
	}
	if err := cs.ratings.Delete(ctx, id); err != nil {
		cs.logger.Error("service: failed to delete rating entry", zap.String("book.id", id), zap.Error(err))
	}
	return nil
}

func (cs *CatalogService) GetRating(ctx context.Context, id string) (RatingAggregate, error) {
	return cs.ratings.GetOne(ctx, id)
}

func (cs *CatalogService) ListRatings(ctx context.Context) ([]RatingAggregate, error) {
	return cs.ratings.GetAll(ctx)
}

// SubmitRating appends a value to the book aggregate and returns the new average.
func (cs *CatalogService) SubmitRating(ctx context.Context, id string, value int) (float64, error) {
	average, err := cs.ratings.Append(ctx, id, value)
	switch {
	case err == nil:
		RatingSubmissionsTotal.WithLabelValues("accepted").Inc()
	case IsValidationError(err), errors.Is(err, ErrRatingNotFound):
		RatingSubmissionsTotal.WithLabelValues("rejected").Inc()
	default:
		RatingSubmissionsTotal.WithLabelValues("failed").Inc()
	}
	return average, err
}

func (cs *CatalogService) TopBooks(ctx context.Context) ([]TopBook, error) {
	return cs.ranking.TopRated(ctx)
}

// JoinAuthors builds the authors field: `missing` for no author, the single
// name, or every name separated by ` and ` (`A and B and C`).
func JoinAuthors(authors []string) string {
	if len(authors) == 0 {
		return MissingValue
	}
	return strings.Join(authors, " and ")
}

// NormalizePublishedDate accepts `YYYY-MM-DD` and `YYYY` dates only. Month
// and day may omit their leading zero.
func NormalizePublishedDate(date string) string {
	for _, layout := range []string{"2006-1-2", "2006"} {
		if _, err := time.Parse(layout, date); err == nil {
			return date
		}
	}
	return MissingValue
}

func orMissing(s string) string {
	if s == "" {
		return MissingValue
	}
	return s
}
