package main

import (
	"context"
	"time"
)

// This file contains mocks definitions needed to perform unit tests.

type MockBookStorage struct {
	AddFunc       func(ctx context.Context, book Book) error
	HasISBNFunc   func(ctx context.Context, isbn string) (bool, error)
	GetOneFunc    func(ctx context.Context, id string) (Book, error)
	GetAllFunc    func(ctx context.Context, filter map[string]string) ([]Book, error)
	UpdateFunc    func(ctx context.Context, id string, book Book) (Book, error)
	DeleteFunc    func(ctx context.Context, id string) error
	DeleteAllFunc func(ctx context.Context) error
}

// Add mocks the behavior of book creation by the repository.
func (m *MockBookStorage) Add(ctx context.Context, book Book) error {
	return m.AddFunc(ctx, book)
}

// HasISBN mocks the isbn existence check of the repository.
func (m *MockBookStorage) HasISBN(ctx context.Context, isbn string) (bool, error) {
	return m.HasISBNFunc(ctx, isbn)
}

// GetOne mocks the behavior of retrieving a book by the repository.
func (m *MockBookStorage) GetOne(ctx context.Context, id string) (Book, error) {
	return m.GetOneFunc(ctx, id)
}

// GetAll mocks the behavior of retrieving all books by the repository.
func (m *MockBookStorage) GetAll(ctx context.Context, filter map[string]string) ([]Book, error) {
	return m.GetAllFunc(ctx, filter)
}

// Update mocks the behavior of updating a book by the repository.
func (m *MockBookStorage) Update(ctx context.Context, id string, book Book) (Book, error) {
	return m.UpdateFunc(ctx, id, book)
}

// Delete mocks the behavior of deleting a book by the repository.
func (m *MockBookStorage) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}

// DeleteAll mocks the behavior of deleting all books by the repository.
func (m *MockBookStorage) DeleteAll(ctx context.Context) error {
	return m.DeleteAllFunc(ctx)
}

type MockRatingStorage struct {
	CreateFunc func(ctx context.Context, id, title string) error
	GetOneFunc func(ctx context.Context, id string) (RatingAggregate, error)
	GetAllFunc func(ctx context.Context) ([]RatingAggregate, error)
	AppendFunc func(ctx context.Context, id string, value int) (float64, error)
	DeleteFunc func(ctx context.Context, id string) error
}

func (m *MockRatingStorage) Create(ctx context.Context, id, title string) error {
	return m.CreateFunc(ctx, id, title)
}

func (m *MockRatingStorage) GetOne(ctx context.Context, id string) (RatingAggregate, error) {
	return m.GetOneFunc(ctx, id)
}

func (m *MockRatingStorage) GetAll(ctx context.Context) ([]RatingAggregate, error) {
	return m.GetAllFunc(ctx)
}

func (m *MockRatingStorage) Append(ctx context.Context, id string, value int) (float64, error) {
	return m.AppendFunc(ctx, id, value)
}

func (m *MockRatingStorage) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}

// MockMetadataLookup implements a fake MetadataLookup.
type MockMetadataLookup struct {
	LookupFunc func(ctx context.Context, isbn string) (Metadata, error)
}

func (m *MockMetadataLookup) Lookup(ctx context.Context, isbn string) (Metadata, error) {
	return m.LookupFunc(ctx, isbn)
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock. This
// equals to `Sun, 02 Jul 2023 00:00:00 UTC` in time.RFC1123 format.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDHandler.
type MockUIDHandler struct {
	MockedUID string
	Valid     bool
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string, valid bool) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id, Valid: valid}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}

// IsValid mocks IsValid behavior by providing configured status.
func (muid *MockUIDHandler) IsValid(_, _ string) bool {
	return muid.Valid
}
