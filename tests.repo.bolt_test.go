package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/boltdb/bolt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestBoltDB opens a bolt database in a temporary folder removed at test end.
func newTestBoltDB(t *testing.T) *bolt.DB {
	t.Helper()
	testConfig := &Config{
		BoltDB: BoltDBConfig{
			FilePath: filepath.Join(t.TempDir(), "data", "catalog.test.db"),
			Timeout:  5 * time.Second,
		},
	}
	client, err := GetBoltDBClient(testConfig)
	require.NoError(t, err, "failed in creating a test bolt store")
	t.Cleanup(func() { client.Close() })
	return client
}

func testBook(id, isbn string) Book {
	return Book{
		ID:            id,
		Title:         "Bolt test book title",
		ISBN:          isbn,
		Genre:         "Fiction",
		Authors:       "Jerome Amon",
		Publisher:     "Catalog Press",
		PublishedDate: "2023-07-02",
	}
}

// Ensure bolt store can insert a new book and fetch it.
func TestBoltBookStorage_AddAndGetOne(t *testing.T) {
	bs := NewBoltBookStorage(zap.NewNop(), newTestBoltDB(t))
	ctx := context.Background()
	book := testBook("b:0", "9780000000001")

	require.NoError(t, bs.Add(ctx, book))

	got, err := bs.GetOne(ctx, "b:0")
	assert.NoError(t, err)
	assert.Equal(t, book, got)

	found, err := bs.HasISBN(ctx, "9780000000001")
	assert.NoError(t, err)
	assert.True(t, found)

	_, err = bs.GetOne(ctx, "b:1")
	assert.Equal(t, ErrBookNotFound, err)
}

// Ensure bolt store rejects a second book with an already used isbn.
func TestBoltBookStorage_DuplicateISBN(t *testing.T) {
	bs := NewBoltBookStorage(zap.NewNop(), newTestBoltDB(t))
	ctx := context.Background()

	require.NoError(t, bs.Add(ctx, testBook("b:0", "9780000000001")))
	err := bs.Add(ctx, testBook("b:1", "9780000000001"))
	assert.ErrorIs(t, err, ErrDuplicateISBN)

	_, err = bs.GetOne(ctx, "b:1")
	assert.Equal(t, ErrBookNotFound, err)
}

// Ensure only one of many concurrent insertions with the same isbn succeeds.
func TestBoltBookStorage_ConcurrentDuplicateISBN(t *testing.T) {
	bs := NewBoltBookStorage(zap.NewNop(), newTestBoltDB(t))
	ctx := context.Background()
	n := 10

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- bs.Add(ctx, testBook("b:"+string(rune('a'+i)), "9780000000001"))
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateISBN)
	}
	assert.Equal(t, 1, succeeded)

	books, err := bs.GetAll(ctx, nil)
	assert.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestBoltBookStorage_Update(t *testing.T) {
	bs := NewBoltBookStorage(zap.NewNop(), newTestBoltDB(t))
	ctx := context.Background()
	require.NoError(t, bs.Add(ctx, testBook("b:0", "9780000000001")))
	require.NoError(t, bs.Add(ctx, testBook("b:1", "9780000000002")))

	t.Run("moves the isbn", func(t *testing.T) {
		updated := testBook("b:0", "9780000000003")
		updated.Title = "New title"
		book, err := bs.Update(ctx, "b:0", updated)
		assert.NoError(t, err)
		assert.Equal(t, "New title", book.Title)

		found, err := bs.HasISBN(ctx, "9780000000001")
		assert.NoError(t, err)
		assert.False(t, found)
		found, err = bs.HasISBN(ctx, "9780000000003")
		assert.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("keeps the same isbn", func(t *testing.T) {
		updated := testBook("b:0", "9780000000003")
		updated.Genre = "Science"
		_, err := bs.Update(ctx, "b:0", updated)
		assert.NoError(t, err)
		book, err := bs.GetOne(ctx, "b:0")
		assert.NoError(t, err)
		assert.Equal(t, "Science", book.Genre)
	})

	t.Run("isbn owned by another book", func(t *testing.T) {
		_, err := bs.Update(ctx, "b:0", testBook("b:0", "9780000000002"))
		assert.ErrorIs(t, err, ErrDuplicateISBN)
		book, err := bs.GetOne(ctx, "b:0")
		assert.NoError(t, err)
		assert.Equal(t, "9780000000003", book.ISBN)
	})

	t.Run("non existent book", func(t *testing.T) {
		_, err := bs.Update(ctx, "b:9", testBook("b:9", "9780000000009"))
		assert.Equal(t, ErrBookNotFound, err)
	})
}

func TestBoltBookStorage_GetAllWithFilter(t *testing.T) {
	bs := NewBoltBookStorage(zap.NewNop(), newTestBoltDB(t))
	ctx := context.Background()
	science := testBook("b:1", "9780000000002")
	science.Genre = "Science"
	require.NoError(t, bs.Add(ctx, testBook("b:0", "9780000000001")))
	require.NoError(t, bs.Add(ctx, science))

	books, err := bs.GetAll(ctx, map[string]string{})
	assert.NoError(t, err)
	assert.Len(t, books, 2)
	assert.Equal(t, "b:0", books[0].ID)

	books, err = bs.GetAll(ctx, map[string]string{"genre": "Science"})
	assert.NoError(t, err)
	assert.Equal(t, []Book{science}, books)

	books, err = bs.GetAll(ctx, map[string]string{"price": "10$"})
	assert.NoError(t, err)
	assert.Empty(t, books)
}

func TestBoltBookStorage_Delete(t *testing.T) {
	bs := NewBoltBookStorage(zap.NewNop(), newTestBoltDB(t))
	ctx := context.Background()
	require.NoError(t, bs.Add(ctx, testBook("b:0", "9780000000001")))

	assert.NoError(t, bs.Delete(ctx, "b:0"))
	assert.Equal(t, ErrBookNotFound, bs.Delete(ctx, "b:0"))

	// the isbn is available again.
	assert.NoError(t, bs.Add(ctx, testBook("b:1", "9780000000001")))

	assert.NoError(t, bs.DeleteAll(ctx))
	books, err := bs.GetAll(ctx, nil)
	assert.NoError(t, err)
	assert.Empty(t, books)
}

func TestBoltRatingStorage(t *testing.T) {
	rs := NewBoltRatingStorage(zap.NewNop(), newTestBoltDB(t))
	ctx := context.Background()

	t.Run("create empty aggregate", func(t *testing.T) {
		require.NoError(t, rs.Create(ctx, "b:0", "Bolt test book title"))
		rating, err := rs.GetOne(ctx, "b:0")
		assert.NoError(t, err)
		assert.Equal(t, NewRatingAggregate("b:0", "Bolt test book title"), rating)
	})

	t.Run("append values", func(t *testing.T) {
		for _, v := range []int{4, 5} {
			_, err := rs.Append(ctx, "b:0", v)
			require.NoError(t, err)
		}
		average, err := rs.Append(ctx, "b:0", 3)
		assert.NoError(t, err)
		assert.Equal(t, 4.0, average)

		average, err = rs.Append(ctx, "b:0", 5)
		assert.NoError(t, err)
		assert.Equal(t, 4.25, average)

		rating, err := rs.GetOne(ctx, "b:0")
		assert.NoError(t, err)
		assert.Equal(t, []int{4, 5, 3, 5}, rating.Values)
		assert.Equal(t, 4.25, rating.Average)
	})

	t.Run("out of range values are rejected", func(t *testing.T) {
		for _, v := range []int{0, 6} {
			_, err := rs.Append(ctx, "b:0", v)
			assert.True(t, IsValidationError(err))
		}
		rating, err := rs.GetOne(ctx, "b:0")
		assert.NoError(t, err)
		assert.Len(t, rating.Values, 4)
	})

	t.Run("non existent aggregate", func(t *testing.T) {
		_, err := rs.Append(ctx, "b:9", 3)
		assert.Equal(t, ErrRatingNotFound, err)
		_, err = rs.GetOne(ctx, "b:9")
		assert.Equal(t, ErrRatingNotFound, err)
	})

	t.Run("list and delete", func(t *testing.T) {
		require.NoError(t, rs.Create(ctx, "b:1", "Another title"))
		ratings, err := rs.GetAll(ctx)
		assert.NoError(t, err)
		require.Len(t, ratings, 2)
		assert.Equal(t, "b:0", ratings[0].ID)
		assert.Equal(t, "b:1", ratings[1].ID)

		assert.NoError(t, rs.Delete(ctx, "b:1"))
		assert.NoError(t, rs.Delete(ctx, "b:1"))
		ratings, err = rs.GetAll(ctx)
		assert.NoError(t, err)
		assert.Len(t, ratings, 1)
	})
}

// Ensure concurrent submissions for the same book are never lost.
func TestBoltRatingStorage_ConcurrentAppend(t *testing.T) {
	rs := NewBoltRatingStorage(zap.NewNop(), newTestBoltDB(t))
	ctx := context.Background()
	require.NoError(t, rs.Create(ctx, "b:0", "Bolt test book title"))

	n := 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := rs.Append(ctx, "b:0", i%5+1)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rating, err := rs.GetOne(ctx, "b:0")
	assert.NoError(t, err)
	assert.Len(t, rating.Values, n)
	assert.Equal(t, ComputeAverage(rating.Values), rating.Average)
	assert.Equal(t, 3.0, rating.Average)
}
