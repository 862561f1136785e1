package main

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startRedisDockerContainer(t *testing.T) (string, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container tests in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("Failed to start Dockertest: %+v", err)
	}

	err = pool.Client.Ping()
	if err != nil {
		t.Skipf("Could not connect to Docker: %+v", err)
	}

	resource, err := pool.Run("redis", "7.0.10-alpine", nil)
	if err != nil {
		t.Fatalf("Failed to start redis: %+v", err)
	}

	// build address the container is listening on
	addr := net.JoinHostPort("localhost", resource.GetPort("6379/tcp"))

	// ensure to wait for the container to be ready
	err = pool.Retry(func() error {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		return client.Ping(context.Background()).Err()
	})
	if err != nil {
		t.Fatalf("Failed to ping Redis: %+v", err)
	}

	destroyFunc := func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Failed to purge resource: %+v", err)
		}
	}

	return addr, destroyFunc
}

func TestRedisStorage(t *testing.T) {
	addr, destroyFunc := startRedisDockerContainer(t)
	defer destroyFunc()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	bs := NewRedisBookStorage(zap.NewNop(), client)
	rs := NewRedisRatingStorage(zap.NewNop(), client)
	ctx := context.Background()
	book0, book1 := testBook("b:0", "9780000000001"), testBook("b:1", "9780000000002")

	t.Run("Add Book", func(t *testing.T) {
		assert.NoError(t, bs.Add(ctx, book0))
		assert.NoError(t, bs.Add(ctx, book1))
	})

	t.Run("Add Book With Used ISBN", func(t *testing.T) {
		err := bs.Add(ctx, testBook("b:2", "9780000000001"))
		assert.ErrorIs(t, err, ErrDuplicateISBN)
		_, err = bs.GetOne(ctx, "b:2")
		assert.Equal(t, ErrBookNotFound, err)
	})

	t.Run("Get Existent Book", func(t *testing.T) {
		book, err := bs.GetOne(ctx, "b:0")
		assert.NoError(t, err)
		assert.Equal(t, book0, book)
	})

	t.Run("Get NonExistent Book", func(t *testing.T) {
		book, err := bs.GetOne(ctx, "b:9")
		assert.Equal(t, ErrBookNotFound, err)
		assert.Equal(t, Book{}, book)
	})

	t.Run("Get All Books", func(t *testing.T) {
		books, err := bs.GetAll(ctx, nil)
		assert.NoError(t, err)
		assert.Equal(t, []Book{book0, book1}, books)

		books, err = bs.GetAll(ctx, map[string]string{"ISBN": "9780000000002"})
		assert.NoError(t, err)
		assert.Equal(t, []Book{book1}, books)
	})

	t.Run("Update Book", func(t *testing.T) {
		updated := testBook("b:0", "9780000000003")
		_, err := bs.Update(ctx, "b:0", updated)
		assert.NoError(t, err)
		found, err := bs.HasISBN(ctx, "9780000000001")
		assert.NoError(t, err)
		assert.False(t, found)

		_, err = bs.Update(ctx, "b:0", testBook("b:0", "9780000000002"))
		assert.ErrorIs(t, err, ErrDuplicateISBN)

		_, err = bs.Update(ctx, "b:9", testBook("b:9", "9780000000009"))
		assert.Equal(t, ErrBookNotFound, err)
	})

	t.Run("Delete Book", func(t *testing.T) {
		assert.NoError(t, bs.Delete(ctx, "b:1"))
		assert.Equal(t, ErrBookNotFound, bs.Delete(ctx, "b:1"))
		found, err := bs.HasISBN(ctx, "9780000000002")
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Ratings", func(t *testing.T) {
		require.NoError(t, rs.Create(ctx, "b:0", book0.Title))
		for _, v := range []int{4, 5} {
			_, err := rs.Append(ctx, "b:0", v)
			require.NoError(t, err)
		}
		average, err := rs.Append(ctx, "b:0", 3)
		assert.NoError(t, err)
		assert.Equal(t, 4.0, average)

		_, err = rs.Append(ctx, "b:0", 6)
		assert.True(t, IsValidationError(err))
		_, err = rs.Append(ctx, "b:9", 3)
		assert.Equal(t, ErrRatingNotFound, err)

		ratings, err := rs.GetAll(ctx)
		assert.NoError(t, err)
		require.Len(t, ratings, 1)
		assert.Equal(t, []int{4, 5, 3}, ratings[0].Values)

		assert.NoError(t, rs.Delete(ctx, "b:0"))
		_, err = rs.GetOne(ctx, "b:0")
		assert.Equal(t, ErrRatingNotFound, err)
	})

	t.Run("Concurrent Ratings", func(t *testing.T) {
		require.NoError(t, rs.Create(ctx, "b:5", "Concurrent"))
		n := 500
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := rs.Append(ctx, "b:5", i%5+1)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()
		rating, err := rs.GetOne(ctx, "b:5")
		assert.NoError(t, err)
		assert.Len(t, rating.Values, n)
		assert.Equal(t, 3.0, rating.Average)
	})

	t.Run("Average Rounding", func(t *testing.T) {
		testCases := [][]int{
			{5, 4, 4},
			{5, 5, 4},
			{1, 2},
			{5, 5, 5, 5, 4, 4, 4, 1},
			{3, 3, 4, 4, 4, 4, 4, 4},
		}
		for i, values := range testCases {
			id := "b:r" + strconv.Itoa(i)
			require.NoError(t, rs.Create(ctx, id, "Rounding"))
			var average float64
			for _, v := range values {
				var err error
				average, err = rs.Append(ctx, id, v)
				require.NoError(t, err)
			}
			assert.Equal(t, ComputeAverage(values), average, "values %v", values)
			rating, err := rs.GetOne(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, values, rating.Values)
			assert.Equal(t, "Rounding", rating.Title)
			assert.Equal(t, ComputeAverage(values), rating.Average)
		}
	})

	t.Run("Delete All Books", func(t *testing.T) {
		assert.NoError(t, bs.DeleteAll(ctx))
		books, err := bs.GetAll(ctx, nil)
		assert.NoError(t, err)
		assert.Empty(t, books)
	})
}
