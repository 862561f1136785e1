package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/boltdb/bolt"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

var (
	BucketBooks     = []byte("books")
	BucketBooksISBN = []byte("books.isbn")
	BucketRatings   = []byte("ratings")
)

// GetBoltDBClient setup the database and the buckets then provides a ready to use client.
func GetBoltDBClient(config *Config) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(config.BoltDB.FilePath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create the database folder, %v", err)
	}
	db, err := bolt.Open(config.BoltDB.FilePath, 0o600, &bolt.Options{Timeout: config.BoltDB.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{BucketBooks, BucketBooksISBN, BucketRatings} {
			if _, errB := tx.CreateBucketIfNotExists(name); errB != nil {
				return fmt.Errorf("failed to create %s bucket: %v", name, errB)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set up buckets: %v", err)
	}
	return db, nil
}

type boltBookStorage struct {
	logger *zap.Logger
	client *bolt.DB
}

// NewBoltBookStorage provides an instance of bolt-based book storage. Bolt
// allows a single writer at a time so the isbn check and the insertion made
// inside one read-write transaction cannot interleave.
func NewBoltBookStorage(logger *zap.Logger, client *bolt.DB) BookStorage {
	return &boltBookStorage{
		logger: logger,
		client: client,
	}
}

// Add inserts a new book record into boltdb store.
func (bs *boltBookStorage) Add(_ context.Context, book Book) error {
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return err
	}
	return bs.client.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(BucketBooksISBN)
		if index.Get([]byte(book.ISBN)) != nil {
			return ErrDuplicateISBN
		}
		if err := index.Put([]byte(book.ISBN), []byte(book.ID)); err != nil {
			return err
		}
		return tx.Bucket(BucketBooks).Put([]byte(book.ID), bookBytes)
	})
}

// HasISBN tells if a book already owns the isbn.
func (bs *boltBookStorage) HasISBN(_ context.Context, isbn string) (bool, error) {
	var found bool
	err := bs.client.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(BucketBooksISBN).Get([]byte(isbn)) != nil
		return nil
	})
	return found, err
}

// GetOne retrieves a book record based on its ID from boltdb store.
func (bs *boltBookStorage) GetOne(_ context.Context, id string) (Book, error) {
	var book Book
	err := bs.client.View(func(tx *bolt.Tx) error {
		result := tx.Bucket(BucketBooks).Get([]byte(id))
		if result == nil {
			return ErrBookNotFound
		}
		return json.Unmarshal(result, &book)
	})
	return book, err
}

// GetAll retrieves in key order all books matching the filter.
func (bs *boltBookStorage) GetAll(_ context.Context, filter map[string]string) ([]Book, error) {
	books := []Book{}
	err := bs.client.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(BucketBooks).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var book Book
			if err := json.Unmarshal(v, &book); err != nil {
				return err
			}
			if book.Matches(filter) {
				books = append(books, book)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return books, nil
}

// Update replaces an existing book record and moves its isbn index entry.
func (bs *boltBookStorage) Update(_ context.Context, id string, book Book) (Book, error) {
	book.ID = id
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return book, err
	}
	err = bs.client.Update(func(tx *bolt.Tx) error {
		books, index := tx.Bucket(BucketBooks), tx.Bucket(BucketBooksISBN)
		current := books.Get([]byte(id))
		if current == nil {
			return ErrBookNotFound
		}
		if owner := index.Get([]byte(book.ISBN)); owner != nil && string(owner) != id {
			return ErrDuplicateISBN
		}
		var previous Book
		if err := json.Unmarshal(current, &previous); err != nil {
			return err
		}
		if previous.ISBN != book.ISBN {
			if err := index.Delete([]byte(previous.ISBN)); err != nil {
				return err
			}
		}
		if err := index.Put([]byte(book.ISBN), []byte(id)); err != nil {
			return err
		}
		return books.Put([]byte(id), bookBytes)
	})
	return book, err
}

// Delete removes a book record based on its ID from boltdb store.
func (bs *boltBookStorage) Delete(_ context.Context, id string) error {
	return bs.client.Update(func(tx *bolt.Tx) error {
		books := tx.Bucket(BucketBooks)
		current := books.Get([]byte(id))
		if current == nil {
			return ErrBookNotFound
		}
		var book Book
		if err := json.Unmarshal(current, &book); err != nil {
			return err
		}
		index := tx.Bucket(BucketBooksISBN)
		if owner := index.Get([]byte(book.ISBN)); string(owner) == id {
			if err := index.Delete([]byte(book.ISBN)); err != nil {
				return err
			}
		}
		return books.Delete([]byte(id))
	})
}

// DeleteAll empties the books and isbn buckets.
func (bs *boltBookStorage) DeleteAll(_ context.Context) error {
	return bs.client.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{BucketBooks, BucketBooksISBN} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

type boltRatingStorage struct {
	logger *zap.Logger
	client *bolt.DB
}

// NewBoltRatingStorage provides an instance of bolt-based ratings storage.
func NewBoltRatingStorage(logger *zap.Logger, client *bolt.DB) RatingStorage {
	return &boltRatingStorage{
		logger: logger,
		client: client,
	}
}

// Create inserts an empty aggregate for the book id.
func (br *boltRatingStorage) Create(_ context.Context, id, title string) error {
	data, err := json.Marshal(NewRatingAggregate(id, title))
	if err != nil {
		return err
	}
	return br.client.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketRatings).Put([]byte(id), data)
	})
}

// GetOne retrieves the aggregate of a book.
func (br *boltRatingStorage) GetOne(_ context.Context, id string) (RatingAggregate, error) {
	var rating RatingAggregate
	err := br.client.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(BucketRatings).Get([]byte(id))
		if data == nil {
			return ErrRatingNotFound
		}
		return json.Unmarshal(data, &rating)
	})
	return rating, err
}

// GetAll retrieves every aggregate in key order.
func (br *boltRatingStorage) GetAll(_ context.Context) ([]RatingAggregate, error) {
	ratings := []RatingAggregate{}
	err := br.client.View(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketRatings).ForEach(func(_, v []byte) error {
			var rating RatingAggregate
			if err := json.Unmarshal(v, &rating); err != nil {
				return err
			}
			ratings = append(ratings, rating)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ratings, nil
}

// Append adds value to the aggregate within a single read-write transaction.
func (br *boltRatingStorage) Append(_ context.Context, id string, value int) (float64, error) {
	if !IsValidRatingValue(value) {
		return 0, invalidValueError(strconv.Itoa(value))
	}
	var average float64
	err := br.client.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketRatings)
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrRatingNotFound
		}
		var rating RatingAggregate
		if err := json.Unmarshal(data, &rating); err != nil {
			return err
		}
		average = rating.Append(value)
		updated, err := json.Marshal(rating)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), updated)
	})
	return average, err
}

// Delete removes the aggregate. Missing aggregates are ignored.
func (br *boltRatingStorage) Delete(_ context.Context, id string) error {
	return br.client.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketRatings).Delete([]byte(id))
	})
}
