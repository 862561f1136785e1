package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	HBooks        string = "books"
	HBooksISBN    string = "books:isbn"
	SRatingsIDs   string = "ratings:ids"
	RatingsPrefix string = "ratings:"
)

// The scripts below keep the books hash and the isbn index hash consistent.
// Redis runs each script atomically so uniqueness holds under concurrency.
var (
	addBookScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[2], ARGV[2], ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
return 1
`)

	updateBookScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], ARGV[1])
if not current then
  return -1
end
local owner = redis.call('HGET', KEYS[2], ARGV[2])
if owner and owner ~= ARGV[1] then
  return 0
end
local previous = cjson.decode(current)['ISBN']
if previous and previous ~= ARGV[2] then
  redis.call('HDEL', KEYS[2], previous)
end
redis.call('HSET', KEYS[2], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
return 1
`)

	deleteBookScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], ARGV[1])
if not current then
  return 0
end
local isbn = cjson.decode(current)['ISBN']
if isbn and redis.call('HGET', KEYS[2], isbn) == ARGV[1] then
  redis.call('HDEL', KEYS[2], isbn)
end
redis.call('HDEL', KEYS[1], ARGV[1])
return 1
`)

	// appendRatingScript computes the average the way ComputeAverage does:
	// mean times 100 rounded half to even, then divided by 100. It returns
	// the stored document, or nil when the aggregate does not exist.
	appendRatingScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  return false
end
local rating = cjson.decode(current)
local values = rating['values']
if type(values) ~= 'table' then
  values = {}
end
values[#values + 1] = tonumber(ARGV[1])
local sum = 0
for _, v in ipairs(values) do
  sum = sum + v
end
local x = sum / #values * 100
local r = math.floor(x)
local diff = x - r
if diff > 0.5 or (diff == 0.5 and r % 2 == 1) then
  r = r + 1
end
rating['values'] = values
rating['average'] = r / 100
local updated = cjson.encode(rating)
redis.call('SET', KEYS[1], updated)
return updated
`)
)

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  config.Redis.PoolTimeout,
		Password:     config.Redis.Password,
		Username:     config.Redis.Username,
		DB:           config.Redis.DatabaseIndex,
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

type redisBookStorage struct {
	logger *zap.Logger
	client *redis.Client
}

// NewRedisBookStorage provides an instance of redis-based book storage.
func NewRedisBookStorage(logger *zap.Logger, client *redis.Client) BookStorage {
	return &redisBookStorage{
		logger: logger,
		client: client,
	}
}

// Add inserts a new book record if its ISBN is not yet registered.
func (rs *redisBookStorage) Add(ctx context.Context, book Book) error {
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return err
	}
	added, err := addBookScript.Run(ctx, rs.client, []string{HBooks, HBooksISBN}, book.ID, book.ISBN, bookBytes).Int()
	if err != nil {
		return err
	}
	if added == 0 {
		return ErrDuplicateISBN
	}
	return nil
}

// HasISBN tells if a book already owns the isbn.
func (rs *redisBookStorage) HasISBN(ctx context.Context, isbn string) (bool, error) {
	return rs.client.HExists(ctx, HBooksISBN, isbn).Result()
}

// GetOne retrieves a book record based on its ID.
func (rs *redisBookStorage) GetOne(ctx context.Context, id string) (Book, error) {
	var book Book
	bookJSONString, err := rs.client.HGet(ctx, HBooks, id).Result()
	if err == redis.Nil {
		return book, ErrBookNotFound
	}
	if err != nil {
		return book, err
	}
	err = json.Unmarshal([]byte(bookJSONString), &book)
	return book, err
}

// GetAll retrieves all books matching the filter, ordered by id.
func (rs *redisBookStorage) GetAll(ctx context.Context, filter map[string]string) ([]Book, error) {
	values, err := rs.client.HVals(ctx, HBooks).Result()
	if err != nil {
		return nil, err
	}
	books := []Book{}
	for _, bookJSONString := range values {
		var book Book
		if err = json.Unmarshal([]byte(bookJSONString), &book); err != nil {
			return nil, err
		}
		if book.Matches(filter) {
			books = append(books, book)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

// Update replaces an existing book record and moves its isbn index entry.
func (rs *redisBookStorage) Update(ctx context.Context, id string, book Book) (Book, error) {
	book.ID = id
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return book, err
	}
	result, err := updateBookScript.Run(ctx, rs.client, []string{HBooks, HBooksISBN}, id, book.ISBN, bookBytes).Int()
	if err != nil {
		return book, err
	}
	switch result {
	case -1:
		return book, ErrBookNotFound
	case 0:
		return book, ErrDuplicateISBN
	}
	return book, nil
}

// Delete removes a book record and frees its isbn.
func (rs *redisBookStorage) Delete(ctx context.Context, id string) error {
	deleted, err := deleteBookScript.Run(ctx, rs.client, []string{HBooks, HBooksISBN}, id).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrBookNotFound
	}
	return nil
}

// DeleteAll removes all books and the isbn index.
func (rs *redisBookStorage) DeleteAll(ctx context.Context) error {
	return rs.client.Del(ctx, HBooks, HBooksISBN).Err()
}

type redisRatingStorage struct {
	logger *zap.Logger
	client *redis.Client
}

// NewRedisRatingStorage provides an instance of redis-based ratings storage. Each
// aggregate lives under its own key as a JSON document.
func NewRedisRatingStorage(logger *zap.Logger, client *redis.Client) RatingStorage {
	return &redisRatingStorage{
		logger: logger,
		client: client,
	}
}

func ratingKey(id string) string {
	return RatingsPrefix + id
}

// Create inserts an empty aggregate for the book id.
func (rs *redisRatingStorage) Create(ctx context.Context, id, title string) error {
	data, err := json.Marshal(NewRatingAggregate(id, title))
	if err != nil {
		return err
	}
	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, ratingKey(id), data, 0)
		pipe.SAdd(ctx, SRatingsIDs, id)
		return nil
	})
	return err
}

// GetOne retrieves the aggregate of a book.
func (rs *redisRatingStorage) GetOne(ctx context.Context, id string) (RatingAggregate, error) {
	var rating RatingAggregate
	data, err := rs.client.Get(ctx, ratingKey(id)).Bytes()
	if err == redis.Nil {
		return rating, ErrRatingNotFound
	}
	if err != nil {
		return rating, err
	}
	err = json.Unmarshal(data, &rating)
	return rating, err
}

// GetAll retrieves every aggregate ordered by id.
func (rs *redisRatingStorage) GetAll(ctx context.Context) ([]RatingAggregate, error) {
	ids, err := rs.client.SMembers(ctx, SRatingsIDs).Result()
	if err != nil {
		return nil, err
	}
	ratings := []RatingAggregate{}
	if len(ids) == 0 {
		return ratings, nil
	}
	sort.Strings(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ratingKey(id)
	}
	values, err := rs.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// deleted between SMEMBERS and MGET.
			continue
		}
		var rating RatingAggregate
		if err = json.Unmarshal([]byte(s), &rating); err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	return ratings, nil
}

// Append adds value to the aggregate and stores the recomputed average in a
// single script run, so concurrent appends on the same id never conflict.
func (rs *redisRatingStorage) Append(ctx context.Context, id string, value int) (float64, error) {
	if !IsValidRatingValue(value) {
		return 0, invalidValueError(strconv.Itoa(value))
	}
	data, err := appendRatingScript.Run(ctx, rs.client, []string{ratingKey(id)}, value).Text()
	if err == redis.Nil {
		return 0, ErrRatingNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("rating: failed to append value to %s: %w", id, err)
	}
	var rating RatingAggregate
	if err = json.Unmarshal([]byte(data), &rating); err != nil {
		return 0, err
	}
	rs.logger.Debug("rating: value appended", zap.String("book.id", id), zap.Int("rating.count", len(rating.Values)))
	return rating.Average, nil
}

// Delete removes the aggregate. Missing aggregates are ignored.
func (rs *redisRatingStorage) Delete(ctx context.Context, id string) error {
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ratingKey(id))
		pipe.SRem(ctx, SRatingsIDs, id)
		return nil
	})
	return err
}
