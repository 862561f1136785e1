package main

import (
	"context"
	"math"
)

const (
	MinRatingValue = 1
	MaxRatingValue = 5
)

// RatingAggregate holds all rating values submitted for a book. Title is a
// snapshot of the book title taken at creation and is never refreshed when
// the book is updated afterwards.
type RatingAggregate struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Values  []int   `json:"values"`
	Average float64 `json:"average"`
}

// NewRatingAggregate returns an empty aggregate for the book id.
func NewRatingAggregate(id, title string) RatingAggregate {
	return RatingAggregate{ID: id, Title: title, Values: []int{}, Average: 0.0}
}

// Append adds value at the end of the values and recomputes the average.
// The caller is responsible for the range check and for serialization.
func (ra *RatingAggregate) Append(value int) float64 {
	ra.Values = append(ra.Values, value)
	ra.Average = ComputeAverage(ra.Values)
	return ra.Average
}

// ComputeAverage returns the mean of values rounded half to even at 2 decimals.
// It returns 0 for an empty list.
func ComputeAverage(values []int) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return RoundHalfEven(float64(sum)/float64(len(values)), 2)
}

// RoundHalfEven rounds x to the given number of decimals using banker's rounding.
func RoundHalfEven(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.RoundToEven(x*p) / p
}

// IsValidRatingValue tells if value is inside the accepted range.
func IsValidRatingValue(value int) bool {
	return value >= MinRatingValue && value <= MaxRatingValue
}

// RatingStorage defines possible operations on rating aggregates. Append must
// be linearizable for a given id.
type RatingStorage interface {
	Create(ctx context.Context, id, title string) error
	GetOne(ctx context.Context, id string) (RatingAggregate, error)
	GetAll(ctx context.Context) ([]RatingAggregate, error)
	Append(ctx context.Context, id string, value int) (float64, error)
	Delete(ctx context.Context, id string) error
}
