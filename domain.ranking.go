package main

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

const (
	// MinRankingValues is the number of values an aggregate needs to be ranked.
	MinRankingValues = 3
	// TopRankingCutoff is the rank whose average is used as inclusion threshold.
	TopRankingCutoff = 3
)

// TopBook is the public view of a ranked aggregate.
type TopBook struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Average float64 `json:"average"`
}

// RankingEngine computes the top rated books from the rating storage.
type RankingEngine struct {
	logger  *zap.Logger
	storage RatingStorage
}

// NewRankingEngine provides an instance of RankingEngine.
func NewRankingEngine(logger *zap.Logger, storage RatingStorage) *RankingEngine {
	return &RankingEngine{logger: logger, storage: storage}
}

// TopRated loads every aggregate and returns the top rated selection.
func (re *RankingEngine) TopRated(ctx context.Context) ([]TopBook, error) {
	ratings, err := re.storage.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ranking: failed to load ratings: %w", err)
	}
	top := SelectTopRated(ratings)
	re.logger.Debug("ranking: top rated computed",
		zap.Int("ratings.count", len(ratings)),
		zap.Int("top.count", len(top)),
	)
	return top, nil
}

// SelectTopRated keeps aggregates with at least MinRankingValues values, sorts
// them by average descending (ties by id ascending) and, when more than
// TopRankingCutoff remain, returns every aggregate whose average is at least
// the average found at the cutoff rank. Ties at the cutoff are all included.
func SelectTopRated(ratings []RatingAggregate) []TopBook {
	eligible := make([]RatingAggregate, 0, len(ratings))
	for _, r := range ratings {
		if len(r.Values) >= MinRankingValues {
			eligible = append(eligible, r)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Average != eligible[j].Average {
			return eligible[i].Average > eligible[j].Average
		}
		return eligible[i].ID < eligible[j].ID
	})

	if len(eligible) > TopRankingCutoff {
		threshold := eligible[TopRankingCutoff-1].Average
		n := TopRankingCutoff
		for n < len(eligible) && eligible[n].Average >= threshold {
			n++
		}
		eligible = eligible[:n]
	}

	top := make([]TopBook, 0, len(eligible))
	for _, r := range eligible {
		top = append(top, TopBook{ID: r.ID, Title: r.Title, Average: r.Average})
	}
	return top
}
