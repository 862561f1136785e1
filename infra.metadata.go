package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const GoogleBooksBaseURL = "https://www.googleapis.com/books/v1"

// errNoVolume is returned when the provider answered but knows no volume for
// the ISBN. It does not count as a breaker failure.
var errNoVolume = errors.New("no volume found")

// Metadata is the raw bibliographic information found for an ISBN.
// Empty fields mean the provider did not supply them.
type Metadata struct {
	Authors       []string
	Publisher     string
	PublishedDate string
}

// MetadataLookup fetches bibliographic information of a book by its ISBN.
type MetadataLookup interface {
	Lookup(ctx context.Context, isbn string) (Metadata, error)
}

type googleBooksResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title         string   `json:"title"`
			Authors       []string `json:"authors"`
			Publisher     string   `json:"publisher"`
			PublishedDate string   `json:"publishedDate"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// GoogleBooksClient implements MetadataLookup over the Google Books volumes API.
// Calls are rate limited and guarded by a circuit breaker.
type GoogleBooksClient struct {
	logger     *zap.Logger
	config     *MetadataConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[Metadata]
}

// NewGoogleBooksClient provides a ready to use Google Books metadata client.
func NewGoogleBooksClient(logger *zap.Logger, config *MetadataConfig, httpClient *http.Client) *GoogleBooksClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	settings := gobreaker.Settings{
		Name:        "metadata.googlebooks",
		MaxRequests: config.BreakerMaxRequests,
		Interval:    config.BreakerInterval,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNoVolume)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			MetadataBreakerState.Set(breakerStateValue(to))
			logger.Warn("metadata: circuit breaker state changed",
				zap.String("breaker.name", name),
				zap.String("breaker.from", from.String()),
				zap.String("breaker.to", to.String()),
			)
		},
	}
	return &GoogleBooksClient{
		logger:     logger,
		config:     config,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst),
		breaker:    gobreaker.NewCircuitBreaker[Metadata](settings),
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Lookup returns the first volume found for isbn. Every failure, including
// timeouts and an open breaker, is reported as ErrMetadataUnavailable.
func (gc *GoogleBooksClient) Lookup(ctx context.Context, isbn string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, gc.config.Timeout)
	defer cancel()

	if err := gc.limiter.Wait(ctx); err != nil {
		MetadataLookupsTotal.WithLabelValues("rejected").Inc()
		return Metadata{}, fmt.Errorf("%w: rate limit wait: %v", ErrMetadataUnavailable, err)
	}

	md, err := gc.breaker.Execute(func() (Metadata, error) {
		return gc.fetch(ctx, isbn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		MetadataLookupsTotal.WithLabelValues("rejected").Inc()
		return Metadata{}, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	if errors.Is(err, errNoVolume) {
		MetadataLookupsTotal.WithLabelValues("not_found").Inc()
		gc.logger.Warn("metadata: unknown isbn", zap.String("book.isbn", isbn))
		return Metadata{}, err
	}
	if err != nil {
		MetadataLookupsTotal.WithLabelValues("failure").Inc()
		gc.logger.Error("metadata: lookup failed", zap.String("book.isbn", isbn), zap.Error(err))
		return Metadata{}, err
	}
	MetadataLookupsTotal.WithLabelValues("success").Inc()
	return md, nil
}

func (gc *GoogleBooksClient) fetch(ctx context.Context, isbn string) (Metadata, error) {
	query := url.Values{}
	query.Set("q", "isbn:"+strings.TrimSpace(isbn))
	if gc.config.APIKey != "" {
		query.Set("key", gc.config.APIKey)
	}
	u := strings.TrimRight(gc.config.BaseURL, "/") + "/volumes?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := gc.httpClient.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: request failed: %v", ErrMetadataUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("%w: provider returned status %d", ErrMetadataUnavailable, resp.StatusCode)
	}

	var result googleBooksResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Metadata{}, fmt.Errorf("%w: failed to decode response: %v", ErrMetadataUnavailable, err)
	}
	if len(result.Items) == 0 {
		return Metadata{}, fmt.Errorf("%w: %w for isbn %s", ErrMetadataUnavailable, errNoVolume, isbn)
	}

	info := result.Items[0].VolumeInfo
	return Metadata{
		Authors:       info.Authors,
		Publisher:     info.Publisher,
		PublishedDate: info.PublishedDate,
	}, nil
}
