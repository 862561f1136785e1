package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMetadataConfig(baseURL string) *MetadataConfig {
	return &MetadataConfig{
		BaseURL:                 baseURL,
		APIKey:                  "secret",
		Timeout:                 time.Second,
		RatePerSecond:           1000,
		Burst:                   10,
		BreakerMaxRequests:      1,
		BreakerInterval:         time.Minute,
		BreakerTimeout:          time.Minute,
		BreakerFailureThreshold: 2,
	}
}

func TestGoogleBooksClient_Lookup(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes", r.URL.Path)
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"totalItems":1,"items":[{"volumeInfo":{"title":"Huck","authors":["Mark Twain","Someone"],"publisher":"UC Press","publishedDate":"2020-04-21"}}]}`))
	}))
	defer srv.Close()

	client := NewGoogleBooksClient(zap.NewNop(), newTestMetadataConfig(srv.URL), nil)
	md, err := client.Lookup(context.Background(), "9780520343641")
	require.NoError(t, err)
	assert.Equal(t, Metadata{Authors: []string{"Mark Twain", "Someone"}, Publisher: "UC Press", PublishedDate: "2020-04-21"}, md)
	assert.Contains(t, query, "q=isbn%3A9780520343641")
	assert.Contains(t, query, "key=secret")
}

func TestGoogleBooksClient_LookupFailures(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"no volume found",
			func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"totalItems":0}`))
			},
		},
		{
			"provider error status",
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			"invalid payload",
			func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"items":`))
			},
		},
		{
			"provider too slow",
			func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(300 * time.Millisecond)
				_, _ = w.Write([]byte(`{"totalItems":0}`))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			config := newTestMetadataConfig(srv.URL)
			config.Timeout = 100 * time.Millisecond
			client := NewGoogleBooksClient(zap.NewNop(), config, nil)
			_, err := client.Lookup(context.Background(), "9780520343641")
			assert.ErrorIs(t, err, ErrMetadataUnavailable)
			assert.Equal(t, http.StatusInternalServerError, StatusFromError(err))
		})
	}
}

// Ensure the breaker fails fast once the provider failed too many times.
func TestGoogleBooksClient_BreakerOpens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewGoogleBooksClient(zap.NewNop(), newTestMetadataConfig(srv.URL), nil)
	for i := 0; i < 5; i++ {
		_, err := client.Lookup(context.Background(), "9780520343641")
		assert.ErrorIs(t, err, ErrMetadataUnavailable)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

// Ensure unknown isbns do not open the breaker for the following lookups.
func TestGoogleBooksClient_UnknownISBNKeepsBreakerClosed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("q") == "isbn:9780520343641" {
			_, _ = w.Write([]byte(`{"totalItems":1,"items":[{"volumeInfo":{"authors":["Mark Twain"],"publisher":"UC Press","publishedDate":"2020-04-21"}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"totalItems":0}`))
	}))
	defer srv.Close()

	client := NewGoogleBooksClient(zap.NewNop(), newTestMetadataConfig(srv.URL), nil)
	for i := 0; i < 5; i++ {
		_, err := client.Lookup(context.Background(), "0000000000")
		assert.ErrorIs(t, err, ErrMetadataUnavailable)
		assert.Equal(t, http.StatusInternalServerError, StatusFromError(err))
	}

	md, err := client.Lookup(context.Background(), "9780520343641")
	require.NoError(t, err)
	assert.Equal(t, []string{"Mark Twain"}, md.Authors)
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
}
