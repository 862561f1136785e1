package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

var (
	ErrBookNotFound        = errors.New("book not found")
	ErrRatingNotFound      = errors.New("rating not found")
	ErrDuplicateISBN       = errors.New("a book with this ISBN number already exists")
	ErrUnsupportedMedia    = errors.New("unsupported media type")
	ErrMetadataUnavailable = errors.New("unable to fetch book metadata")
)

type (
	ContextKey        string
	missingFieldError string
	invalidFieldError string
	invalidGenreError string
	invalidValueError string
)

const (
	BookIDPrefix         string     = "b"
	RequestIDPrefix      string     = "r"
	ContextRequestID     ContextKey = "request.id"
	ContextRequestNumber ContextKey = "request.number"
	ConnContextKey       ContextKey = "http-conn"
)

// validationError is implemented by all errors caused by invalid client input.
type validationError interface {
	error
	validation()
}

func (m missingFieldError) Error() string {
	return string(m) + " is required"
}

func (m missingFieldError) validation() {}

func (f invalidFieldError) Error() string {
	return string(f) + " must be a string"
}

func (f invalidFieldError) validation() {}

func (g invalidGenreError) Error() string {
	return string(g) + " is not a valid genre"
}

func (g invalidGenreError) validation() {}

func (v invalidValueError) Error() string {
	return fmt.Sprintf("rating value %s must be an integer between %d and %d", string(v), MinRatingValue, MaxRatingValue)
}

func (v invalidValueError) validation() {}

// IsValidationError tells if err (or any error it wraps) is a client input error.
func IsValidationError(err error) bool {
	var v validationError
	return errors.As(err, &v)
}

// StatusFromError maps a service error to its HTTP status code.
func StatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrRatingNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrDuplicateISBN), IsValidationError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// GetValueFromContext returns the value of a given key in the context
// if this key is not available, it returns an empty string.
func GetValueFromContext(ctx context.Context, contextKey ContextKey) string {
	if val, ok := ctx.Value(contextKey).(string); ok {
		return val
	}
	return ""
}

// GetRequestNumberFromContext returns the request number set in
// the context. if not previously set then it returns 0.
func GetRequestNumberFromContext(ctx context.Context) uint64 {
	if val, ok := ctx.Value(ContextRequestNumber).(uint64); ok {
		return val
	}
	return 0
}

// BookInput holds the book fields found in a create or update request body,
// keyed by their json name. A key is present only if the client sent it.
type BookInput map[string]string

// Has reports whether the client provided the field.
func (in BookInput) Has(field string) bool {
	_, ok := in[field]
	return ok
}

var (
	createBookRequiredFields = []string{"title", "ISBN", "genre"}
	updateBookRequiredFields = []string{"title", "ISBN", "genre", "authors", "publisher", "publishedDate"}
)

// DecodeBookRequestBody is a helper function to read the content of a book creation or update request.
// An absent, unparsable or empty object body is reported as ErrUnsupportedMedia.
func DecodeBookRequestBody(r *http.Request) (BookInput, error) {
	fields, err := decodeJSONObject(r)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty request body: %w", ErrUnsupportedMedia)
	}
	in := BookInput{}
	for _, name := range updateBookRequiredFields {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, invalidFieldError(name)
		}
		in[name] = value
	}
	return in, nil
}

// DecodeRatingRequestBody is a helper function to read the rating value of a submission request.
func DecodeRatingRequestBody(r *http.Request) (int, error) {
	fields, err := decodeJSONObject(r)
	if err != nil {
		return 0, missingFieldError("value")
	}
	raw, ok := fields["value"]
	if !ok {
		return 0, missingFieldError("value")
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, invalidValueError(string(raw))
	}
	if value != math.Trunc(value) || !IsValidRatingValue(int(value)) {
		return 0, invalidValueError(string(raw))
	}
	return int(value), nil
}

func decodeJSONObject(r *http.Request) (map[string]json.RawMessage, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, fmt.Errorf("missing request body: %w", ErrUnsupportedMedia)
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "json") {
		return nil, fmt.Errorf("content type %q: %w", ct, ErrUnsupportedMedia)
	}
	fields := map[string]json.RawMessage{}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&fields); err != nil {
		return nil, fmt.Errorf("invalid request body: %v: %w", err, ErrUnsupportedMedia)
	}
	return fields, nil
}

// ValidateCreateBookInput is a helper function to check if the content of a book creation request is valid.
func ValidateCreateBookInput(in BookInput) error {
	for _, name := range createBookRequiredFields {
		if !in.Has(name) {
			return missingFieldError(name)
		}
	}
	return ValidateGenre(in["genre"])
}

// ValidateUpdateBookInput is a helper function to check if the content of a book update request is valid.
func ValidateUpdateBookInput(in BookInput) error {
	for _, name := range updateBookRequiredFields {
		if !in.Has(name) {
			return missingFieldError(name)
		}
	}
	return ValidateGenre(in["genre"])
}

// ValidateGenre returns an error if genre is outside the closed set.
func ValidateGenre(genre string) error {
	if !IsValidGenre(genre) {
		return invalidGenreError(genre)
	}
	return nil
}

// GetRequestSourceIP helps find the source IP of the caller.
func GetRequestSourceIP(r *http.Request) string {
	// Get IP from the X-REAL-IP header
	ip := r.Header.Get("X-REAL-IP")
	netIP := net.ParseIP(ip)
	if netIP != nil {
		return ip
	}

	// Get IP from X-FORWARDED-FOR header
	ips := r.Header.Get("X-FORWARDED-FOR")
	for _, ip := range strings.Split(ips, ",") {
		ip = strings.TrimSpace(ip)
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	// Get IP from RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	if net.ParseIP(ip) != nil {
		return ip
	}
	return ""
}

// IsAppRunningInDocker checks the existence of the .dockerenv
// file at the root directory and returns a boolean result.
func IsAppRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

// SaveConnInContext is the hook used by the server under ConnContext.
// It sets the underlying connection into the request context for later
// use by ReadDeadline or WriteDeadline method on *CustomResponseWriter.
func SaveConnInContext(ctx context.Context, c net.Conn) context.Context {
	return context.WithValue(ctx, ConnContextKey, c)
}

// GetConnFromContext returns the connection saved into the context or nil.
func GetConnFromContext(ctx context.Context) net.Conn {
	c, _ := ctx.Value(ConnContextKey).(net.Conn)
	return c
}
