package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// AbortedHeader is set by the timeout path once a response was already sent.
const AbortedHeader = "X-CATALOG-ABORTED"

var ErrNoConnection = errors.New("http: no underlying connection")

// CustomResponseWriter is a wrapper for http.ResponseWriter. It is
// used to record response details like status code and body size.
// The underlying network connection is tracked for dynamic read/write
// deadline setup.
type CustomResponseWriter struct {
	http.ResponseWriter
	conn  net.Conn
	code  int
	bytes int
	wrote bool
}

// NewCustomResponseWriter provides CustomResponseWriter with 200 as status code.
func NewCustomResponseWriter(rw http.ResponseWriter, c net.Conn) *CustomResponseWriter {
	return &CustomResponseWriter{
		ResponseWriter: rw,
		conn:           c,
		code:           http.StatusOK,
	}
}

// Header implements http.Header interface.
func (cw *CustomResponseWriter) Header() http.Header {
	return cw.ResponseWriter.Header()
}

// WriteHeader implements http.WriteHeader interface.
func (cw *CustomResponseWriter) WriteHeader(code int) {
	if cw.Header().Get(AbortedHeader) != "" {
		cw.code = code
		cw.wrote = true
		return
	}

	if !cw.wrote {
		cw.code = code
		cw.wrote = true
		cw.ResponseWriter.WriteHeader(code)
	}
}

// Write implements http.Write interface. If the aborted header was set
// the final handler should not send any response to client.
func (cw *CustomResponseWriter) Write(bytes []byte) (int, error) {
	if cw.Header().Get(AbortedHeader) != "" {
		return 0, fmt.Errorf("handler: request timed out or cancelled")
	}

	if !cw.wrote {
		cw.WriteHeader(cw.code)
	}

	n, err := cw.ResponseWriter.Write(bytes)
	cw.bytes += n
	return n, err
}

// Status returns the written status code.
func (cw *CustomResponseWriter) Status() int {
	return cw.code
}

// Bytes returns bytes written as response body.
func (cw *CustomResponseWriter) Bytes() int {
	return cw.bytes
}

// Unwrap returns native response writer and used by
// the http.ResponseController during its operation.
func (cw *CustomResponseWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

// SetWriteDeadline rewrites the underlying connection write deadline.
// This is called by http.ResponseController SetWriteDeadline method.
func (cw *CustomResponseWriter) SetWriteDeadline(t time.Time) error {
	if cw.conn == nil {
		return ErrNoConnection
	}
	return cw.conn.SetWriteDeadline(t)
}

// SetReadDeadline rewrites the underlying connection read deadline.
// This is called by http.ResponseController SetReadDeadline method.
func (cw *CustomResponseWriter) SetReadDeadline(t time.Time) error {
	if cw.conn == nil {
		return ErrNoConnection
	}
	return cw.conn.SetReadDeadline(t)
}

// APIError is the data model sent when an error occurred during request processing.
type APIError struct {
	RequestID string      `json:"requestid"`
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
}

func NewAPIError(requestid string, status int, message string, data interface{}) *APIError {
	return &APIError{
		RequestID: requestid,
		Status:    status,
		Message:   message,
		Data:      data,
	}
}

// MessageResponse is sent back on successful deletion or update of a book.
type MessageResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// IDResponse is sent back on successful creation of a book.
type IDResponse struct {
	ID string `json:"id"`
}

// AverageResponse is sent back on successful rating submission.
type AverageResponse struct {
	Average float64 `json:"average"`
}

// StatusResponse is the data model sent when status endpoint is called.
type StatusResponse struct {
	RequestID string `json:"requestid"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// checkContext sets the status code to 499 in case client cancelled the request,
// and to 504 if the request processing timed out. In both cases the timeout
// handler already answered the client.
func checkContext(ctx context.Context, w http.ResponseWriter) error {
	if err := ctx.Err(); err != nil {
		w.Header().Set(AbortedHeader, "true")
		if errors.Is(err, context.DeadlineExceeded) {
			w.WriteHeader(http.StatusGatewayTimeout)
		} else {
			w.WriteHeader(499)
		}
		return err
	}
	return nil
}

// WriteErrorResponse is used to send error response to client.
func WriteErrorResponse(ctx context.Context, w http.ResponseWriter, errResp *APIError) error {
	if err := checkContext(ctx, w); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(errResp.Status)
	return json.NewEncoder(w).Encode(errResp)
}

// WriteResponse is used to send successful api response data to client.
func WriteResponse(ctx context.Context, w http.ResponseWriter, status int, data interface{}) error {
	if err := checkContext(ctx, w); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}
