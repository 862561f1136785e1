package main

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// MiddlewareFunc is a custom type for ease of use.
type MiddlewareFunc func(httprouter.Handle) httprouter.Handle

// Middlewares is a custom type to represent a stack of
// middleware functions used to build a single chain.
type Middlewares []MiddlewareFunc

// MiddlewaresStacks provides the public and the ops middlewares stacks.
// Ops endpoints stay reachable while the maintenance mode is enabled.
func (api *APIHandler) MiddlewaresStacks() (*Middlewares, *Middlewares) {
	public := &Middlewares{
		api.RequestIDMiddleware,
		api.RequestsCounterMiddleware,
		api.StatsMiddleware,
		api.CoreMiddleware,
		api.PanicRecoveryMiddleware,
		CORSMiddleware,
		api.MaintenanceModeMiddleware,
	}
	ops := &Middlewares{
		api.RequestIDMiddleware,
		api.RequestsCounterMiddleware,
		api.StatsMiddleware,
		api.CoreMiddleware,
		api.PanicRecoveryMiddleware,
		CORSMiddleware,
	}
	return public, ops
}

// CoreMiddleware builds the request scoped logger, measures the duration of
// each request and logs its result.
func (api *APIHandler) CoreMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := api.clock.Now()
		logger := api.logger.With(
			zap.String("request.id", GetValueFromContext(r.Context(), ContextRequestID)),
			zap.Uint64("request.num", GetRequestNumberFromContext(r.Context())),
		)
		r = r.WithContext(context.WithValue(r.Context(), LoggerContextKey, logger))

		logger.Info(
			"request",
			zap.String("request.method", r.Method),
			zap.String("request.path", r.URL.Path),
			zap.String("request.ip", GetRequestSourceIP(r)),
			zap.String("request.agent", r.UserAgent()),
			zap.String("request.referer", r.Referer()),
		)

		next(w, r, ps)

		fields := []zap.Field{
			zap.String("request.method", r.Method),
			zap.String("request.path", r.URL.Path),
			zap.Duration("request.duration", api.clock.Now().Sub(start)),
		}
		if cw, ok := w.(*CustomResponseWriter); ok {
			fields = append(fields, zap.Int("request.status", cw.Status()), zap.Int("request.bytes", cw.Bytes()))
		}
		logger.Info("request", fields...)
	}
}

// StatsMiddleware wraps the response writer to record the status code sent
// for each request into the statistics and the prometheus metrics.
func (api *APIHandler) StatsMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := api.clock.Now()
		cw := NewCustomResponseWriter(w, GetConnFromContext(r.Context()))
		next(cw, r, ps)
		api.incStatus(cw.Status())
		RecordHTTPRequest(r.Method, api.routeLabel(r.URL.Path), cw.Status(), api.clock.Now().Sub(start))
	}
}

// routeLabel replaces book ids found in path by `:id`.
func (api *APIHandler) routeLabel(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if api.idsHandler.IsValid(s, BookIDPrefix) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

// RequestsCounterMiddleware increments the number of received requests statistics and add this
// new value to the request context to be used during logging as `request.num` field.
func (api *APIHandler) RequestsCounterMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), ContextRequestNumber, atomic.AddUint64(&api.stats.called, 1))
		r = r.WithContext(ctx)
		next(w, r, ps)
	}
}

// RequestIDMiddleware generates and add a unique id to the request context.
func (api *APIHandler) RequestIDMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		requestID := api.idsHandler.Generate(RequestIDPrefix)
		ctx := context.WithValue(r.Context(), ContextRequestID, requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)
		next(w, r, ps)
	}
}

// MaintenanceModeMiddleware answers with 503 while the maintenance mode is enabled.
func (api *APIHandler) MaintenanceModeMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if api.mode.enabled.Load() {
			api.Maintenance(w, r, httprouter.Params{httprouter.Param{Key: "status", Value: "show"}})
			return
		}
		next(w, r, ps)
	}
}

// CORSMiddleware intercepts each incoming HTTP calls then apply cors headers on it.
func CORSMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, User-Agent, Referer, Cache-Control")
		next(w, r, ps)
	}
}

// PanicRecoveryMiddleware catches any panic during the request lifecycle and produces
// an error log for further analysis. It sends a failure response to the client with 500.
func (api *APIHandler) PanicRecoveryMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		defer func() {
			if err := recover(); err != nil {
				requestID := GetValueFromContext(r.Context(), ContextRequestID)
				logger := api.GetLoggerFromContext(r.Context())
				logger.Error("panic occurred", zap.Any("error", err), zap.Stack("stack"))
				errResp := NewAPIError(requestID, http.StatusInternalServerError, "failed to process the request.", EmptyData)
				if err := WriteErrorResponse(r.Context(), w, errResp); err != nil {
					logger.Error("failed to send error response", zap.Error(err))
				}
			}
		}()
		next(w, r, ps)
	}
}

// Chain wraps a given httprouter.Handle with a list of middlewares.
// It does by starting from the last middleware from the list.
func (m *Middlewares) Chain(h httprouter.Handle) httprouter.Handle {
	if len(*m) == 0 {
		return h
	}
	lg := len(*m)
	handle := (*m)[lg-1](h)

	for i := lg - 2; i >= 0; i-- {
		handle = (*m)[i](handle)
	}

	return handle
}
