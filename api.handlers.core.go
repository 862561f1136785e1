package main

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var EmptyData = struct{}{}

// Statistics holds app stats for ops.
type Statistics struct {
	version   string
	container bool
	runtime   string
	platform  string
	called    uint64
	started   time.Time
	status    map[int]uint64
	mu        *sync.RWMutex
}

// Maintenance holds app maintenance mode infos.
type Maintenance struct {
	enabled atomic.Bool
	message string
	started time.Time
}

// APIHandler defines the API handler.
type APIHandler struct {
	logger     *zap.Logger
	config     *Config
	stats      *Statistics
	mode       *Maintenance
	clock      Clocker
	idsHandler UIDHandler
	catalog    CatalogServiceProvider
}

// NewAPIHandler provides a new instance of APIHandler.
func NewAPIHandler(logger *zap.Logger, config *Config, stats *Statistics, clock Clocker, idsHandler UIDHandler, cs CatalogServiceProvider) *APIHandler {
	m := &Maintenance{}
	m.enabled.Store(false)
	stats.status = make(map[int]uint64)
	stats.mu = &sync.RWMutex{}
	return &APIHandler{
		logger:     logger,
		config:     config,
		stats:      stats,
		mode:       m,
		clock:      clock,
		idsHandler: idsHandler,
		catalog:    cs,
	}
}

// incStatus records one more response sent with code.
func (api *APIHandler) incStatus(code int) {
	api.stats.mu.Lock()
	api.stats.status[code]++
	api.stats.mu.Unlock()
}

// writeError sends the error envelope matching err. Client errors carry
// their own text as message, server errors carry it as data.
func (api *APIHandler) writeError(w http.ResponseWriter, r *http.Request, message string, err error) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	logger := api.GetLoggerFromContext(r.Context())
	status := StatusFromError(err)

	var errResp *APIError
	if status < http.StatusInternalServerError {
		logger.Warn(message, zap.Int("response.status", status), zap.Error(err))
		errResp = NewAPIError(requestID, status, err.Error(), EmptyData)
	} else {
		logger.Error(message, zap.Int("response.status", status), zap.Error(err))
		errResp = NewAPIError(requestID, status, message, err.Error())
	}
	if werr := WriteErrorResponse(r.Context(), w, errResp); werr != nil {
		logger.Error("failed to send error response", zap.Error(werr))
	}
}

// writeData sends a successful response with data as json body.
func (api *APIHandler) writeData(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := WriteResponse(r.Context(), w, status, data); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send response", zap.Error(err))
	}
}
