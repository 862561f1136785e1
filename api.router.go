package main

import (
	"net/http"
	"net/http/pprof"

	_ "github.com/jeamon/books-catalog/docs"
	"github.com/julienschmidt/httprouter"
	httpswagger "github.com/swaggo/http-swagger/v2"
)

// MiddlewareMap contains middlwares chain to
// use for public-facing and ops requests.
type MiddlewareMap struct {
	public MiddlewareFunc
	ops    MiddlewareFunc
}

// SetupRoutes injects catalog and ops related endpoints if required.
func (api *APIHandler) SetupRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.RedirectTrailingSlash = true
	router.NotFound = api.NotFound()
	api.SetupBookRoutes(router, m)
	api.SetupRatingRoutes(router, m)
	if api.config.OpsEndpointsEnable {
		api.SetupOpsRoutes(router, m)
	}
	router.GET("/swagger/*any", m.public(api.OpsHandlerWrapper(httpswagger.WrapHandler)))
	return router
}

// SetupBookRoutes injects book related the api endpoints.
func (api *APIHandler) SetupBookRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.GET("/", m.public(api.Index))
	router.GET("/status", m.public(api.Status))
	router.POST("/books", m.public(api.CreateBook))
	router.GET("/books", m.public(api.GetAllBooks))
	router.GET("/books/:id", m.public(api.GetOneBook))
	router.PUT("/books/:id", m.public(api.UpdateBook))
	router.DELETE("/books/:id", m.public(api.DeleteOneBook))
	return router
}

// SetupRatingRoutes injects ratings and ranking endpoints.
func (api *APIHandler) SetupRatingRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.GET("/ratings", m.public(api.GetAllRatings))
	router.GET("/ratings/:id", m.public(api.GetOneRating))
	router.POST("/ratings/:id/values", m.public(api.AddRatingValue))
	router.GET("/top", m.public(api.GetTopBooks))
	return router
}

// SetupOpsRoutes injects internal operations related endpoints.
func (api *APIHandler) SetupOpsRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.GET("/ops/configs", m.ops(api.GetConfigs))
	router.GET("/ops/stats", m.ops(api.GetStatistics))
	router.GET("/ops/maintenance", m.ops(api.Maintenance))
	router.GET("/ops/metrics", m.ops(api.GetMetrics))
	router.GET("/ops/debug/vars", m.ops(GetMemStats))
	router.GET("/ops/debug/gc", m.ops(api.RunGC))
	router.GET("/ops/debug/fos", m.ops(api.FreeOSMemory))

	if api.config.ProfilerEndpointsEnable {
		router.GET("/ops/debug/pprof/", m.ops(api.OpsHandlerWrapper(http.HandlerFunc(pprof.Index))))
		router.GET("/ops/debug/pprof/profile", m.ops(api.GetCPUProfile))
		router.GET("/ops/debug/pprof/trace", m.ops(api.GetTraceProfile))
		router.GET("/ops/debug/pprof/symbol", m.ops(api.GetSymbol))
		router.GET("/ops/debug/pprof/cmdline", m.ops(api.GetCmdLine))
		for _, name := range []string{"heap", "allocs", "goroutine", "threadcreate", "block", "mutex"} {
			router.GET("/ops/debug/pprof/"+name, m.ops(api.OpsHandlerWrapper(pprof.Handler(name))))
		}
	}

	return router
}
