// Package httpapi exposes task submission and trajectory reads over HTTP.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Gurpartap/taskloop/internal/runtimewire"
)

type handlers struct {
	runtime *runtimewire.Runtime
}

// NewRouter mounts the v1 API and, when metrics are enabled, the Prometheus
// scrape endpoint.
func NewRouter(runtime *runtimewire.Runtime) http.Handler {
	h := &handlers{runtime: runtime}

	router := gin.New()
	router.Use(gin.Recovery())
	router.HandleMethodNotAllowed = true
	router.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, errorCodeNotFound, "route not found")
	})
	router.NoMethod(func(c *gin.Context) {
		writeError(c, http.StatusMethodNotAllowed, errorCodeInvalidRequest, "method not allowed")
	})

	v1 := router.Group("/v1")
	v1.GET("/tools", h.handleToolList)
	v1.POST("/tasks", h.handleTaskRun)
	v1.GET("/trajectories", h.handleTrajectoryList)
	v1.GET("/trajectories/:task_id", h.handleTrajectoryQuery)

	if runtime.Metrics != nil {
		router.GET(runtime.Config.Telemetry.MetricsPath,
			gin.WrapH(promhttp.HandlerFor(runtime.Metrics, promhttp.HandlerOpts{})))
	}

	return router
}
