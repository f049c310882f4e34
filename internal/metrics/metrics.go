// Package metrics holds the application's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecipeOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "recipebox", Name: "recipe_operations_total", Help: "Recipe mutations by operation and outcome."},
		[]string{"op", "result"},
	)
	UploadsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "recipebox", Name: "uploads_rejected_total", Help: "Image uploads rejected by the extension allow-list."},
	)
	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "recipebox", Name: "logins_total", Help: "OAuth callbacks by result (success, failed, denied)."},
		[]string{"result"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "recipebox", Name: "rate_limit_rejected_total", Help: "Requests rejected by the login rate limiter."},
		[]string{"route"},
	)
	SweptObjects = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "recipebox", Name: "swept_objects_total", Help: "Upload objects removed by the orphan sweep, by kind."},
		[]string{"kind"},
	)
)

// RegisterCollectors registers every collector above with reg.
func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RecipeOperations)
	reg.MustRegister(UploadsRejected)
	reg.MustRegister(Logins)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(SweptObjects)
}
