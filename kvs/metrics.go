package kvs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meadowlark",
		Name:      "requests_total",
		Help:      "Routed client requests by op and result.",
	}, []string{"op", "result"})

	poolOpens = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "meadowlark",
		Name:      "pool_opens_total",
		Help:      "Backend open attempts made by the connection pool.",
	})

	poolInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "meadowlark",
		Name:      "pool_invalidations_total",
		Help:      "Pooled backend handles dropped after a connection failure.",
	})
)

func observe(op string, err error, found bool) {
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case !found:
		result = "not_found"
	}
	requestsTotal.WithLabelValues(op, result).Inc()
}
