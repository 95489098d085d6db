package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/janelia-flyem/dvidproxy/dvid"
)

// Layer metrics, labeled by the layer name given at construction.
var (
	mRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dvidproxy",
		Subsystem: "layer",
		Name:      "requests_total",
		Help:      "Number of get, has and put operations handled by a layer, by result",
	}, []string{"layer", "op", "result"})

	mFills = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dvidproxy",
		Subsystem: "layer",
		Name:      "fills_total",
		Help:      "Number of cache-fill puts attempted by a layer, by result",
	}, []string{"layer", "result"})
)

// result returns the metric label for an operation outcome.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case dvid.IsNotFound(err):
		return "not_found"
	case dvid.IsNotSupported(err):
		return "not_supported"
	case dvid.IsInvalidRequest(err):
		return "invalid"
	default:
		return "error"
	}
}

func hasResult(found bool, err error) string {
	if err != nil {
		return result(err)
	}
	if found {
		return "true"
	}
	return "false"
}
