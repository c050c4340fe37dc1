package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the storefront collectors.
	Registry = prometheus.NewRegistry()

	apiInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "pharmacy_api",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight requests to the pharmacy API.",
		},
	)

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "pharmacy_api",
			Name:      "requests_total",
			Help:      "Total number of requests sent to the pharmacy API.",
		},
		[]string{"method", "status"},
	)

	cartMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "mutations_total",
			Help:      "Cart mutations by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
)

func init() {
	Registry.MustRegister(apiInFlight, apiRequests, cartMutations)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// APIRequestStarted returns a func that records the outcome of the request.
// status 0 means no response was received.
func APIRequestStarted(method string) func(status int) {
	apiInFlight.Inc()
	return func(status int) {
		apiInFlight.Dec()
		label := "error"
		if status > 0 {
			label = strconv.Itoa(status)
		}
		apiRequests.WithLabelValues(method, label).Inc()
	}
}

func CartMutation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	cartMutations.WithLabelValues(op, outcome).Inc()
}
