// Package metrics exposes Prometheus collectors for the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts HTTP requests by method and status class.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homestock_http_requests_total",
		Help: "Total HTTP requests processed.",
	}, []string{"method", "status"})

	// AdjustmentsTotal counts NFC quantity adjustments by outcome reason.
	AdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homestock_nfc_adjustments_total",
		Help: "Total NFC adjustment attempts by outcome.",
	}, []string{"outcome"})

	// InviteDecisionsTotal counts invitation decisions by kind.
	InviteDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homestock_invite_decisions_total",
		Help: "Total invitation decisions by kind (accept, decline, decline_all).",
	}, []string{"kind"})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
