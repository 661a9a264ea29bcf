package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_sales_committed_total",
		Help: "Total number of carts committed into sales",
	})

	CommitsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_commits_failed_total",
		Help: "Total number of rejected or failed cart commits",
	}, []string{"reason"})

	CommitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_commit_latency_seconds",
		Help:    "Latency of cart commit transactions",
		Buckets: prometheus.DefBuckets,
	})

	ReturnsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_returns_processed_total",
		Help: "Total number of returns recorded",
	})

	ReturnsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_returns_failed_total",
		Help: "Total number of rejected or failed returns",
	}, []string{"reason"})

	LowStockNoticesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_low_stock_notices_total",
		Help: "Total number of low-stock notices raised by commits",
	})

	NoticesRelayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_notices_relayed_total",
		Help: "Low-stock notices moved from the event stream into notice boxes",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
