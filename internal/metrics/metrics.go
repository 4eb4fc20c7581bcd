// Package metrics exposes pairdb counters and gauges in Prometheus format.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pairdb/internal/protocol"
	"pairdb/internal/storage"
	"pairdb/internal/types"
)

var (
	// CommandsTotal counts evaluated command lines by keyword and outcome.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairdb_commands_total",
			Help: "Total number of evaluated command lines",
		},
		[]string{"command", "status"},
	)
	// RowsStreamed counts non-final result rows written to clients.
	RowsStreamed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pairdb_rows_streamed_total",
			Help: "Total number of result rows streamed to clients",
		},
	)
	// EvaluateDuration is the time the reactor spends on one request.
	EvaluateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pairdb_evaluate_duration_seconds",
			Help:    "Reactor time per request in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"operation"},
	)
	// ConnectionsCurrent is the number of open client connections.
	ConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pairdb_connections_current",
			Help: "Current number of client connections",
		},
	)
	// ConnectionsTotal counts accepted client connections.
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pairdb_connections_total",
			Help: "Total number of accepted client connections",
		},
	)
	// ConnectionsRejected counts connections closed because of the client cap.
	ConnectionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pairdb_connections_rejected_total",
			Help: "Total number of connections rejected at the client limit",
		},
	)
)

// ObserveCommand records one evaluated command line. Its signature matches
// storage.Store.OnCommand.
func ObserveCommand(kind types.CommandKind, err error) {
	CommandsTotal.WithLabelValues(kind.String(), StatusLabel(err)).Inc()
}

// ObserveEvaluate records reactor time for one request.
func ObserveEvaluate(op types.ProtocolMethod, elapsed time.Duration) {
	EvaluateDuration.WithLabelValues(op.String()).Observe(elapsed.Seconds())
}

// StatusLabel maps a command error to a low-cardinality label value.
func StatusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, storage.ErrUnsupportedCommand):
		return "unsupported"
	case errors.Is(err, storage.ErrWrongFormat):
		return "wrong_format"
	case errors.Is(err, storage.ErrTableNotFound):
		return "table_not_found"
	case errors.Is(err, storage.ErrDuplicateKey):
		return "duplicate"
	case errors.Is(err, protocol.ErrLineTooLong):
		return "line_too_long"
	default:
		return "error"
	}
}
