// Package metrics exposes the service's Prometheus instrumentation and a
// bounded asynchronous recorder for non-critical counter updates.
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TokensIssued counts emitted tokens by kind
	// (identity, session, grant, access, bypass).
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualauth_tokens_issued_total",
		Help: "Signed tokens issued, by token kind.",
	}, []string{"kind"})

	// JWKSFetches counts outbound JWKS discovery attempts by outcome
	// (ok, error, parse_error).
	JWKSFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualauth_jwks_fetch_total",
		Help: "Outbound JWKS fetches against foreign issuers, by outcome.",
	}, []string{"outcome"})

	// SessionOps counts session registry operations by kind
	// (new, refresh, child, delete).
	SessionOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualauth_session_ops_total",
		Help: "Session lifecycle operations, by kind.",
	}, []string{"op"})

	// EventsDropped counts recorder events discarded due to backpressure.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dualauth_metric_events_dropped_total",
		Help: "Metric events dropped because the recorder buffer was full.",
	})
)

// Handler serves the Prometheus exposition format.
func Handler() http.Handler { return promhttp.Handler() }

// Recorder applies counter updates from a bounded queue on a background
// goroutine. Metrics are non-critical: when the queue is full the event is
// dropped and accounted in EventsDropped instead of blocking a request.
type Recorder struct {
	ch     chan func()
	done   chan struct{}
	logger *slog.Logger
}

// NewRecorder creates a Recorder with the given buffer size.
func NewRecorder(buffer int, logger *slog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		ch:     make(chan func(), buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Start launches the flusher goroutine.
func (r *Recorder) Start() {
	go func() {
		defer close(r.done)
		for fn := range r.ch {
			fn()
		}
	}()
}

// Stop drains outstanding events and waits for the flusher to exit.
func (r *Recorder) Stop() {
	close(r.ch)
	<-r.done
}

// Record enqueues a counter update. Never blocks.
func (r *Recorder) Record(fn func()) {
	select {
	case r.ch <- fn:
	default:
		EventsDropped.Inc()
	}
}
