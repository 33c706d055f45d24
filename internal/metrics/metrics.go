// Package metrics exposes adapter activity as Prometheus series and mirrors
// them to CloudWatch.
//
// Registers:
//
//	cryptobridge_frames_total{exchange,tick_type}
//	cryptobridge_decode_errors_total{exchange}
//	cryptobridge_sequence_outcomes_total{exchange,outcome}
//	cryptobridge_sequence_missing_total{exchange,instrument}
//	cryptobridge_sequence_untracked_total{exchange,instrument}
//	cryptobridge_reconnects_total{exchange,reason}
//	cryptobridge_session_state{exchange}
//	cryptobridge_orders_total{exchange,outcome}
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cryptobridge/internal/sequence"
	"cryptobridge/logger"
	"cryptobridge/models"
	"cryptobridge/reader"
)

const namespace = "cryptobridge"

// Recorder implements reader.Recorder and orderentry.OrderRecorder on top of
// a Prometheus registry.
type Recorder struct {
	frames       *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	missing      *prometheus.CounterVec
	untracked    *prometheus.CounterVec
	reconnects   *prometheus.CounterVec
	state        *prometheus.GaugeVec
	orders       *prometheus.CounterVec
}

// NewRecorder registers the adapter series on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Decoded market data frames by tick type",
		}, []string{"exchange", "tick_type"}),
		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Frames that failed to decode",
		}, []string{"exchange"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_outcomes_total",
			Help:      "Sequence tracker outcomes",
		}, []string{"exchange", "outcome"}),
		missing: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_missing_total",
			Help:      "Sequence numbers recorded as missing",
		}, []string{"exchange", "instrument"}),
		untracked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_untracked_total",
			Help:      "Missing sequence numbers dropped over the per-stream tracking limit",
		}, []string{"exchange", "instrument"}),
		reconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Session teardowns followed by a reconnect",
		}, []string{"exchange", "reason"}),
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Current session state (0 disconnected, 1 connecting, 2 subscribing, 3 streaming, 4 error, 5 closed)",
		}, []string{"exchange"}),
		orders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Order submissions by outcome",
		}, []string{"exchange", "outcome"}),
	}
}

func (r *Recorder) StateChanged(exchange string, state reader.State) {
	r.state.WithLabelValues(exchange).Set(float64(state))
}

func (r *Recorder) FrameDecoded(exchange string, md models.MarketData) {
	r.frames.WithLabelValues(exchange, md.Type.String()).Inc()
}

func (r *Recorder) DecodeFailed(exchange string) {
	r.decodeErrors.WithLabelValues(exchange).Inc()
}

func (r *Recorder) SequenceObserved(exchange string, inst models.Instrument, obs sequence.Observation) {
	r.outcomes.WithLabelValues(exchange, obs.Outcome.String()).Inc()
	if obs.Outcome == sequence.Gap {
		r.missing.WithLabelValues(exchange, inst.String()).Add(float64(obs.Missing))
	}
	if obs.Untracked > 0 {
		r.untracked.WithLabelValues(exchange, inst.String()).Add(float64(obs.Untracked))
	}
}

func (r *Recorder) Reconnect(exchange string, reason string) {
	r.reconnects.WithLabelValues(exchange, reason).Inc()
}

func (r *Recorder) OrderSubmitted(exchange string, err error) {
	r.orders.WithLabelValues(exchange, OrderOutcome(err)).Inc()
}

// OrderOutcome buckets a submission result into a label value.
func OrderOutcome(err error) string {
	if err == nil {
		return "accepted"
	}
	switch {
	case errors.Is(err, models.ErrValidation):
		return "invalid"
	case errors.Is(err, models.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.Is(err, models.ErrConnection):
		return "connection"
	}
	if isRateLimited(err.Error()) {
		return "rate_limited"
	}
	return "rejected"
}

func isRateLimited(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "status 429") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests")
}

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Serve exposes gatherer on addr/metrics until ctx ends.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log *logger.Log) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithComponent("metrics").WithFields(logger.Fields{"addr": addr}).Info("serving prometheus metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
