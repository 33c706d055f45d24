package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"

	"cryptobridge/internal/sequence"
	"cryptobridge/logger"
	"cryptobridge/models"
)

const (
	defaultBackoffMin    = 500 * time.Millisecond
	defaultBackoffMax    = 30 * time.Second
	defaultBackoffFactor = 2
)

// SupervisorConfig holds the static settings of one streaming session owner.
type SupervisorConfig struct {
	// Name labels logs and metrics, usually the exchange identity.
	Name     string
	Endpoint string

	BackoffMin    time.Duration
	BackoffMax    time.Duration
	BackoffFactor float64
	BackoffJitter bool

	// ResetSequenceOnReconnect clears gap tracking whenever a new session
	// starts. When false, gaps from earlier sessions stay visible.
	ResetSequenceOnReconnect bool

	// MaxMissing caps each instrument's missing set; zero uses the tracker default.
	MaxMissing int
}

// Supervisor owns the streaming session lifecycle: connect, subscribe,
// enable heartbeats, receive, and reconnect on any failure. One supervisor
// runs one sequential receive loop; its tracker and session are never touched
// by another goroutine except through the read-only diagnostics.
type Supervisor struct {
	cfg       SupervisorConfig
	transport Transport
	codec     Codec
	sink      Sink
	log       *logger.Log
	recorder  Recorder
	tracker   *sequence.Tracker
	backoff   *backoff.Backoff

	state   atomic.Int32
	mu      sync.Mutex
	running bool
}

// Option customises a Supervisor.
type Option func(*Supervisor)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Supervisor) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithTracker replaces the sequence tracker, mainly for tests.
func WithTracker(t *sequence.Tracker) Option {
	return func(s *Supervisor) {
		if t != nil {
			s.tracker = t
		}
	}
}

// NewSupervisor wires a supervisor around its capabilities.
func NewSupervisor(cfg SupervisorConfig, transport Transport, codec Codec, sink Sink, log *logger.Log, opts ...Option) *Supervisor {
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = defaultBackoffMin
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaultBackoffMax
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = cfg.BackoffMin
	}
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = defaultBackoffFactor
	}

	s := &Supervisor{
		cfg:       cfg,
		transport: transport,
		codec:     codec,
		sink:      sink,
		log:       log,
		recorder:  nopRecorder{},
		tracker:   sequence.NewTracker(sequence.WithMaxMissing(cfg.MaxMissing)),
		backoff: &backoff.Backoff{
			Min:    cfg.BackoffMin,
			Max:    cfg.BackoffMax,
			Factor: cfg.BackoffFactor,
			Jitter: cfg.BackoffJitter,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Diagnostics returns a copy of the sequence tracker state.
func (s *Supervisor) Diagnostics() sequence.Snapshot {
	return s.tracker.Snapshot()
}

func (s *Supervisor) component() string {
	return s.cfg.Name + "_supervisor"
}

func (s *Supervisor) setState(state State) {
	prev := State(s.state.Swap(int32(state)))
	if prev == state {
		return
	}
	s.recorder.StateChanged(s.cfg.Name, state)
	s.log.WithComponent(s.component()).WithFields(logger.Fields{
		"from": prev.String(),
		"to":   state.String(),
	}).Debug("session state changed")
}

// Run streams until ctx is cancelled. Every receive, decode or send failure
// tears the session down and starts a new one after a bounded exponential
// backoff. Cancellation ends the loop cleanly and returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("%s supervisor already running", s.cfg.Name)
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	log := s.log.WithComponent(s.component()).WithFields(logger.Fields{"endpoint": s.cfg.Endpoint})
	first := true

	for {
		if ctx.Err() != nil {
			s.setState(StateClosed)
			log.Info("supervisor stopped")
			return nil
		}

		if first || s.cfg.ResetSequenceOnReconnect {
			s.tracker.Reset()
		}
		first = false

		err := s.runSession(ctx)
		if ctx.Err() != nil {
			s.setState(StateClosed)
			log.Info("supervisor stopped")
			return nil
		}

		s.setState(StateError)
		reason := classify(err)
		s.recorder.Reconnect(s.cfg.Name, reason)
		delay := s.backoff.Duration()
		log.WithError(err).WithFields(logger.Fields{
			"reason": reason,
			"delay":  delay.String(),
		}).Warn("session failed, reconnecting")

		s.setState(StateDisconnected)
		if waitForReconnect(ctx, delay) {
			s.setState(StateClosed)
			log.Info("supervisor stopped")
			return nil
		}
	}
}

// runSession drives one session from CONNECTING to its first failure.
func (s *Supervisor) runSession(ctx context.Context) error {
	log := s.log.WithComponent(s.component())

	s.setState(StateConnecting)
	sess, err := s.transport.Open(ctx, s.cfg.Endpoint)
	if err != nil {
		return connectionError("open session", err)
	}
	// A blocking Receive only returns once the session is closed, so
	// cancellation closes it from outside the loop.
	stop := context.AfterFunc(ctx, func() { _ = sess.Close() })
	defer func() {
		stop()
		_ = sess.Close()
	}()
	log.WithFields(logger.Fields{"endpoint": s.cfg.Endpoint}).Info("connected")

	s.setState(StateSubscribing)
	for _, msg := range s.codec.SubscriptionMessages() {
		if err := sess.Send(msg); err != nil {
			return connectionError("send subscription", err)
		}
		log.WithFields(logger.Fields{"message": string(msg)}).Info("sent subscription")
	}
	hb := s.codec.HeartbeatMessage()
	if err := sess.Send(hb); err != nil {
		return connectionError("send heartbeat", err)
	}
	log.WithFields(logger.Fields{"message": string(hb)}).Info("sent heartbeat")

	s.setState(StateStreaming)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw, err := sess.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return connectionError("receive", err)
		}

		md, err := s.codec.Decode(raw)
		if err != nil {
			s.recorder.DecodeFailed(s.cfg.Name)
			return err
		}
		s.backoff.Reset()
		s.recorder.FrameDecoded(s.cfg.Name, md)

		// Heartbeats repeat the last delivered sequence number.
		if md.Type != models.TickHeartbeat {
			s.observe(md)
		}

		if err := s.sink.Publish(ctx, md); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Warn("sink rejected event")
		}
	}
}

func (s *Supervisor) observe(md models.MarketData) {
	obs := s.tracker.Observe(md.Instrument, md.Sequence)
	s.recorder.SequenceObserved(s.cfg.Name, md.Instrument, obs)

	switch obs.Outcome {
	case sequence.Gap:
		s.log.WithComponent(s.component()).WithFields(logger.Fields{
			"instrument": md.Instrument.String(),
			"expected":   obs.Expected,
			"sequence":   md.Sequence,
			"missing":    obs.Missing,
		}).Warn("sequence gap detected")
		if obs.Untracked > 0 {
			s.log.WithComponent(s.component()).WithFields(logger.Fields{
				"instrument": md.Instrument.String(),
				"untracked":  obs.Untracked,
			}).Warn("oversized gap, oldest missing sequences no longer tracked")
		}
	case sequence.Anomaly:
		s.log.WithComponent(s.component()).WithFields(logger.Fields{
			"instrument": md.Instrument.String(),
			"expected":   obs.Expected,
			"sequence":   md.Sequence,
		}).Warn("duplicate or out-of-order sequence")
	case sequence.LateFill:
		s.log.WithComponent(s.component()).WithFields(logger.Fields{
			"instrument": md.Instrument.String(),
			"sequence":   md.Sequence,
		}).Debug("late sequence filled gap")
	}
}

func connectionError(op string, err error) error {
	if errors.Is(err, models.ErrConnection) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", models.ErrConnection, op, err)
}

func classify(err error) string {
	switch {
	case errors.Is(err, models.ErrDecode), errors.Is(err, models.ErrParse):
		return "decode"
	case errors.Is(err, models.ErrConnection):
		return "connection"
	default:
		return "unknown"
	}
}

// waitForReconnect sleeps for delay and reports whether ctx ended first.
func waitForReconnect(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
