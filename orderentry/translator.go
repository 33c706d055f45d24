package orderentry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"cryptobridge/logger"
	"cryptobridge/models"
)

// ParamClientOID carries the client-generated order id.
const ParamClientOID = "client_oid"

// Encoder maps a canonical order request to wire parameters.
type Encoder interface {
	EncodeOrder(req models.OrderRequest) map[string]string
}

// AuthClient executes authenticated order submissions.
type AuthClient interface {
	SubmitOrder(ctx context.Context, params map[string]string) (json.RawMessage, error)
}

// OrderRecorder observes submission outcomes.
type OrderRecorder interface {
	OrderSubmitted(exchange string, err error)
}

// Config tunes submission pacing.
type Config struct {
	// RequestsPerSecond of zero disables rate limiting.
	RequestsPerSecond float64
	Burst             int
	// Timeout bounds each submission. Zero uses the caller's context as is.
	Timeout time.Duration
}

// Translator validates and encodes order requests and hands them to the
// authenticated client.
type Translator struct {
	encoder Encoder
	client  AuthClient
	limiter *rate.Limiter
	timeout time.Duration
	log     *logger.Log
	newID   func() string

	exchange string
	recorder OrderRecorder
}

// Option customises a Translator.
type Option func(*Translator)

// WithRecorder reports every submission outcome for exchange to r.
func WithRecorder(exchange string, r OrderRecorder) Option {
	return func(t *Translator) {
		t.exchange = exchange
		t.recorder = r
	}
}

// NewTranslator builds a translator. A nil client leaves order entry
// unavailable, as in backtests.
func NewTranslator(encoder Encoder, client AuthClient, cfg Config, log *logger.Log, opts ...Option) *Translator {
	t := &Translator{
		encoder: encoder,
		client:  client,
		timeout: cfg.Timeout,
		log:     log,
		newID:   func() string { return uuid.NewString() },
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Submit sends req and returns the exchange response unchanged.
func (t *Translator) Submit(ctx context.Context, req models.OrderRequest) (json.RawMessage, error) {
	resp, err := t.submit(ctx, req)
	if t.recorder != nil {
		t.recorder.OrderSubmitted(t.exchange, err)
	}
	return resp, err
}

func (t *Translator) submit(ctx context.Context, req models.OrderRequest) (json.RawMessage, error) {
	if !req.HasMappedType() {
		return nil, fmt.Errorf("%w: order type %s has no exchange mapping", models.ErrValidation, req.OrderType)
	}
	if t.client == nil {
		return nil, fmt.Errorf("%w: order entry is not available in this trading mode", models.ErrUnsupported)
	}

	params := t.encoder.EncodeOrder(req)
	params[ParamClientOID] = t.newID()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	log := t.log.WithComponent("order_entry").WithFields(logger.Fields{
		"instrument": req.Instrument.String(),
		"client_oid": params[ParamClientOID],
		"order_type": req.OrderType.String(),
	})

	start := time.Now()
	resp, err := t.client.SubmitOrder(ctx, params)
	if err != nil {
		log.WithError(err).Warn("order submission failed")
		return nil, err
	}
	logger.LogPerformanceEntry(log, "order_entry", "submit_order", time.Since(start), nil)
	return resp, nil
}
