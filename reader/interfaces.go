package reader

import (
	"context"

	"cryptobridge/internal/sequence"
	"cryptobridge/models"
)

// Transport opens streaming sessions. Implementations live in the transport
// package; tests use in-memory fakes.
type Transport interface {
	Open(ctx context.Context, endpoint string) (Session, error)
}

// Session is one live streaming connection. Receive blocks until a frame
// arrives, the read deadline passes or the session is closed. Close must be
// safe to call more than once.
type Session interface {
	Send(msg []byte) error
	Receive() ([]byte, error)
	Close() error
}

// Codec translates between an exchange's wire frames and canonical events.
// SubscriptionMessages and HeartbeatMessage are fixed for the codec's lifetime.
type Codec interface {
	Decode(raw []byte) (models.MarketData, error)
	SubscriptionMessages() [][]byte
	HeartbeatMessage() []byte
}

// Sink receives canonical events one at a time, in receipt order.
type Sink interface {
	Publish(ctx context.Context, md models.MarketData) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, md models.MarketData) error

func (f SinkFunc) Publish(ctx context.Context, md models.MarketData) error {
	return f(ctx, md)
}

// Recorder observes supervisor activity for metrics.
type Recorder interface {
	StateChanged(exchange string, state State)
	FrameDecoded(exchange string, md models.MarketData)
	DecodeFailed(exchange string)
	SequenceObserved(exchange string, inst models.Instrument, obs sequence.Observation)
	Reconnect(exchange string, reason string)
}

type nopRecorder struct{}

func (nopRecorder) StateChanged(string, State) {}
func (nopRecorder) FrameDecoded(string, models.MarketData) {}
func (nopRecorder) DecodeFailed(string) {}
func (nopRecorder) SequenceObserved(string, models.Instrument, sequence.Observation) {}
func (nopRecorder) Reconnect(string, string) {}
