package writer

import (
	"context"
	"fmt"

	appconfig "cryptobridge/config"
	"cryptobridge/internal/symbols"
	"cryptobridge/logger"
	"cryptobridge/models"
)

// Sink hands normalized events downstream. Close must only be called once
// every producer has stopped publishing.
type Sink interface {
	Publish(ctx context.Context, md models.MarketData) error
	Close() error
}

// New builds the sink selected by cfg.Type.
func New(cfg appconfig.SinkConfig, exchange models.ExchangeType, log *logger.Log) (Sink, error) {
	switch cfg.Type {
	case appconfig.SinkChannel, "":
		return NewChannelSink(string(exchange), cfg.Buffer, true, log), nil
	case appconfig.SinkKafka:
		return NewKafkaSink(cfg.Kafka, exchange, log)
	case appconfig.SinkRedis:
		return NewRedisStreamSink(cfg.Redis, exchange, log)
	case appconfig.SinkPostgres:
		return NewPostgresSink(cfg.Postgres, exchange, log)
	default:
		return nil, fmt.Errorf("unknown sink type '%s'", cfg.Type)
	}
}

// eventKey names the event's stream in the exchange's own pair notation.
func eventKey(exchange models.ExchangeType, md models.MarketData) string {
	pair := md.Instrument.Pair()
	return symbols.Join(string(exchange), string(pair.Base), string(pair.Quote))
}
