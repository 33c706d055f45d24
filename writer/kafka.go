package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	appconfig "cryptobridge/config"
	"cryptobridge/logger"
	"cryptobridge/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each event as JSON keyed by its product id, so events
// of one instrument land on one partition in order.
type KafkaSink struct {
	writer   messageWriter
	exchange models.ExchangeType
	topic    string
	log      *logger.Log
}

func NewKafkaSink(cfg appconfig.KafkaSinkConfig, exchange models.ExchangeType, log *logger.Log) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic not configured")
	}

	ks := newKafkaSink(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}, exchange, cfg.Topic, log)

	ks.log.WithComponent("kafka_sink").WithFields(logger.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Debug("kafka sink initialized")
	return ks, nil
}

func newKafkaSink(w messageWriter, exchange models.ExchangeType, topic string, log *logger.Log) *KafkaSink {
	return &KafkaSink{writer: w, exchange: exchange, topic: topic, log: log}
}

func (ks *KafkaSink) Publish(ctx context.Context, md models.MarketData) error {
	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal market data: %w", err)
	}

	key := eventKey(ks.exchange, md)
	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "exchange", Value: []byte(ks.exchange)},
			{Key: "tick_type", Value: []byte(md.Type.String())},
		},
	}
	if err := ks.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to kafka topic %s: %w", ks.topic, err)
	}

	logger.RecordChannelMessage("kafka_sink", len(data))
	ks.log.WithComponent("kafka_sink").WithFields(logger.Fields{
		"key":      key,
		"sequence": md.Sequence,
	}).Debug("event written to kafka")
	return nil
}

func (ks *KafkaSink) Close() error {
	ks.log.WithComponent("kafka_sink").Debug("stopping kafka sink")
	return ks.writer.Close()
}
