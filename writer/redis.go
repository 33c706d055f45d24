package writer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	appconfig "cryptobridge/config"
	"cryptobridge/logger"
	"cryptobridge/models"
)

type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// RedisStreamSink appends events to a capped Redis stream.
type RedisStreamSink struct {
	client   streamClient
	exchange models.ExchangeType
	stream   string
	maxLen   int64
	log      *logger.Log
}

func NewRedisStreamSink(cfg appconfig.RedisSinkConfig, exchange models.ExchangeType, log *logger.Log) (*RedisStreamSink, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address not configured")
	}
	if cfg.Stream == "" {
		return nil, fmt.Errorf("redis stream not configured")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	log.WithComponent("redis_sink").WithFields(logger.Fields{
		"addr":    cfg.Addr,
		"stream":  cfg.Stream,
		"max_len": cfg.MaxLen,
	}).Debug("redis sink initialized")

	return newRedisStreamSink(client, exchange, cfg.Stream, cfg.MaxLen, log), nil
}

func newRedisStreamSink(client streamClient, exchange models.ExchangeType, stream string, maxLen int64, log *logger.Log) *RedisStreamSink {
	return &RedisStreamSink{client: client, exchange: exchange, stream: stream, maxLen: maxLen, log: log}
}

func (rs *RedisStreamSink) Publish(ctx context.Context, md models.MarketData) error {
	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal market data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: rs.stream,
		Values: map[string]interface{}{
			"exchange":   string(rs.exchange),
			"instrument": eventKey(rs.exchange, md),
			"tick_type":  md.Type.String(),
			"sequence":   md.Sequence,
			"payload":    string(data),
		},
	}
	if rs.maxLen > 0 {
		args.MaxLen = rs.maxLen
		args.Approx = true
	}

	id, err := rs.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("xadd to stream %s: %w", rs.stream, err)
	}

	logger.RecordChannelMessage("redis_sink", len(data))
	rs.log.WithComponent("redis_sink").WithFields(logger.Fields{
		"id":       id,
		"sequence": md.Sequence,
	}).Debug("event appended to redis stream")
	return nil
}

func (rs *RedisStreamSink) Close() error {
	return rs.client.Close()
}
