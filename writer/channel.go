package writer

import (
	"context"
	"errors"
	"sync"

	"cryptobridge/logger"
	"cryptobridge/models"
)

// ErrSinkFull is returned by a non-blocking ChannelSink whose buffer is full.
var ErrSinkFull = errors.New("sink buffer full")

type ChannelStats struct {
	Sent    int64
	Dropped int64
}

// ChannelSink delivers events to an in-process consumer.
type ChannelSink struct {
	events   chan models.MarketData
	name     string
	blocking bool

	stats      ChannelStats
	statsMutex sync.RWMutex
	closeOnce  sync.Once
	log        *logger.Log
}

// NewChannelSink creates a sink with the given buffer. A blocking sink waits
// for room; otherwise events that do not fit are dropped and counted.
func NewChannelSink(name string, buffer int, blocking bool, log *logger.Log) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	c := &ChannelSink{
		events:   make(chan models.MarketData, buffer),
		name:     name,
		blocking: blocking,
		log:      log,
	}

	log.WithComponent("channel_sink").WithFields(logger.Fields{
		"name":        name,
		"buffer_size": buffer,
		"blocking":    blocking,
	}).Info("channel sink initialized")

	return c
}

// Events is the consumer side of the sink. It is closed by Close.
func (c *ChannelSink) Events() <-chan models.MarketData {
	return c.events
}

func (c *ChannelSink) Publish(ctx context.Context, md models.MarketData) error {
	if c.blocking {
		select {
		case c.events <- md:
			c.incrementSent()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case c.events <- md:
		c.incrementSent()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		c.incrementDropped()
		return ErrSinkFull
	}
}

func (c *ChannelSink) incrementSent() {
	c.statsMutex.Lock()
	c.stats.Sent++
	c.statsMutex.Unlock()
	logger.RecordChannelMessage(c.name+"_channel", 0)
}

func (c *ChannelSink) incrementDropped() {
	c.statsMutex.Lock()
	c.stats.Dropped++
	c.statsMutex.Unlock()
}

func (c *ChannelSink) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

func (c *ChannelSink) Close() error {
	c.closeOnce.Do(func() {
		close(c.events)
		c.log.WithComponent("channel_sink").WithFields(logger.Fields{"name": c.name}).Info("channel sink closed")
	})
	return nil
}
