package writer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "cryptobridge/config"
	"cryptobridge/logger"
	"cryptobridge/models"
)

var postgresColumns = []string{
	"time", "exchange", "instrument", "tick_type", "sequence",
	"price", "volume", "remaining", "side", "order_type", "reason",
}

const postgresSchema = `CREATE TABLE IF NOT EXISTS %s (
	time        TIMESTAMPTZ NOT NULL,
	exchange    TEXT NOT NULL,
	instrument  TEXT NOT NULL,
	tick_type   TEXT NOT NULL,
	sequence    BIGINT NOT NULL,
	price       DOUBLE PRECISION,
	volume      DOUBLE PRECISION,
	remaining   DOUBLE PRECISION,
	side        TEXT,
	order_type  TEXT,
	reason      TEXT
)`

type copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

// PostgresSink batches events and writes them with COPY. A batch is flushed
// when it reaches batchSize, on every flush interval and on Close. A batch
// whose COPY fails is retried once ahead of the next flush, then dropped.
type PostgresSink struct {
	client    copier
	exchange  models.ExchangeType
	table     string
	batchSize int
	log       *logger.Log

	mu    sync.Mutex
	batch []models.MarketData
	retry []models.MarketData

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewPostgresSink(cfg appconfig.PostgresSinkConfig, exchange models.ExchangeType, log *logger.Log) (*PostgresSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(postgresSchema, pgx.Identifier{cfg.Table}.Sanitize())); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", cfg.Table, err)
	}

	log.WithComponent("postgres_sink").WithFields(logger.Fields{
		"table":          cfg.Table,
		"batch_size":     cfg.BatchSize,
		"flush_interval": cfg.FlushInterval.String(),
	}).Debug("postgres sink initialized")

	return newPostgresSink(pool, exchange, cfg.Table, cfg.BatchSize, cfg.FlushInterval, log), nil
}

func newPostgresSink(client copier, exchange models.ExchangeType, table string, batchSize int, interval time.Duration, log *logger.Log) *PostgresSink {
	if batchSize <= 0 {
		batchSize = 1
	}
	ps := &PostgresSink{
		client:    client,
		exchange:  exchange,
		table:     table,
		batchSize: batchSize,
		log:       log,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if interval > 0 {
		go ps.flushLoop(interval)
	} else {
		close(ps.done)
	}
	return ps
}

func (ps *PostgresSink) Publish(ctx context.Context, md models.MarketData) error {
	ps.mu.Lock()
	ps.batch = append(ps.batch, md)
	if len(ps.batch) < ps.batchSize {
		ps.mu.Unlock()
		return nil
	}
	retry, batch := ps.takeLocked()
	ps.mu.Unlock()

	return ps.commit(ctx, retry, batch)
}

func (ps *PostgresSink) takeLocked() (retry, batch []models.MarketData) {
	retry, batch = ps.retry, ps.batch
	ps.retry, ps.batch = nil, nil
	return retry, batch
}

// commit writes a previously failed batch before the current one so rows
// keep their receive order.
func (ps *PostgresSink) commit(ctx context.Context, retry, batch []models.MarketData) error {
	if len(retry) > 0 {
		if err := ps.write(ctx, retry); err != nil {
			ps.log.WithComponent("postgres_sink").WithError(err).WithFields(logger.Fields{
				"rows": len(retry),
			}).Error("dropping batch after failed retry")
		}
	}
	if len(batch) == 0 {
		return nil
	}
	if err := ps.write(ctx, batch); err != nil {
		ps.mu.Lock()
		ps.retry = append(ps.retry, batch...)
		ps.mu.Unlock()
		return err
	}
	return nil
}

func (ps *PostgresSink) flushLoop(interval time.Duration) {
	defer close(ps.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ps.stop:
			return
		case <-ticker.C:
			if err := ps.flush(); err != nil {
				ps.log.WithComponent("postgres_sink").WithError(err).Warn("periodic flush failed")
			}
		}
	}
}

func (ps *PostgresSink) flush() error {
	ps.mu.Lock()
	retry, batch := ps.takeLocked()
	ps.mu.Unlock()

	if len(retry) == 0 && len(batch) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return ps.commit(ctx, retry, batch)
}

func (ps *PostgresSink) write(ctx context.Context, batch []models.MarketData) error {
	start := time.Now()
	n, err := ps.client.CopyFrom(ctx, pgx.Identifier{ps.table}, postgresColumns,
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			md := batch[i]
			return []any{
				md.Time,
				string(ps.exchange),
				eventKey(ps.exchange, md),
				md.Type.String(),
				md.Sequence,
				finiteOrNil(md.Price),
				finiteOrNil(md.Volume),
				finiteOrNil(md.Remaining),
				md.Side.String(),
				md.OrderType.String(),
				md.Reason.String(),
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy %d events into %s: %w", len(batch), ps.table, err)
	}

	logger.RecordChannelMessage("postgres_sink", int(n))
	logger.LogPerformanceEntry(ps.log.WithComponent("postgres_sink"), "postgres_sink", "copy", time.Since(start), logger.Fields{
		"rows": n,
	})
	return nil
}

// finiteOrNil maps NaN and infinities to SQL NULL.
func finiteOrNil(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// Close stops the flush loop, writes what is still buffered and closes the pool.
func (ps *PostgresSink) Close() error {
	var err error
	ps.closeOnce.Do(func() {
		close(ps.stop)
		<-ps.done
		err = ps.flush()
		ps.client.Close()
	})
	return err
}
