package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cryptobridge/config"
	"cryptobridge/exchange"
	"cryptobridge/internal/dashboard"
	"cryptobridge/internal/metrics"
	"cryptobridge/logger"
	"cryptobridge/models"
	"cryptobridge/orderentry"
	"cryptobridge/reader"
	"cryptobridge/transport"
	"cryptobridge/writer"
)

type runningAdapter struct {
	adapter *exchange.Adapter
	sink    writer.Sink
}

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	flag.Parse()

	path := config.ResolvePath(*configPath)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"path": path}).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": config.AppEnvironment(),
		"config":      path,
	}).Info("starting cryptobridge")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	registry := metrics.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	var wg sync.WaitGroup

	if cfg.Metrics.Prometheus.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.Metrics.Prometheus.Addr, registry, log); err != nil {
				log.WithError(err).Error("metrics server failed")
			}
		}()
	}

	if cfg.Metrics.CloudWatch.Enabled {
		publisher, err := metrics.NewCloudWatchPublisher(ctx, cfg.Metrics.CloudWatch, registry, log)
		if err != nil {
			log.WithError(err).Warn("CloudWatch metrics disabled")
		} else {
			if err := publisher.CreateDashboard(ctx, cfg.App.Name); err != nil {
				log.WithError(err).Warn("failed to create CloudWatch dashboard")
			}
			publisher.Start(ctx)
		}
	}

	status := dashboard.NewServer(cfg.Dashboard, log)

	adapters := make([]runningAdapter, 0, len(cfg.Exchanges))
	for _, ec := range cfg.Exchanges {
		ra, err := buildAdapter(cfg, ec, recorder, log)
		if err != nil {
			entry := log.WithError(err).WithFields(logger.Fields{"exchange": ec.Exchange, "trading_mode": ec.TradingMode})
			if errors.Is(err, models.ErrCredential) {
				entry.Error("missing or invalid exchange credentials")
			} else {
				entry.Error("failed to build exchange adapter")
			}
			os.Exit(1)
		}
		adapters = append(adapters, ra)
		status.Register(string(ra.adapter.Config().Exchange)+"/"+ra.adapter.Config().TradingMode.String(), ra.adapter)
	}

	if status != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := status.Run(ctx); err != nil {
				log.WithError(err).Error("dashboard server failed")
			}
		}()
	}

	for _, ra := range adapters {
		if cs, ok := ra.sink.(*writer.ChannelSink); ok {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				drainEvents(log, name, cs.Events())
			}(string(ra.adapter.Config().Exchange))
		}
		if err := ra.adapter.Start(ctx); err != nil {
			log.WithError(err).Error("failed to start exchange adapter")
			os.Exit(1)
		}
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	for _, ra := range adapters {
		if err := ra.adapter.Stop(); err != nil {
			log.WithError(err).Warn("exchange adapter stopped with error")
		}
		if err := ra.sink.Close(); err != nil {
			log.WithError(err).Warn("failed to close sink")
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("cryptobridge stopped")
}

func buildAdapter(cfg *config.Config, ec config.ExchangeConfig, recorder *metrics.Recorder, log *logger.Log) (runningAdapter, error) {
	exCfg, err := ec.ToExchangeConfig()
	if err != nil {
		return runningAdapter{}, err
	}

	endpoints, err := exchange.ResolveEndpoints(exCfg)
	if err != nil {
		return runningAdapter{}, err
	}

	var client orderentry.AuthClient
	if exCfg.TradingMode != models.TradingModeBacktest && endpoints.OrderEntry != "" {
		creds, err := transport.LoadCredentials(exCfg.Exchange, exCfg.TradingMode)
		if err != nil {
			return runningAdapter{}, err
		}
		rest, err := transport.NewRESTClient(endpoints.OrderEntry, creds, cfg.OrderEntry.Timeout)
		if err != nil {
			return runningAdapter{}, err
		}
		client = rest
	}

	sink, err := writer.New(cfg.Sink, exCfg.Exchange, log)
	if err != nil {
		return runningAdapter{}, err
	}

	adapter, err := exchange.New(exCfg, exchange.Deps{
		Transport: transport.NewWebsocketTransport(transport.WebsocketConfig{
			HandshakeTimeout: cfg.Supervisor.HandshakeTimeout,
			ReadTimeout:      cfg.Supervisor.ReadTimeout,
			WriteTimeout:     cfg.Supervisor.WriteTimeout,
			LocalIP:          exCfg.LocalIP,
		}),
		Client:   client,
		Sink:     sink,
		Recorder: recorder,
		Log:      log,
		Supervisor: reader.SupervisorConfig{
			BackoffMin:               cfg.Supervisor.Backoff.Min,
			BackoffMax:               cfg.Supervisor.Backoff.Max,
			BackoffFactor:            cfg.Supervisor.Backoff.Factor,
			BackoffJitter:            cfg.Supervisor.Backoff.Jitter,
			ResetSequenceOnReconnect: cfg.Supervisor.ResetSequenceOnReconnect,
			MaxMissing:               cfg.Supervisor.MaxMissing,
		},
		OrderEntry: orderentry.Config{
			RequestsPerSecond: cfg.OrderEntry.RequestsPerSecond,
			Burst:             cfg.OrderEntry.Burst,
			Timeout:           cfg.OrderEntry.Timeout,
		},
	})
	if err != nil {
		_ = sink.Close()
		return runningAdapter{}, err
	}
	return runningAdapter{adapter: adapter, sink: sink}, nil
}

// drainEvents is the in-process consumer for the channel sink; it logs a
// data flow summary every ten seconds.
func drainEvents(log *logger.Log, name string, events <-chan models.MarketData) {
	entry := log.WithComponent("event_consumer").WithFields(logger.Fields{"exchange": name})
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	count := 0
	for {
		select {
		case md, ok := <-events:
			if !ok {
				logger.LogDataFlowEntry(entry, name, "consumer", count, "market_data")
				return
			}
			count++
			entry.WithFields(logger.Fields{
				"instrument": md.Instrument.String(),
				"tick_type":  md.Type.String(),
				"sequence":   md.Sequence,
			}).Debug("market data event")
		case <-ticker.C:
			logger.LogDataFlowEntry(entry, name, "consumer", count, "market_data")
			count = 0
		}
	}
}
