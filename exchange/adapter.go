package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"cryptobridge/internal/sequence"
	"cryptobridge/logger"
	"cryptobridge/models"
	"cryptobridge/orderentry"
	"cryptobridge/reader"
	"cryptobridge/reader/coinbase"
)

// Deps are the capabilities an Adapter is built from.
type Deps struct {
	Transport reader.Transport
	// Client submits orders. Nil disables order entry.
	Client   orderentry.AuthClient
	Sink     reader.Sink
	Recorder reader.Recorder
	Log      *logger.Log

	// Supervisor settings; Name and Endpoint are filled by the adapter.
	Supervisor reader.SupervisorConfig
	OrderEntry orderentry.Config
}

// Adapter is one exchange connection: a market data supervisor and an order
// entry translator sharing one wire codec.
type Adapter struct {
	cfg        models.ExchangeConfig
	endpoints  Endpoints
	codec      *coinbase.Codec
	supervisor *reader.Supervisor
	translator *orderentry.Translator
	log        *logger.Log

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	runErr  error
}

// New binds an adapter to cfg. Subscription and heartbeat messages are fixed
// from here on.
func New(cfg models.ExchangeConfig, deps Deps) (*Adapter, error) {
	if deps.Transport == nil {
		return nil, errors.New("exchange adapter requires a transport")
	}
	if deps.Sink == nil {
		return nil, errors.New("exchange adapter requires a sink")
	}
	if deps.Log == nil {
		deps.Log = logger.GetLogger()
	}
	if len(cfg.Instruments) == 0 {
		return nil, fmt.Errorf("%w: no instruments configured for %s", models.ErrValidation, cfg.Exchange)
	}

	endpoints, err := ResolveEndpoints(cfg)
	if err != nil {
		return nil, err
	}

	codec := coinbase.NewCodec(cfg.Instruments)

	supCfg := deps.Supervisor
	supCfg.Name = string(cfg.Exchange)
	supCfg.Endpoint = endpoints.MarketData

	var (
		opts      []reader.Option
		orderOpts []orderentry.Option
	)
	if deps.Recorder != nil {
		opts = append(opts, reader.WithRecorder(deps.Recorder))
		if orec, ok := deps.Recorder.(orderentry.OrderRecorder); ok {
			orderOpts = append(orderOpts, orderentry.WithRecorder(string(cfg.Exchange), orec))
		}
	}

	return &Adapter{
		cfg:        cfg,
		endpoints:  endpoints,
		codec:      codec,
		supervisor: reader.NewSupervisor(supCfg, deps.Transport, codec, deps.Sink, deps.Log, opts...),
		translator: orderentry.NewTranslator(codec, deps.Client, deps.OrderEntry, deps.Log, orderOpts...),
		log:        deps.Log,
	}, nil
}

// Config returns the configuration the adapter was bound to.
func (a *Adapter) Config() models.ExchangeConfig {
	return a.cfg
}

// Endpoints returns the resolved URLs.
func (a *Adapter) Endpoints() Endpoints {
	return a.endpoints
}

// Run streams market data until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context) error {
	return a.supervisor.Run(ctx)
}

// Start runs the market data loop in the background.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("%s adapter already running", a.cfg.Exchange)
	}
	a.running = true

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	log := a.log.WithComponent(a.component())
	log.WithFields(logger.Fields{
		"trading_mode": a.cfg.TradingMode.String(),
		"instruments":  len(a.cfg.Instruments),
		"market_data":  a.endpoints.MarketData,
	}).Info("starting exchange adapter")

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.supervisor.Run(runCtx); err != nil {
			log.WithError(err).Error("market data loop exited")
			a.mu.Lock()
			a.runErr = err
			a.mu.Unlock()
		}
	}()
	return nil
}

// Stop cancels the market data loop and waits for it to exit.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	cancel := a.cancel
	a.running = false
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.log.WithComponent(a.component()).Info("stopping exchange adapter")
	a.wg.Wait()
	a.log.WithComponent(a.component()).Info("exchange adapter stopped")

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runErr
}

// Submit sends an order through the order entry translator.
func (a *Adapter) Submit(ctx context.Context, req models.OrderRequest) (json.RawMessage, error) {
	return a.translator.Submit(ctx, req)
}

// State reports the market data session state.
func (a *Adapter) State() reader.State {
	return a.supervisor.State()
}

// Diagnostics returns the sequence tracker snapshot.
func (a *Adapter) Diagnostics() sequence.Snapshot {
	return a.supervisor.Diagnostics()
}

func (a *Adapter) component() string {
	return string(a.cfg.Exchange) + "_adapter"
}
