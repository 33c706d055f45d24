package exchange

import (
	"fmt"

	"cryptobridge/models"
)

// Endpoints are the market data and order entry URLs for one trading mode.
type Endpoints struct {
	MarketData string
	OrderEntry string
}

var coinbaseEndpoints = map[models.TradingMode]Endpoints{
	models.TradingModeLive: {
		MarketData: "wss://ws-feed.pro.coinbase.com",
		OrderEntry: "https://api.pro.coinbase.com",
	},
	models.TradingModeSimulation: {
		MarketData: "wss://ws-feed.pro.coinbase.com",
		OrderEntry: "https://api.pro.coinbase.com",
	},
	models.TradingModeSandbox: {
		MarketData: "wss://ws-feed-public.sandbox.pro.coinbase.com",
		OrderEntry: "https://api-public.sandbox.pro.coinbase.com",
	},
}

// ResolveEndpoints returns the endpoints for cfg. URLs set on cfg override
// the defaults; a mode without defaults needs both overrides.
func ResolveEndpoints(cfg models.ExchangeConfig) (Endpoints, error) {
	if cfg.Exchange != models.ExchangeCoinbase {
		return Endpoints{}, fmt.Errorf("%w: exchange %q", models.ErrUnsupported, cfg.Exchange)
	}

	ep, known := coinbaseEndpoints[cfg.TradingMode]
	if cfg.MarketDataURL != "" {
		ep.MarketData = cfg.MarketDataURL
	}
	if cfg.OrderEntryURL != "" {
		ep.OrderEntry = cfg.OrderEntryURL
	}
	if !known && ep.MarketData == "" {
		return Endpoints{}, fmt.Errorf("%w: no %s endpoints for %s", models.ErrUnsupported, cfg.TradingMode, cfg.Exchange)
	}
	return ep, nil
}
