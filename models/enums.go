package models

import "strings"

// TickType categorises a market event.
type TickType int

const (
	TickTrade TickType = iota
	TickReceived
	TickOpen
	TickDone
	TickChange
	TickHeartbeat
	TickError
)

var tickTypeNames = map[TickType]string{
	TickTrade:     "TRADE",
	TickReceived:  "RECEIVED",
	TickOpen:      "OPEN",
	TickDone:      "DONE",
	TickChange:    "CHANGE",
	TickHeartbeat: "HEARTBEAT",
	TickError:     "ERROR",
}

func (t TickType) String() string {
	if s, ok := tickTypeNames[t]; ok {
		return s
	}
	return "ERROR"
}

// Side is the aggressor or resting side of an order.
type Side int

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseSide maps "buy"/"sell" in any case; everything else is SideUnknown.
func ParseSide(s string) Side {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy
	case "sell":
		return SideSell
	default:
		return SideUnknown
	}
}

// OrderType is the pricing style of an order.
type OrderType int

const (
	OrderTypeNone OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
)

func (o OrderType) String() string {
	switch o {
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeMarket:
		return "MARKET"
	default:
		return "NONE"
	}
}

// ParseOrderType maps "limit"/"market"; anything else is OrderTypeNone.
func ParseOrderType(s string) OrderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "limit":
		return OrderTypeLimit
	case "market":
		return OrderTypeMarket
	default:
		return OrderTypeNone
	}
}

// OrderSubType is an exchange-specific order modifier.
type OrderSubType int

const (
	OrderSubTypeNone OrderSubType = iota
	OrderSubTypeFillOrKill
	OrderSubTypePostOnly
)

func (o OrderSubType) String() string {
	switch o {
	case OrderSubTypeFillOrKill:
		return "FILL_OR_KILL"
	case OrderSubTypePostOnly:
		return "POST_ONLY"
	default:
		return "NONE"
	}
}

// ChangeReason explains why an order changed state.
type ChangeReason int

const (
	ChangeReasonNone ChangeReason = iota
	ChangeReasonCancelled
	ChangeReasonFilled
)

func (c ChangeReason) String() string {
	switch c {
	case ChangeReasonCancelled:
		return "CANCELLED"
	case ChangeReasonFilled:
		return "FILLED"
	default:
		return "NONE"
	}
}

// TradingMode selects endpoints and the credential namespace.
type TradingMode int

const (
	TradingModeLive TradingMode = iota
	TradingModeSimulation
	TradingModeSandbox
	TradingModeBacktest
)

func (m TradingMode) String() string {
	switch m {
	case TradingModeLive:
		return "LIVE"
	case TradingModeSimulation:
		return "SIMULATION"
	case TradingModeSandbox:
		return "SANDBOX"
	case TradingModeBacktest:
		return "BACKTEST"
	default:
		return "UNKNOWN"
	}
}

// ParseTradingMode accepts the mode names case-insensitively.
func ParseTradingMode(s string) (TradingMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "live":
		return TradingModeLive, true
	case "simulation":
		return TradingModeSimulation, true
	case "sandbox":
		return TradingModeSandbox, true
	case "backtest":
		return TradingModeBacktest, true
	default:
		return TradingModeLive, false
	}
}

// ExchangeType identifies an exchange. The value doubles as the credential
// namespace and the metrics/log label.
type ExchangeType string

const (
	ExchangeCoinbase ExchangeType = "coinbase"
)

// ParseExchangeType accepts "coinbase" and its former name "gdax".
func ParseExchangeType(s string) (ExchangeType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "coinbase", "gdax":
		return ExchangeCoinbase, true
	default:
		return "", false
	}
}
