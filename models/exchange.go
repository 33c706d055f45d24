package models

// ExchangeConfig is the caller-owned description of one adapter instance.
type ExchangeConfig struct {
	Exchange    ExchangeType
	TradingMode TradingMode
	Instruments []Instrument

	// Optional overrides of the built-in endpoint table.
	MarketDataURL string
	OrderEntryURL string
	// LocalIP binds outgoing connections to a source address when set.
	LocalIP string
}
