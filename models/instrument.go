package models

import (
	"fmt"

	"cryptobridge/internal/symbols"
)

// Currency is an asset code such as BTC or USD.
type Currency string

const (
	CurrencyUSD  Currency = "USD"
	CurrencyUSDT Currency = "USDT"
	CurrencyUSDC Currency = "USDC"
	CurrencyEUR  Currency = "EUR"
	CurrencyGBP  Currency = "GBP"
	CurrencyBTC  Currency = "BTC"
	CurrencyETH  Currency = "ETH"
	CurrencyLTC  Currency = "LTC"
	CurrencyBCH  Currency = "BCH"
	CurrencyETC  Currency = "ETC"
	CurrencyZEC  Currency = "ZEC"
	CurrencyXRP  Currency = "XRP"
)

// Pair is a base/quote currency pair.
type Pair struct {
	Base  Currency
	Quote Currency
}

func (p Pair) String() string {
	return string(p.Base) + "/" + string(p.Quote)
}

// Instrument identifies a tradeable currency pair. Instruments are comparable
// and usable as map keys; two instruments are equal when their pairs are.
type Instrument struct {
	pair Pair
}

// NewInstrument wraps an already parsed pair.
func NewInstrument(pair Pair) Instrument {
	return Instrument{pair: pair}
}

// ParseInstrument builds an instrument from a pair string such as "BTC-USD",
// "BTC/USD" or "BTCUSD".
func ParseInstrument(s string) (Instrument, error) {
	base, quote, ok := symbols.Split(s)
	if !ok {
		return Instrument{}, fmt.Errorf("unrecognised currency pair %q", s)
	}
	return Instrument{pair: Pair{Base: Currency(base), Quote: Currency(quote)}}, nil
}

// MustParseInstrument is ParseInstrument for literals known to be valid.
func MustParseInstrument(s string) Instrument {
	inst, err := ParseInstrument(s)
	if err != nil {
		panic(err)
	}
	return inst
}

func (i Instrument) Pair() Pair {
	return i.pair
}

// IsZero reports whether the instrument was never initialised.
func (i Instrument) IsZero() bool {
	return i.pair == Pair{}
}

func (i Instrument) String() string {
	return i.pair.String()
}
