package models

import (
	"encoding/json"
	"math"
	"time"
)

// MarketData is one normalised market event. It is built once per decoded
// frame and never mutated afterwards. Price, Volume and Remaining hold NaN when
// the exchange omitted the value or sent something unparseable.
type MarketData struct {
	Time       time.Time
	Price      float64
	Volume     float64
	Remaining  float64
	Type       TickType
	Instrument Instrument
	Side       Side
	OrderType  OrderType
	Reason     ChangeReason
	Sequence   int64
}

type marketDataJSON struct {
	Time      time.Time `json:"time"`
	Price     *float64  `json:"price"`
	Volume    *float64  `json:"volume"`
	Remaining *float64  `json:"remaining_volume"`
	Type      string    `json:"tick_type"`
	Base      Currency  `json:"base"`
	Quote     Currency  `json:"quote"`
	Side      string    `json:"side"`
	OrderType string    `json:"order_type"`
	Reason    string    `json:"change_reason"`
	Sequence  int64     `json:"sequence"`
}

// MarshalJSON writes enums by name and NaN values as null, since JSON has no
// representation for NaN.
func (m MarketData) MarshalJSON() ([]byte, error) {
	pair := m.Instrument.Pair()
	return json.Marshal(marketDataJSON{
		Time:      m.Time,
		Price:     finiteOrNil(m.Price),
		Volume:    finiteOrNil(m.Volume),
		Remaining: finiteOrNil(m.Remaining),
		Type:      m.Type.String(),
		Base:      pair.Base,
		Quote:     pair.Quote,
		Side:      m.Side.String(),
		OrderType: m.OrderType.String(),
		Reason:    m.Reason.String(),
		Sequence:  m.Sequence,
	})
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
