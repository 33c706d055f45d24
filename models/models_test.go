package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestParseInstrumentEquality(t *testing.T) {
	a, err := ParseInstrument("BTC-USD")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b := MustParseInstrument("BTCUSD")
	c := NewInstrument(Pair{Base: CurrencyBTC, Quote: CurrencyUSD})
	if a != b || b != c {
		t.Fatalf("instruments differ: %v %v %v", a, b, c)
	}
	if a == MustParseInstrument("ETH-USD") {
		t.Fatal("different pairs compared equal")
	}
	if a.String() != "BTC/USD" {
		t.Errorf("unexpected string: %s", a)
	}
}

func TestParseInstrumentInvalid(t *testing.T) {
	for _, in := range []string{"", "USD", "BTC-USD-X"} {
		if _, err := ParseInstrument(in); err == nil {
			t.Errorf("ParseInstrument(%q) expected error", in)
		}
	}
	if !(Instrument{}).IsZero() {
		t.Error("zero instrument not reported as zero")
	}
}

func TestMarketDataJSONWritesNaNAsNull(t *testing.T) {
	md := MarketData{
		Time:       time.Date(2017, 2, 19, 18, 52, 17, 88000000, time.UTC),
		Price:      math.NaN(),
		Volume:     1.5,
		Remaining:  0,
		Type:       TickTrade,
		Instrument: MustParseInstrument("BTC-USD"),
		Side:       SideBuy,
		Sequence:   7,
	}
	data, err := json.Marshal(md)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"price":null`, `"volume":1.5`, `"tick_type":"TRADE"`, `"base":"BTC"`, `"side":"BUY"`, `"sequence":7`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestParseEnums(t *testing.T) {
	if ParseSide("BUY") != SideBuy || ParseSide("sell") != SideSell || ParseSide("") != SideUnknown {
		t.Error("unexpected side mapping")
	}
	if ParseOrderType("limit") != OrderTypeLimit || ParseOrderType("market") != OrderTypeMarket || ParseOrderType("stop") != OrderTypeNone {
		t.Error("unexpected order type mapping")
	}
	if m, ok := ParseTradingMode("Sandbox"); !ok || m != TradingModeSandbox {
		t.Errorf("unexpected trading mode: %v %v", m, ok)
	}
	if _, ok := ParseTradingMode("paper"); ok {
		t.Error("unknown trading mode accepted")
	}
	if e, ok := ParseExchangeType("GDAX"); !ok || e != ExchangeCoinbase {
		t.Errorf("unexpected exchange: %v %v", e, ok)
	}
}

func TestOrderRequestHasMappedType(t *testing.T) {
	if (OrderRequest{OrderType: OrderTypeNone}).HasMappedType() {
		t.Error("NONE reported as mapped")
	}
	if !(OrderRequest{OrderType: OrderTypeMarket}).HasMappedType() {
		t.Error("MARKET reported as unmapped")
	}
}
