package coinbase

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptobridge/models"
)

var (
	btcUSD = models.MustParseInstrument("BTC-USD")
	ethUSD = models.MustParseInstrument("ETH-USD")
)

func frame(typ string, seq int) []byte {
	return []byte(fmt.Sprintf(`{"type":%q,"sequence":%d,"time":"2017-02-19T18:52:17.088000Z","product_id":"BTCUSD","price":"100.5","size":"2"}`, typ, seq))
}

func TestDecodeTickTypes(t *testing.T) {
	c := NewCodec(nil)
	tests := []struct {
		wire string
		want models.TickType
	}{
		{"match", models.TickTrade},
		{"received", models.TickReceived},
		{"open", models.TickOpen},
		{"done", models.TickDone},
		{"change", models.TickChange},
		{"heartbeat", models.TickHeartbeat},
		{"last_match", models.TickError},
		{"error", models.TickError},
		{"", models.TickError},
	}
	for i, tt := range tests {
		md, err := c.Decode(frame(tt.wire, i))
		require.NoError(t, err, tt.wire)
		assert.Equal(t, tt.want, md.Type, tt.wire)
		assert.Equal(t, int64(i), md.Sequence)
	}
}

func TestDecodeFields(t *testing.T) {
	c := NewCodec(nil)
	raw := []byte(`{"type":"done","sequence":10,"time":"2017-02-19T18:52:17.088000Z","product_id":"BTC-USD",
		"price":"1001.25","size":"0.5","remaining_size":"0.25","side":"sell","order_type":"limit","reason":"canceled"}`)

	md, err := c.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2017, 2, 19, 18, 52, 17, 88000000, time.UTC), md.Time.UTC())
	assert.Equal(t, 1001.25, md.Price)
	assert.Equal(t, 0.5, md.Volume)
	assert.Equal(t, 0.25, md.Remaining)
	assert.Equal(t, btcUSD, md.Instrument)
	assert.Equal(t, models.SideSell, md.Side)
	assert.Equal(t, models.OrderTypeLimit, md.OrderType)
	assert.Equal(t, models.ChangeReasonCancelled, md.Reason)
	assert.Equal(t, int64(10), md.Sequence)
}

func TestDecodeReasons(t *testing.T) {
	c := NewCodec(nil)
	tests := []struct {
		reason string
		want   models.ChangeReason
	}{
		{`"canceled"`, models.ChangeReasonCancelled},
		{`"filled"`, models.ChangeReasonNone},
		{`""`, models.ChangeReasonNone},
		{`"expired"`, models.ChangeReasonNone},
	}
	for _, tt := range tests {
		raw := []byte(`{"type":"done","sequence":1,"time":"2017-02-19T18:52:17Z","product_id":"BTC-USD","reason":` + tt.reason + `}`)
		md, err := c.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, md.Reason, tt.reason)
	}

	md, err := c.Decode(frame("done", 1))
	require.NoError(t, err)
	assert.Equal(t, models.ChangeReasonNone, md.Reason, "absent reason")
}

func TestDecodeMissingNumericsAreNaN(t *testing.T) {
	c := NewCodec(nil)

	md, err := c.Decode([]byte(`{"type":"match","sequence":3,"time":"2017-02-19T18:52:17Z","product_id":"ETH-USD"}`))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(md.Price))
	assert.True(t, math.IsNaN(md.Volume))
	assert.Equal(t, 0.0, md.Remaining)
	assert.Equal(t, ethUSD, md.Instrument)

	md, err = c.Decode([]byte(`{"type":"match","sequence":3,"time":"2017-02-19T18:52:17Z","product_id":"ETH-USD","price":"abc","size":true,"remaining_size":"x"}`))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(md.Price))
	assert.True(t, math.IsNaN(md.Volume))
	assert.True(t, math.IsNaN(md.Remaining))

	md, err = c.Decode([]byte(`{"type":"match","sequence":"4","time":"2017-02-19T18:52:17Z","product_id":"ETH-USD","price":12.5}`))
	require.NoError(t, err)
	assert.Equal(t, 12.5, md.Price)
	assert.Equal(t, int64(4), md.Sequence)
}

func TestDecodeErrors(t *testing.T) {
	c := NewCodec(nil)
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"missing sequence", `{"type":"match","time":"2017-02-19T18:52:17Z","product_id":"BTC-USD"}`, models.ErrDecode},
		{"non numeric sequence", `{"type":"match","sequence":"abc","time":"2017-02-19T18:52:17Z","product_id":"BTC-USD"}`, models.ErrDecode},
		{"fractional sequence", `{"type":"match","sequence":1.5,"time":"2017-02-19T18:52:17Z","product_id":"BTC-USD"}`, models.ErrDecode},
		{"bad time", `{"type":"match","sequence":1,"time":"yesterday","product_id":"BTC-USD"}`, models.ErrParse},
		{"missing time", `{"type":"match","sequence":1,"product_id":"BTC-USD"}`, models.ErrParse},
		{"missing product", `{"type":"match","sequence":1,"time":"2017-02-19T18:52:17Z"}`, models.ErrDecode},
		{"not json", `{"type":`, models.ErrDecode},
		{"null", `null`, models.ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestDecodeTimeLayouts(t *testing.T) {
	c := NewCodec(nil)
	for _, ts := range []string{"2017-02-19T18:52:17.088000Z", "2017-02-19T18:52:17Z", "2017-02-19T18:52:17.088", "2017-02-19 18:52:17.088+00:00", "2017-02-19 18:52:17"} {
		raw := []byte(`{"type":"open","sequence":1,"product_id":"BTC-USD","time":"` + ts + `"}`)
		md, err := c.Decode(raw)
		require.NoError(t, err, ts)
		assert.Equal(t, 2017, md.Time.Year(), ts)
	}
}

func TestSubscriptionMessages(t *testing.T) {
	instruments := []models.Instrument{btcUSD, ethUSD}
	c := NewCodec(instruments)

	want := [][]byte{
		[]byte(`{"type":"subscribe","product_id":"BTC-USD"}`),
		[]byte(`{"type":"subscribe","product_id":"ETH-USD"}`),
	}
	assert.Equal(t, want, c.SubscriptionMessages())
	assert.Equal(t, c.SubscriptionMessages(), c.SubscriptionMessages())
	assert.Equal(t, want, NewCodec(instruments).SubscriptionMessages())

	reversed := NewCodec([]models.Instrument{ethUSD, btcUSD}).SubscriptionMessages()
	assert.Equal(t, want[1], reversed[0])
}

func TestHeartbeatMessage(t *testing.T) {
	c := NewCodec(nil)
	assert.Equal(t, `{"type":"heartbeat","on":true}`, string(c.HeartbeatMessage()))
	assert.Equal(t, c.HeartbeatMessage(), NewCodec([]models.Instrument{btcUSD}).HeartbeatMessage())
}

func TestControlMessagesAreCopies(t *testing.T) {
	c := NewCodec([]models.Instrument{btcUSD, ethUSD})

	subs := c.SubscriptionMessages()
	subs[0][0] = 'X'
	subs[1] = nil
	hb := c.HeartbeatMessage()
	hb[0] = 'X'

	assert.Equal(t, `{"type":"subscribe","product_id":"BTC-USD"}`, string(c.SubscriptionMessages()[0]))
	assert.Equal(t, `{"type":"subscribe","product_id":"ETH-USD"}`, string(c.SubscriptionMessages()[1]))
	assert.Equal(t, `{"type":"heartbeat","on":true}`, string(c.HeartbeatMessage()))
}

func TestEncodeOrder(t *testing.T) {
	c := NewCodec(nil)
	base := models.OrderRequest{
		Price:      100.5,
		Volume:     2,
		Instrument: btcUSD,
		OrderType:  models.OrderTypeLimit,
	}

	none := c.EncodeOrder(base)
	assert.Equal(t, map[string]string{
		ParamPrice:     "100.5",
		ParamSize:      "2",
		ParamProductID: "BTC-USD",
		ParamType:      "limit",
	}, none)

	postOnly := base
	postOnly.OrderSubType = models.OrderSubTypePostOnly
	p := c.EncodeOrder(postOnly)
	assert.Len(t, p, len(none)+1)
	assert.Equal(t, "1", p[ParamPostOnly])
	assert.NotContains(t, p, ParamTimeInForce)

	fok := base
	fok.OrderSubType = models.OrderSubTypeFillOrKill
	f := c.EncodeOrder(fok)
	assert.Len(t, f, len(none)+1)
	assert.Equal(t, "FOK", f[ParamTimeInForce])
	assert.NotContains(t, f, ParamPostOnly)
}

func TestEncodeOrderTypeAndSide(t *testing.T) {
	c := NewCodec(nil)
	market := c.EncodeOrder(models.OrderRequest{Price: 1, Volume: 0.25, Instrument: ethUSD, OrderType: models.OrderTypeMarket, Side: models.SideBuy})
	assert.Equal(t, "market", market[ParamType])
	assert.Equal(t, "buy", market[ParamSide])
	assert.Equal(t, "0.25", market[ParamSize])

	unmapped := c.EncodeOrder(models.OrderRequest{Instrument: ethUSD, OrderType: models.OrderTypeNone})
	assert.NotContains(t, unmapped, ParamType)
	assert.NotContains(t, unmapped, ParamSide)
}
