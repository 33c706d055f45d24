package coinbase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cryptobridge/internal/symbols"
	"cryptobridge/models"
)

const exchangeName = "coinbase"

var tickTypes = map[string]models.TickType{
	"match":     models.TickTrade,
	"received":  models.TickReceived,
	"open":      models.TickOpen,
	"done":      models.TickDone,
	"change":    models.TickChange,
	"heartbeat": models.TickHeartbeat,
}

var orderTypes = map[models.OrderType]string{
	models.OrderTypeLimit:  "limit",
	models.OrderTypeMarket: "market",
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Codec maps Coinbase feed frames to canonical events and canonical orders to
// Coinbase REST parameters. Control messages are computed once at construction
// and handed out as copies.
type Codec struct {
	subscriptions [][]byte
	heartbeat     []byte
}

// NewCodec builds the codec for an ordered instrument list.
func NewCodec(instruments []models.Instrument) *Codec {
	subs := make([][]byte, 0, len(instruments))
	for _, inst := range instruments {
		subs = append(subs, mustMarshal(subscribeMessage{Type: "subscribe", ProductID: ProductID(inst)}))
	}
	return &Codec{
		subscriptions: subs,
		heartbeat:     mustMarshal(heartbeatMessage{Type: "heartbeat", On: true}),
	}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// ProductID formats an instrument the way Coinbase names products, e.g. BTC-USD.
func ProductID(inst models.Instrument) string {
	pair := inst.Pair()
	return symbols.Join(exchangeName, string(pair.Base), string(pair.Quote))
}

// SubscriptionMessages returns one subscribe message per instrument, in input order.
func (c *Codec) SubscriptionMessages() [][]byte {
	out := make([][]byte, len(c.subscriptions))
	for i, msg := range c.subscriptions {
		out[i] = bytes.Clone(msg)
	}
	return out
}

// HeartbeatMessage returns the heartbeat-enable message.
func (c *Codec) HeartbeatMessage() []byte {
	return bytes.Clone(c.heartbeat)
}

// TickType maps a wire type string; unknown strings map to TickError.
func TickType(s string) models.TickType {
	if t, ok := tickTypes[s]; ok {
		return t
	}
	return models.TickError
}

// ChangeReason maps the wire reason. "filled" deliberately decodes to
// ChangeReasonNone, matching what downstream consumers have always received.
func ChangeReason(s string) models.ChangeReason {
	switch s {
	case "canceled":
		return models.ChangeReasonCancelled
	case "filled":
		return models.ChangeReasonNone
	default:
		return models.ChangeReasonNone
	}
}

// Decode parses one feed frame. Missing or malformed price and size decode to
// NaN; a missing remaining_size decodes to zero. The timestamp, sequence and
// product id are required.
func (c *Codec) Decode(raw []byte) (models.MarketData, error) {
	var frame map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&frame); err != nil {
		return models.MarketData{}, fmt.Errorf("%w: invalid json: %v", models.ErrDecode, err)
	}
	if frame == nil {
		return models.MarketData{}, fmt.Errorf("%w: frame is not an object", models.ErrDecode)
	}

	ts, err := parseTime(frame[fieldTime])
	if err != nil {
		return models.MarketData{}, err
	}

	seq, err := parseSequence(frame[fieldSequence])
	if err != nil {
		return models.MarketData{}, err
	}

	productID, _ := frame[fieldProductID].(string)
	inst, err := models.ParseInstrument(productID)
	if err != nil {
		return models.MarketData{}, fmt.Errorf("%w: product_id: %v", models.ErrDecode, err)
	}

	typ, _ := frame[fieldType].(string)
	orderType, _ := frame[fieldOrderType].(string)
	side, _ := frame[fieldSide].(string)
	reason, _ := frame[fieldReason].(string)

	return models.MarketData{
		Time:       ts,
		Price:      parseFloat(frame, fieldPrice, math.NaN()),
		Volume:     parseFloat(frame, fieldSize, math.NaN()),
		Remaining:  parseFloat(frame, fieldRemainingSize, 0),
		Type:       TickType(typ),
		Instrument: inst,
		Side:       models.ParseSide(side),
		OrderType:  models.ParseOrderType(orderType),
		Reason:     ChangeReason(reason),
		Sequence:   seq,
	}, nil
}

func parseTime(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return time.Time{}, fmt.Errorf("%w: missing time", models.ErrParse)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised time %q", models.ErrParse, s)
}

func parseSequence(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w: missing sequence", models.ErrDecode)
	case json.Number:
		seq, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: sequence %q is not an integer", models.ErrDecode, n.String())
		}
		return seq, nil
	case string:
		seq, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: sequence %q is not an integer", models.ErrDecode, n)
		}
		return seq, nil
	default:
		return 0, fmt.Errorf("%w: sequence has type %T", models.ErrDecode, v)
	}
}

// parseFloat returns def when the field is absent and NaN when it is present
// but not numeric.
func parseFloat(frame map[string]any, key string, def float64) float64 {
	v, ok := frame[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// EncodeOrder maps a canonical order to Coinbase order parameters. An
// unmapped order type produces no type field; callers validate beforehand.
// At most one sub-type flag is ever added.
func (c *Codec) EncodeOrder(req models.OrderRequest) map[string]string {
	p := map[string]string{
		ParamPrice:     formatFloat(req.Price),
		ParamSize:      formatFloat(req.Volume),
		ParamProductID: ProductID(req.Instrument),
	}
	if typ, ok := orderTypes[req.OrderType]; ok {
		p[ParamType] = typ
	}
	switch req.Side {
	case models.SideBuy:
		p[ParamSide] = "buy"
	case models.SideSell:
		p[ParamSide] = "sell"
	}

	switch req.OrderSubType {
	case models.OrderSubTypeFillOrKill:
		p[ParamTimeInForce] = "FOK"
	case models.OrderSubTypePostOnly:
		p[ParamPostOnly] = "1"
	}
	return p
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
