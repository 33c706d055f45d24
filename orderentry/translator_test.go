package orderentry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptobridge/logger"
	"cryptobridge/models"
	"cryptobridge/reader/coinbase"
)

type fakeClient struct {
	mu     sync.Mutex
	calls  []map[string]string
	resp   json.RawMessage
	err    error
	sawDDL bool
}

func (c *fakeClient) SubmitOrder(ctx context.Context, params map[string]string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, params)
	_, c.sawDDL = ctx.Deadline()
	return c.resp, c.err
}

func testLogger() *logger.Log {
	log := logger.Logger()
	log.SetOutput(io.Discard)
	return log
}

func limitOrder() models.OrderRequest {
	return models.OrderRequest{
		Price:      100.5,
		Volume:     2,
		Instrument: models.MustParseInstrument("BTC-USD"),
		Side:       models.SideBuy,
		OrderType:  models.OrderTypeLimit,
	}
}

func TestSubmitReturnsResponseUnchanged(t *testing.T) {
	client := &fakeClient{resp: json.RawMessage(`{"id":"42","status":"pending"}`)}
	tr := NewTranslator(coinbase.NewCodec(nil), client, Config{}, testLogger())

	resp, err := tr.Submit(context.Background(), limitOrder())
	require.NoError(t, err)
	assert.Equal(t, client.resp, resp)

	require.Len(t, client.calls, 1)
	params := client.calls[0]
	assert.Equal(t, "100.5", params[coinbase.ParamPrice])
	assert.Equal(t, "2", params[coinbase.ParamSize])
	assert.Equal(t, "BTC-USD", params[coinbase.ParamProductID])
	assert.Equal(t, "limit", params[coinbase.ParamType])
	_, err = uuid.Parse(params[ParamClientOID])
	assert.NoError(t, err, "client order id is a uuid")
}

func TestSubmitRejectsUnmappedType(t *testing.T) {
	client := &fakeClient{}
	tr := NewTranslator(coinbase.NewCodec(nil), client, Config{}, testLogger())

	req := limitOrder()
	req.OrderType = models.OrderTypeNone
	_, err := tr.Submit(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Empty(t, client.calls, "client must not be invoked")
}

func TestSubmitPropagatesClientError(t *testing.T) {
	want := errors.New("insufficient funds")
	client := &fakeClient{err: want}
	tr := NewTranslator(coinbase.NewCodec(nil), client, Config{}, testLogger())

	_, err := tr.Submit(context.Background(), limitOrder())
	assert.Equal(t, want, err)
}

func TestSubmitWithoutClient(t *testing.T) {
	tr := NewTranslator(coinbase.NewCodec(nil), nil, Config{}, testLogger())
	_, err := tr.Submit(context.Background(), limitOrder())
	assert.True(t, errors.Is(err, models.ErrUnsupported))
}

func TestSubmitUniqueClientIDs(t *testing.T) {
	client := &fakeClient{}
	tr := NewTranslator(coinbase.NewCodec(nil), client, Config{}, testLogger())

	for i := 0; i < 3; i++ {
		_, err := tr.Submit(context.Background(), limitOrder())
		require.NoError(t, err)
	}
	seen := map[string]bool{}
	for _, c := range client.calls {
		seen[c[ParamClientOID]] = true
	}
	assert.Len(t, seen, 3)
}

func TestSubmitAppliesTimeout(t *testing.T) {
	client := &fakeClient{}
	tr := NewTranslator(coinbase.NewCodec(nil), client, Config{Timeout: time.Second}, testLogger())

	_, err := tr.Submit(context.Background(), limitOrder())
	require.NoError(t, err)
	assert.True(t, client.sawDDL)
}

func TestSubmitRateLimited(t *testing.T) {
	client := &fakeClient{}
	tr := NewTranslator(coinbase.NewCodec(nil), client, Config{RequestsPerSecond: 1, Burst: 1}, testLogger())

	_, err := tr.Submit(context.Background(), limitOrder())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tr.Submit(ctx, limitOrder())
	require.Error(t, err, "second order exceeds the burst before the deadline")
	assert.Len(t, client.calls, 1)
}

type outcomeRecorder struct {
	exchange string
	errs     []error
}

func (r *outcomeRecorder) OrderSubmitted(exchange string, err error) {
	r.exchange = exchange
	r.errs = append(r.errs, err)
}

func TestSubmitReportsOutcomes(t *testing.T) {
	rec := &outcomeRecorder{}
	tr := NewTranslator(coinbase.NewCodec(nil), &fakeClient{}, Config{}, testLogger(), WithRecorder("coinbase", rec))

	_, err := tr.Submit(context.Background(), limitOrder())
	require.NoError(t, err)

	bad := limitOrder()
	bad.OrderType = models.OrderTypeNone
	_, _ = tr.Submit(context.Background(), bad)

	assert.Equal(t, "coinbase", rec.exchange)
	require.Len(t, rec.errs, 2)
	assert.NoError(t, rec.errs[0])
	assert.True(t, errors.Is(rec.errs[1], models.ErrValidation))
}
