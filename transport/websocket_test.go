package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptobridge/models"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocketSendReceive(t *testing.T) {
	srv := echoServer(t)
	tr := NewWebsocketTransport(WebsocketConfig{ReadTimeout: 2 * time.Second})

	sess, err := tr.Open(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.Send([]byte(`{"type":"subscribe","product_id":"BTC-USD"}`)))
	got, err := sess.Receive()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"subscribe","product_id":"BTC-USD"}`, string(got))
}

func TestWebsocketCloseIsIdempotent(t *testing.T) {
	srv := echoServer(t)
	sess, err := NewWebsocketTransport(WebsocketConfig{}).Open(context.Background(), wsURL(srv))
	require.NoError(t, err)

	first := sess.Close()
	assert.Equal(t, first, sess.Close())

	_, err = sess.Receive()
	assert.True(t, errors.Is(err, models.ErrConnection))
	assert.True(t, errors.Is(sess.Send([]byte("x")), models.ErrConnection))
}

func TestWebsocketReadTimeout(t *testing.T) {
	srv := echoServer(t)
	sess, err := NewWebsocketTransport(WebsocketConfig{ReadTimeout: 50 * time.Millisecond}).Open(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Receive()
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConnection))
}

func TestWebsocketDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewWebsocketTransport(WebsocketConfig{HandshakeTimeout: time.Second}).Open(context.Background(), wsURL(srv))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConnection))
	assert.Contains(t, err.Error(), "404")
}

func TestWebsocketDialCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWebsocketTransport(WebsocketConfig{}).Open(ctx, "ws://127.0.0.1:1/feed")
	assert.True(t, errors.Is(err, models.ErrConnection))
}
