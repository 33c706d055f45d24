package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cryptobridge/models"
	"cryptobridge/reader"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 5 * time.Second
)

// WebsocketConfig tunes dialing and per-frame deadlines.
type WebsocketConfig struct {
	HandshakeTimeout time.Duration
	// ReadTimeout bounds each blocking Receive. Zero waits forever.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// LocalIP binds the outgoing connection to a source address.
	LocalIP string
}

// WebsocketTransport opens sessions with gorilla/websocket.
type WebsocketTransport struct {
	dialer *websocket.Dialer
	cfg    WebsocketConfig
}

// NewWebsocketTransport builds a transport from cfg.
func NewWebsocketTransport(cfg WebsocketConfig) *WebsocketTransport {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	dialer := &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	if cfg.LocalIP != "" {
		if ip := net.ParseIP(cfg.LocalIP); ip != nil {
			dialer.NetDialContext = (&net.Dialer{LocalAddr: &net.TCPAddr{IP: ip}}).DialContext
		}
	}
	return &WebsocketTransport{dialer: dialer, cfg: cfg}
}

// Open dials endpoint and returns a live session.
func (t *WebsocketTransport) Open(ctx context.Context, endpoint string) (reader.Session, error) {
	conn, resp, err := t.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial %s: %v (status %d)", models.ErrConnection, endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", models.ErrConnection, endpoint, err)
	}
	return &wsSession{conn: conn, readTimeout: t.cfg.ReadTimeout, writeTimeout: t.cfg.WriteTimeout}, nil
}

type wsSession struct {
	conn         *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func (s *wsSession) Send(msg []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return fmt.Errorf("%w: set write deadline: %v", models.ErrConnection, err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("%w: write: %v", models.ErrConnection, err)
	}
	return nil
}

func (s *wsSession) Receive() ([]byte, error) {
	if s.readTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return nil, fmt.Errorf("%w: set read deadline: %v", models.ErrConnection, err)
		}
	}
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", models.ErrConnection, err)
	}
	return data, nil
}

// Close sends a close frame when possible and releases the connection.
func (s *wsSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
