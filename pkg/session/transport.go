package session

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/coder/websocket"
)

// Conn is one established connection to the host.
type Conn interface {
	// Read blocks for the next frame. A normal close by the peer is io.EOF.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens a Conn to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) { return f(ctx, url) }

// readLimit bounds a single inbound frame. The library default of 32 KiB is
// too small for settings payloads some hosts send.
const readLimit = 16 << 20

// WSDialer dials the host over coder/websocket.
type WSDialer struct {
	HTTPClient *http.Client
	Header     http.Header
}

// Dial implements Dialer.
func (d WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: d.Header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	conn.SetReadLimit(readLimit)

	return NewWSConn(conn), nil
}

// NewWSConn wraps an established websocket connection. The host side of
// tests and tools uses it after websocket.Accept.
func NewWSConn(conn *websocket.Conn) Conn {
	return &wsConn{conn: conn}
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return nil, io.EOF
		}

		return nil, err
	}

	return data, nil
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
