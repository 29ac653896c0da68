package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultPort is the port the robot controller listens on.
const DefaultPort = 80

// RobotURL builds the WebSocket URL for a controller at host.
func RobotURL(host string, port int, path string) string {
	if port <= 0 {
		port = DefaultPort
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(port)) + path
}

// WebSocketTransport connects to a controller over WebSocket.
type WebSocketTransport struct {
	url    string
	header http.Header
	dialer websocket.Dialer
}

var _ Transport = (*WebSocketTransport)(nil)

// NewWebSocketTransport creates a transport for url (ws:// or wss://).
func NewWebSocketTransport(url string) *WebSocketTransport {
	return &WebSocketTransport{
		url: url,
		dialer: websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
	}
}

// WithHeader sets a request header sent on every handshake.
func (t *WebSocketTransport) WithHeader(key, value string) *WebSocketTransport {
	if t.header == nil {
		t.header = http.Header{}
	}
	t.header.Set(key, value)
	return t
}

// Endpoint returns the WebSocket URL.
func (t *WebSocketTransport) Endpoint() string { return t.url }

// Connect dials the controller.
func (t *WebSocketTransport) Connect(ctx context.Context) (Session, error) {
	conn, resp, err := t.dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	return &wsSession{conn: conn}, nil
}

type wsSession struct {
	conn *websocket.Conn
}

func (s *wsSession) Send(ctx context.Context, payload []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(dl)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

func (s *wsSession) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(dl)
	}
	// Unblock the read on cancellation as well as on deadline.
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, context.DeadlineExceeded
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, ErrClosedByPeer
		}
		return nil, fmt.Errorf("%w: %w", ErrClosedByPeer, err)
	}
	return data, nil
}

func (s *wsSession) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(100*time.Millisecond))
	return s.conn.Close()
}
