// Package dispatch delivers instruction payloads to a robot controller.
//
// Every delivery is a single attempt: open one connection, send the payload
// in one frame, wait a bounded time for any reply, close. There is no retry,
// queuing or reconnection. Failures are reported in the DeliveryResult,
// never raised.
package dispatch

import (
	"context"
	"errors"
)

// Errors reported by transports and the dispatcher.
var (
	ErrClosedByPeer = errors.New("dispatch: connection closed by peer")
	ErrEmptyBatch   = errors.New("dispatch: empty batch")
	ErrNoAck        = errors.New("dispatch: no acknowledgment before timeout")
)

// Transport opens connections to a controller endpoint.
type Transport interface {
	// Connect opens one connection. The context bounds the handshake.
	Connect(ctx context.Context) (Session, error)

	// Endpoint describes where the transport connects, for logs and reasons.
	Endpoint() string
}

// Session is one open connection to a controller.
type Session interface {
	// Send writes payload as a single message.
	Send(ctx context.Context, payload []byte) error

	// Receive blocks until the controller sends something, the peer goes
	// away (ErrClosedByPeer) or ctx is done (ctx.Err()).
	Receive(ctx context.Context) ([]byte, error)

	Close() error
}
