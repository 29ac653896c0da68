package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-voicecmd/pkg/command"
	"github.com/teslashibe/go-voicecmd/pkg/metrics"
	"github.com/teslashibe/go-voicecmd/pkg/protocol"
)

// Default timeouts.
const (
	DefaultAckTimeout     = time.Second
	DefaultConnectTimeout = 5 * time.Second
)

// Outcome is how a delivery attempt ended.
type Outcome string

const (
	OutcomeAcked         Outcome = StateAcked
	OutcomeAckTimeout    Outcome = StateAckTimeout
	OutcomeConnectFailed Outcome = StateConnectFailed
	OutcomeSendFailed    Outcome = StateSendFailed
	OutcomeClosedByPeer  Outcome = StateClosedByPeer
)

// DeliveryResult reports a single delivery attempt.
type DeliveryResult struct {
	Delivered   bool
	Reason      string // empty when delivered
	Outcome     Outcome
	Reply       protocol.Reply
	Duration    time.Duration
	Transitions []string

	err error
}

// Err returns nil for a delivered payload and a *DeliveryError otherwise.
func (r DeliveryResult) Err() error {
	if r.Delivered {
		return nil
	}
	return &DeliveryError{Outcome: r.Outcome, Reason: r.Reason, Err: r.err}
}

// DeliveryError describes a failed delivery.
type DeliveryError struct {
	Outcome Outcome
	Reason  string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("dispatch: %s: %s", e.Outcome, e.Reason)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Dispatcher sends instruction batches to a controller.
// Concurrent Deliver calls are serialized.
type Dispatcher struct {
	transport      Transport
	ackTimeout     time.Duration
	connectTimeout time.Duration
	logger         *slog.Logger

	mu sync.Mutex
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAckTimeout sets how long to wait for a reply after sending.
func WithAckTimeout(d time.Duration) Option {
	return func(ds *Dispatcher) { ds.ackTimeout = d }
}

// WithConnectTimeout bounds connection setup and the write.
func WithConnectTimeout(d time.Duration) Option {
	return func(ds *Dispatcher) { ds.connectTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(ds *Dispatcher) { ds.logger = l }
}

// New creates a dispatcher using transport.
func New(transport Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport:      transport,
		ackTimeout:     DefaultAckTimeout,
		connectTimeout: DefaultConnectTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatch", "endpoint", transport.Endpoint())
	return d
}

// Endpoint returns the transport's endpoint.
func (d *Dispatcher) Endpoint() string { return d.transport.Endpoint() }

// Deliver sends batch in one frame and waits for any reply. It makes exactly
// one connection attempt and always closes the connection before returning.
func (d *Dispatcher) Deliver(ctx context.Context, batch command.Batch) DeliveryResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	a := newAttempt()
	res := d.deliver(ctx, a, batch)

	res.Outcome = a.outcome()
	if err := a.fire(EventReset); err != nil {
		d.logger.Error("attempt reset failed", "state", a.Current(), "error", err)
	}
	res.Transitions = a.transitions
	res.Duration = time.Since(start)
	metrics.RecordDelivery(string(res.Outcome), res.Duration.Seconds())

	if res.Delivered {
		d.logger.Info("instructions delivered",
			"payload", batch.String(),
			"reply", res.Reply.Raw,
			"duration_ms", res.Duration.Milliseconds(),
		)
		if res.Reply.Rejected {
			d.logger.Warn("controller rejected payload", "reason", res.Reply.Reason)
		}
	} else {
		d.logger.Warn("delivery failed",
			"payload", batch.String(),
			"outcome", res.Outcome,
			"reason", res.Reason,
		)
	}
	return res
}

func (d *Dispatcher) deliver(ctx context.Context, a *attempt, batch command.Batch) DeliveryResult {
	fail := func(event, reason string, err error) DeliveryResult {
		if ferr := a.fire(event); ferr != nil {
			d.logger.Error("invalid transition", "event", event, "state", a.Current(), "error", ferr)
		}
		return DeliveryResult{Reason: reason, err: err}
	}

	if len(batch) == 0 {
		return fail(EventSendFailed, "nothing to send: empty batch", ErrEmptyBatch)
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return fail(EventSendFailed, fmt.Sprintf("encode payload: %v", err), err)
	}

	_ = a.fire(EventConnect)
	cctx, cancel := context.WithTimeout(ctx, d.connectTimeout)
	sess, err := d.transport.Connect(cctx)
	cancel()
	if err != nil {
		return fail(EventConnectFailed,
			fmt.Sprintf("could not connect to %s: %v", d.transport.Endpoint(), err), err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			d.logger.Debug("close failed", "error", err)
		}
	}()
	_ = a.fire(EventConnected)

	_ = a.fire(EventSend)
	sctx, cancel := context.WithTimeout(ctx, d.connectTimeout)
	err = sess.Send(sctx, payload)
	cancel()
	if err != nil {
		if errors.Is(err, ErrClosedByPeer) {
			return fail(EventPeerClosed, fmt.Sprintf("connection closed while sending: %v", err), err)
		}
		return fail(EventSendFailed, fmt.Sprintf("send failed: %v", err), err)
	}
	_ = a.fire(EventSent)

	actx, cancel := context.WithTimeout(ctx, d.ackTimeout)
	reply, err := sess.Receive(actx)
	cancel()
	switch {
	case err == nil:
		_ = a.fire(EventAck)
		return DeliveryResult{Delivered: true, Reply: protocol.ParseReply(reply)}
	case errors.Is(err, context.DeadlineExceeded):
		return fail(EventAckTimeout,
			fmt.Sprintf("no acknowledgment within %s", d.ackTimeout), fmt.Errorf("%w: %w", ErrNoAck, err))
	case errors.Is(err, context.Canceled):
		return fail(EventAckTimeout, "ack wait cancelled", fmt.Errorf("%w: %w", ErrNoAck, err))
	default:
		return fail(EventPeerClosed, fmt.Sprintf("controller closed the connection: %v", err), err)
	}
}
