package dispatch

import (
	"context"

	"github.com/looplab/fsm"
)

// Attempt states.
const (
	StateIdle          = "idle"
	StateConnecting    = "connecting"
	StateConnected     = "connected"
	StateSending       = "sending"
	StateAwaitingAck   = "awaiting_ack"
	StateAcked         = "acked"
	StateAckTimeout    = "ack_timeout"
	StateConnectFailed = "connect_failed"
	StateSendFailed    = "send_failed"
	StateClosedByPeer  = "closed_by_peer"
)

// Attempt events.
const (
	EventConnect       = "connect"
	EventConnected     = "connected"
	EventConnectFailed = "connect_failed"
	EventSend          = "send"
	EventSent          = "sent"
	EventSendFailed    = "send_failed"
	EventAck           = "ack"
	EventAckTimeout    = "ack_timeout"
	EventPeerClosed    = "peer_closed"
	EventReset         = "reset"
)

var terminalStates = []string{
	StateAcked,
	StateAckTimeout,
	StateConnectFailed,
	StateSendFailed,
	StateClosedByPeer,
}

// attempt tracks one delivery through its states and records every state
// entered, starting with idle.
type attempt struct {
	*fsm.FSM
	transitions []string
}

func newAttempt() *attempt {
	a := &attempt{transitions: []string{StateIdle}}

	events := fsm.Events{
		{Name: EventConnect, Src: []string{StateIdle}, Dst: StateConnecting},
		{Name: EventConnected, Src: []string{StateConnecting}, Dst: StateConnected},
		{Name: EventConnectFailed, Src: []string{StateConnecting}, Dst: StateConnectFailed},
		{Name: EventSend, Src: []string{StateConnected}, Dst: StateSending},
		{Name: EventSent, Src: []string{StateSending}, Dst: StateAwaitingAck},
		{Name: EventSendFailed, Src: []string{StateIdle, StateSending}, Dst: StateSendFailed},
		{Name: EventAck, Src: []string{StateAwaitingAck}, Dst: StateAcked},
		{Name: EventAckTimeout, Src: []string{StateAwaitingAck}, Dst: StateAckTimeout},
		{Name: EventPeerClosed, Src: []string{StateSending, StateAwaitingAck}, Dst: StateClosedByPeer},
		{Name: EventReset, Src: terminalStates, Dst: StateIdle},
	}

	callbacks := fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			a.transitions = append(a.transitions, e.Dst)
		},
	}

	a.FSM = fsm.NewFSM(StateIdle, events, callbacks)
	return a
}

// fire applies event. Bookkeeping must not be cut short by the caller's
// context, so transitions always run on a background context.
func (a *attempt) fire(event string) error {
	return a.Event(context.Background(), event)
}

// outcome is the terminal state reached before reset.
func (a *attempt) outcome() Outcome {
	for i := len(a.transitions) - 1; i >= 0; i-- {
		for _, s := range terminalStates {
			if a.transitions[i] == s {
				return Outcome(s)
			}
		}
	}
	return ""
}
