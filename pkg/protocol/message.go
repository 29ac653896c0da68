// Package protocol defines the acknowledgment envelope a robot controller
// sends back after receiving an instruction payload.
//
// The instruction payload itself is a bare JSON array (see package command).
// Replies are not contractually defined: any message received within the ack
// timeout counts as an acknowledgment. Controllers that want to say more use
// this envelope, e.g. {"type":"ack","ts":1700000000000,"data":{"count":2}}.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the kind of reply.
type MessageType string

const (
	TypeAck  MessageType = "ack"  // Payload accepted
	TypeNack MessageType = "nack" // Payload received but rejected
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the wrapper for controller replies.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// AckData describes what the controller did with a payload.
type AckData struct {
	Count int    `json:"count"`           // Instructions accepted
	Error string `json:"error,omitempty"` // Why a payload was rejected
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// NewAck creates an ack for count instructions.
func NewAck(count int) *Message {
	msg, _ := NewMessage(TypeAck, AckData{Count: count})
	return msg
}

// NewNack creates a rejection carrying reason.
func NewNack(reason string) *Message {
	msg, _ := NewMessage(TypeNack, AckData{Error: reason})
	return msg
}

// ParseData unmarshals the message data into the provided struct.
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// Reply is a best-effort reading of whatever the controller sent back.
type Reply struct {
	Raw      string
	Type     MessageType // empty when the reply is not an envelope
	Count    int
	Rejected bool
	Reason   string
}

// ParseReply interprets a controller reply. It never fails: replies that are
// not envelopes are kept as raw text.
func ParseReply(data []byte) Reply {
	r := Reply{Raw: string(data)}

	msg, err := ParseMessage(data)
	if err != nil {
		return r
	}
	r.Type = msg.Type

	var ad AckData
	if msg.ParseData(&ad) == nil {
		r.Count = ad.Count
		r.Reason = ad.Error
	}
	r.Rejected = msg.Type == TypeNack
	return r
}
