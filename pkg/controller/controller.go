// Package controller is a stand-in for the robot's embedded controller.
//
// It accepts instruction payloads over WebSocket, decodes and validates them,
// keeps a bounded history and answers each payload with an ack or nack
// envelope from package protocol. It executes nothing.
package controller

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-voicecmd/pkg/command"
	"github.com/teslashibe/go-voicecmd/pkg/protocol"
)

// DefaultHistory is how many received payloads are kept.
const DefaultHistory = 100

// Record is one payload received from the dispatcher.
type Record struct {
	ConnID       string        `json:"conn_id"`
	Received     time.Time     `json:"received"`
	Payload      string        `json:"payload"`
	Instructions command.Batch `json:"instructions,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Connection is an open dispatcher connection.
type Connection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	mu sync.Mutex
}

// Send writes a reply envelope.
func (c *Connection) Send(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Controller accepts instruction payloads.
type Controller struct {
	mu      sync.RWMutex
	conns   map[string]*Connection
	records []Record
	history int

	acks           bool
	closeOnReceive bool
	onInstructions func(connID string, batch command.Batch)
	logger         *slog.Logger

	app *fiber.App

	// Stats
	payloadsReceived atomic.Uint64
	payloadsRejected atomic.Uint64
	repliesSent      atomic.Uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithoutAcks makes the controller stay silent after a payload.
func WithoutAcks() Option {
	return func(c *Controller) { c.acks = false }
}

// WithCloseOnReceive makes the controller drop the connection as soon as a
// payload arrives, without replying.
func WithCloseOnReceive() Option {
	return func(c *Controller) { c.closeOnReceive = true }
}

// WithHistory sets how many records are kept.
func WithHistory(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.history = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a controller.
func New(opts ...Option) *Controller {
	c := &Controller{
		conns:   make(map[string]*Connection),
		history: DefaultHistory,
		acks:    true,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "controller")
	return c
}

// OnInstructions sets the callback for every valid payload.
func (c *Controller) OnInstructions(callback func(connID string, batch command.Batch)) {
	c.mu.Lock()
	c.onInstructions = callback
	c.mu.Unlock()
}

// RegisterRoutes registers the WebSocket endpoints at / and /ws.
func (c *Controller) RegisterRoutes(app fiber.Router) {
	app.Get("/", upgradeOnly, websocket.New(c.handleConn))
	app.Get("/ws", upgradeOnly, websocket.New(c.handleConn))
}

func upgradeOnly(ctx *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(ctx) {
		return ctx.Next()
	}
	return fiber.ErrUpgradeRequired
}

// RegisterAPIRoutes registers the inspection API.
func (c *Controller) RegisterAPIRoutes(api fiber.Router) {
	api.Get("/instructions", func(ctx *fiber.Ctx) error {
		records := c.Records()
		return ctx.JSON(fiber.Map{
			"instructions": records,
			"count":        len(records),
		})
	})

	api.Delete("/instructions", func(ctx *fiber.Ctx) error {
		c.Reset()
		return ctx.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/stats", func(ctx *fiber.Ctx) error {
		return ctx.JSON(c.GetStats())
	})
}

// App returns a fiber app with every route registered.
func (c *Controller) App() *fiber.App {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.app == nil {
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})
		c.RegisterRoutes(app)
		c.RegisterAPIRoutes(app.Group("/api"))
		c.app = app
	}
	return c.app
}

// Listen serves on addr until Shutdown.
func (c *Controller) Listen(addr string) error {
	c.logger.Info("controller listening", "addr", addr)
	return c.App().Listen(addr)
}

// Serve serves on ln until Shutdown.
func (c *Controller) Serve(ln net.Listener) error {
	c.logger.Info("controller listening", "addr", ln.Addr().String())
	return c.App().Listener(ln)
}

// Shutdown stops the server.
func (c *Controller) Shutdown() error {
	return c.App().Shutdown()
}

func (c *Controller) handleConn(ws *websocket.Conn) {
	conn := &Connection{
		ID:        uuid.NewString(),
		Conn:      ws,
		Connected: time.Now(),
	}

	c.mu.Lock()
	c.conns[conn.ID] = conn
	count := len(c.conns)
	c.mu.Unlock()

	c.logger.Debug("dispatcher connected", "conn_id", conn.ID, "total", count)

	defer func() {
		c.mu.Lock()
		delete(c.conns, conn.ID)
		count := len(c.conns)
		c.mu.Unlock()
		c.logger.Debug("dispatcher disconnected", "conn_id", conn.ID, "total", count)
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.logger.Debug("read ended", "conn_id", conn.ID, "error", err)
			return
		}
		if !c.handleMessage(conn, data) {
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleMessage processes one frame and reports whether to keep reading.
func (c *Controller) handleMessage(conn *Connection, data []byte) bool {
	if msg, err := protocol.ParseMessage(data); err == nil && msg.Type == protocol.TypePing {
		pong, _ := protocol.NewMessage(protocol.TypePong, nil)
		c.reply(conn, pong)
		return true
	}

	c.payloadsReceived.Add(1)
	rec := Record{
		ConnID:   conn.ID,
		Received: time.Now(),
		Payload:  string(data),
	}

	batch, err := Decode(data)
	if err != nil {
		c.payloadsRejected.Add(1)
		rec.Error = err.Error()
		c.logger.Warn("payload rejected", "conn_id", conn.ID, "payload", rec.Payload, "error", err)
	} else {
		rec.Instructions = batch
		c.logger.Info("instructions received", "conn_id", conn.ID, "instructions", batch.String())
	}
	c.record(rec)

	if err == nil {
		c.mu.RLock()
		cb := c.onInstructions
		c.mu.RUnlock()
		if cb != nil {
			cb(conn.ID, batch)
		}
	}

	if c.closeOnReceive {
		return false
	}
	if !c.acks {
		return true
	}
	if err != nil {
		c.reply(conn, protocol.NewNack(err.Error()))
	} else {
		c.reply(conn, protocol.NewAck(len(batch)))
	}
	return true
}

func (c *Controller) reply(conn *Connection, msg *protocol.Message) {
	if err := conn.Send(msg); err != nil {
		c.logger.Warn("reply failed", "conn_id", conn.ID, "error", err)
		return
	}
	c.repliesSent.Add(1)
}

func (c *Controller) record(r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = append(c.records, r)
	if over := len(c.records) - c.history; over > 0 {
		c.records = append([]Record(nil), c.records[over:]...)
	}
}

// Decode parses and validates an instruction payload in either wire form.
func Decode(data []byte) (command.Batch, error) {
	batch, err := command.ParseBatch(data)
	if err != nil {
		return nil, err
	}
	batch = batch.Normalize()
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	return batch, nil
}

// Records returns received payloads, oldest first.
func (c *Controller) Records() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Record(nil), c.records...)
}

// Instructions returns every valid instruction received, in arrival order.
func (c *Controller) Instructions() []command.Instruction {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []command.Instruction
	for _, r := range c.records {
		out = append(out, r.Instructions...)
	}
	return out
}

// Reset clears the history.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.records = nil
	c.mu.Unlock()
}

// ConnectionCount returns the number of open connections.
func (c *Controller) ConnectionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conns)
}

// Stats contains controller statistics.
type Stats struct {
	Connections      int    `json:"connections"`
	PayloadsReceived uint64 `json:"payloads_received"`
	PayloadsRejected uint64 `json:"payloads_rejected"`
	RepliesSent      uint64 `json:"replies_sent"`
}

// GetStats returns controller statistics.
func (c *Controller) GetStats() Stats {
	return Stats{
		Connections:      c.ConnectionCount(),
		PayloadsReceived: c.payloadsReceived.Load(),
		PayloadsRejected: c.payloadsRejected.Load(),
		RepliesSent:      c.repliesSent.Load(),
	}
}
