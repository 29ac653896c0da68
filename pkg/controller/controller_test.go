package controller

import (
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-voicecmd/pkg/command"
	"github.com/teslashibe/go-voicecmd/pkg/protocol"
)

func startController(t *testing.T, opts ...Option) (*Controller, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen error: %v", err)
	}

	c := New(opts...)
	go c.Serve(ln)
	t.Cleanup(func() { _ = c.Shutdown() })

	return c, "ws://" + ln.Addr().String()
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readReply(t *testing.T, ws *websocket.Conn) *protocol.Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage error: %v", err)
	}
	return msg
}

func TestNew(t *testing.T) {
	c := New()

	if c.ConnectionCount() != 0 {
		t.Error("ConnectionCount should be 0 initially")
	}
	if len(c.Records()) != 0 {
		t.Error("Records should be empty initially")
	}

	stats := c.GetStats()
	if stats.PayloadsReceived != 0 || stats.RepliesSent != 0 {
		t.Errorf("Unexpected initial stats: %+v", stats)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`["move","forward","50","cm"]`, `["move","forward","50","cm"]`, false},
		{`["move","forward","50","centimeters"]`, `["move","forward","50","cm"]`, false},
		{`[["move","forward","30","cm"],["turn","left","90","degree"]]`, `[["move","forward","30","cm"],["turn","left","90","degree"]]`, false},
		{`["stop",null,null,null]`, `["stop",null,null,null]`, false},
		{`["move","forward","50"]`, "", true},
		{`["fly",null,null,null]`, "", true},
		{`not json`, "", true},
		{`[]`, "", true},
	}

	for _, tt := range tests {
		got, err := Decode([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("Decode(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got.String() != tt.want {
			t.Errorf("Decode(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestAckOnValidPayload(t *testing.T) {
	c, url := startController(t)

	var gotConn string
	var gotBatch command.Batch
	done := make(chan struct{})
	c.OnInstructions(func(connID string, batch command.Batch) {
		gotConn = connID
		gotBatch = batch
		close(done)
	})

	ws := dial(t, url+"/")
	ws.WriteMessage(websocket.TextMessage, []byte(`[["move","forward","30","cm"],["turn","left","90","degree"]]`))

	msg := readReply(t, ws)
	if msg.Type != protocol.TypeAck {
		t.Fatalf("Type = %s, want ack", msg.Type)
	}
	var ad protocol.AckData
	if err := msg.ParseData(&ad); err != nil {
		t.Fatalf("ParseData error: %v", err)
	}
	if ad.Count != 2 {
		t.Errorf("Count = %d, want 2", ad.Count)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnInstructions callback not called")
	}
	if gotConn == "" || len(gotBatch) != 2 {
		t.Errorf("Callback got conn %q batch %s", gotConn, gotBatch)
	}

	instructions := c.Instructions()
	if len(instructions) != 2 || instructions[0].Intent != command.IntentMove || instructions[1].Intent != command.IntentTurn {
		t.Errorf("Instructions out of order: %v", instructions)
	}
}

func TestNackOnInvalidPayload(t *testing.T) {
	c, url := startController(t)

	ws := dial(t, url+"/ws")
	ws.WriteMessage(websocket.TextMessage, []byte(`["move","forward"]`))

	msg := readReply(t, ws)
	if msg.Type != protocol.TypeNack {
		t.Fatalf("Type = %s, want nack", msg.Type)
	}

	records := c.Records()
	if len(records) != 1 || records[0].Error == "" {
		t.Errorf("Expected one rejected record, got %+v", records)
	}
	if c.GetStats().PayloadsRejected != 1 {
		t.Error("PayloadsRejected should be 1")
	}
}

func TestPingPong(t *testing.T) {
	c, url := startController(t)

	ws := dial(t, url+"/ws")
	msg, _ := protocol.NewMessage(protocol.TypePing, nil)
	data, _ := msg.Bytes()
	ws.WriteMessage(websocket.TextMessage, data)

	if reply := readReply(t, ws); reply.Type != protocol.TypePong {
		t.Errorf("Type = %s, want pong", reply.Type)
	}
	if len(c.Records()) != 0 {
		t.Error("Ping should not be recorded as a payload")
	}
}

func TestWithoutAcks(t *testing.T) {
	c, url := startController(t, WithoutAcks())

	ws := dial(t, url+"/")
	ws.WriteMessage(websocket.TextMessage, []byte(`["scan",null,null,null]`))

	ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("Expected no reply")
	}
	if len(c.Instructions()) != 1 {
		t.Error("Payload should still be recorded")
	}
}

func TestWithCloseOnReceive(t *testing.T) {
	_, url := startController(t, WithCloseOnReceive())

	ws := dial(t, url+"/")
	ws.WriteMessage(websocket.TextMessage, []byte(`["stop",null,null,null]`))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := ws.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("Expected normal close, got %v", err)
	}
}

func TestConnectionTracking(t *testing.T) {
	c, url := startController(t)

	ws := dial(t, url+"/ws")
	time.Sleep(50 * time.Millisecond)

	if c.ConnectionCount() != 1 {
		t.Errorf("ConnectionCount = %d, want 1", c.ConnectionCount())
	}

	ws.Close()
	time.Sleep(100 * time.Millisecond)

	if c.ConnectionCount() != 0 {
		t.Errorf("ConnectionCount = %d, want 0 after disconnect", c.ConnectionCount())
	}
}

func TestHistoryBound(t *testing.T) {
	c := New(WithHistory(2))
	for i := 0; i < 5; i++ {
		c.record(Record{Payload: string(rune('a' + i))})
	}

	records := c.Records()
	if len(records) != 2 || records[0].Payload != "d" || records[1].Payload != "e" {
		t.Errorf("Unexpected history: %+v", records)
	}

	c.Reset()
	if len(c.Records()) != 0 {
		t.Error("Reset should clear history")
	}
}

func TestPlainGetRequiresUpgrade(t *testing.T) {
	c := New()

	resp, err := c.App().Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 426 {
		t.Errorf("Status = %d, want 426", resp.StatusCode)
	}
}

func TestAPIInstructions(t *testing.T) {
	c := New()
	batch, _ := Decode([]byte(`["turn","right","45","degrees"]`))
	c.record(Record{ConnID: "x", Payload: "p", Instructions: batch})

	resp, err := c.App().Test(httptest.NewRequest("GET", "/api/instructions", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var out struct {
		Count        int `json:"count"`
		Instructions []struct {
			Instructions json.RawMessage `json:"instructions"`
		} `json:"instructions"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("Unmarshal error: %v (%s)", err, body)
	}
	if out.Count != 1 || string(out.Instructions[0].Instructions) != `["turn","right","45","degree"]` {
		t.Errorf("Unexpected body: %s", body)
	}

	resp, err = c.App().Test(httptest.NewRequest("DELETE", "/api/instructions", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 204 || len(c.Records()) != 0 {
		t.Errorf("DELETE status = %d, records = %d", resp.StatusCode, len(c.Records()))
	}
}

func TestAPIStats(t *testing.T) {
	c := New()

	resp, err := c.App().Test(httptest.NewRequest("GET", "/api/stats", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "payloads_received") {
		t.Errorf("Response should contain payloads_received: %s", body)
	}
}
