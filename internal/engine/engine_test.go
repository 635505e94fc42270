package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/gluk-w/bothive/internal/session"
)

func TestCloseCause_Terminal(t *testing.T) {
	tests := []struct {
		cause    CloseCause
		terminal bool
	}{
		{CauseLoggedOut, true},
		{CauseBadSession, true},
		{CauseConnectionLost, false},
		{CauseStreamError, false},
	}
	for _, tt := range tests {
		if got := tt.cause.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.cause, got, tt.terminal)
		}
	}
}

func TestCauseFromWire(t *testing.T) {
	tests := []struct {
		wire string
		want CloseCause
	}{
		{"logged_out", CauseLoggedOut},
		{"bad_session", CauseBadSession},
		{"stream_error", CauseStreamError},
		{"", CauseConnectionLost},
		{"something_new", CauseConnectionLost},
	}
	for _, tt := range tests {
		if got := causeFromWire(tt.wire); got != tt.want {
			t.Errorf("causeFromWire(%q) = %s, want %s", tt.wire, got, tt.want)
		}
	}
}

// A connection whose consumer stopped reading must still tear down: the
// readLoop may be blocked sending into a full events buffer when Close
// arrives, and has to exit instead of leaking with the socket.
func TestGatewayConn_CloseUnblocksReadLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer ws.CloseNow()
		ctx := r.Context()
		if _, _, err := ws.Read(ctx); err != nil { // auth frame
			return
		}
		frame, _ := json.Marshal(gatewayFrame{Type: "open"})
		// Far more frames than the events buffer holds.
		for i := 0; i < 32; i++ {
			if err := ws.Write(ctx, websocket.MessageText, frame); err != nil {
				return
			}
		}
		ws.Read(ctx) // hold the socket open until the client closes
	}))
	defer srv.Close()

	state, err := session.FromBlob([]byte(`{"me":{"id":"254700000001@s.whatsapp.net"},"deviceId":"dev-1"}`))
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}

	d := &GatewayDialer{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}
	conn, err := d.Dial(context.Background(), Config{BotName: "alice", State: state})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	// Give the readLoop time to fill the buffer and block on the next send.
	time.Sleep(100 * time.Millisecond)

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn.Close(closeCtx)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-conn.Events():
			if !ok {
				return // readLoop exited and closed the channel
			}
		case <-deadline:
			t.Fatal("events channel never closed after Close")
		}
	}
}
