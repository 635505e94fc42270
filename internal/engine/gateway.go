package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gluk-w/bothive/internal/logutil"
	"github.com/gluk-w/bothive/internal/session"
)

const gatewayDialTimeout = 30 * time.Second

// GatewayDialer connects bots to the messaging gateway over WebSocket.
// The gateway speaks a small JSON frame protocol: the client sends an auth
// frame carrying the credential blob, then receives lifecycle frames
// (open, creds, close) and may send message frames.
type GatewayDialer struct {
	URL string
}

// gatewayFrame is the wire shape in both directions.
type gatewayFrame struct {
	Type    string          `json:"type"`
	BotName string          `json:"botName,omitempty"`
	Creds   json.RawMessage `json:"creds,omitempty"`
	Cause   string          `json:"cause,omitempty"`
	To      string          `json:"to,omitempty"`
	Text    string          `json:"text,omitempty"`
}

func (d *GatewayDialer) Dial(ctx context.Context, cfg Config) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, gatewayDialTimeout)
	defer cancel()

	ws, _, err := websocket.Dial(dialCtx, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	auth := gatewayFrame{
		Type:    "auth",
		BotName: cfg.BotName,
		Creds:   json.RawMessage(cfg.State.Blob),
	}
	raw, err := json.Marshal(auth)
	if err != nil {
		ws.CloseNow()
		return nil, fmt.Errorf("encode auth frame: %w", err)
	}
	if err := ws.Write(dialCtx, websocket.MessageText, raw); err != nil {
		ws.CloseNow()
		return nil, fmt.Errorf("send auth frame: %w", err)
	}

	conn := &gatewayConn{
		ws:      ws,
		botName: cfg.BotName,
		me:      cfg.State.Me.ID,
		events:  make(chan Event, 8),
		done:    make(chan struct{}),
	}
	go conn.readLoop()
	return conn, nil
}

// gatewayConn adapts one gateway WebSocket to the Conn interface.
type gatewayConn struct {
	ws      *websocket.Conn
	botName string
	me      string
	events  chan Event
	done    chan struct{} // closed by Close; unblocks readLoop sends

	closeOnce sync.Once
}

func (c *gatewayConn) Events() <-chan Event {
	return c.events
}

func (c *gatewayConn) Send(ctx context.Context, text string) error {
	raw, err := json.Marshal(gatewayFrame{Type: "message", To: c.me, Text: text})
	if err != nil {
		return fmt.Errorf("encode message frame: %w", err)
	}
	if err := c.ws.Write(ctx, websocket.MessageText, raw); err != nil {
		return fmt.Errorf("send message frame: %w", err)
	}
	return nil
}

func (c *gatewayConn) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close(websocket.StatusNormalClosure, "stopped")
	})
	return err
}

// emit delivers an event unless the consumer is gone. The events buffer
// can be full when the supervisor stops mid-session; without the done
// select the readLoop would block on the send forever.
func (c *gatewayConn) emit(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// readLoop translates gateway frames into lifecycle events. It owns the
// events channel and closes it on exit; a read failure without a prior
// close frame surfaces as a transient connection loss.
func (c *gatewayConn) readLoop() {
	defer close(c.events)
	ctx := context.Background()

	for {
		_, raw, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return
			}
			c.emit(Event{Type: EventClosed, Cause: CauseConnectionLost, Err: err})
			return
		}

		var frame gatewayFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("[engine] bot %s: malformed gateway frame: %v", logutil.SanitizeForLog(c.botName), err)
			continue
		}

		switch frame.Type {
		case "open":
			if !c.emit(Event{Type: EventOpened}) {
				return
			}
		case "creds":
			state, err := session.FromBlob(frame.Creds)
			if err != nil {
				log.Printf("[engine] bot %s: rejected rotated credentials: %v", logutil.SanitizeForLog(c.botName), err)
				continue
			}
			if !c.emit(Event{Type: EventCredentialsRotated, State: state}) {
				return
			}
		case "close":
			c.emit(Event{Type: EventClosed, Cause: causeFromWire(frame.Cause)})
			c.ws.CloseNow()
			return
		}
	}
}

// causeFromWire maps a gateway close cause onto the core's classification.
// Unknown causes default to transient, matching the policy that only an
// explicit credential invalidation stops retries.
func causeFromWire(cause string) CloseCause {
	switch cause {
	case "logged_out":
		return CauseLoggedOut
	case "bad_session":
		return CauseBadSession
	case "stream_error":
		return CauseStreamError
	default:
		return CauseConnectionLost
	}
}
