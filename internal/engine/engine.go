// Package engine is the seam between the lifecycle core and the external
// messaging engine that owns the wire protocol. The core drives the engine
// through Dialer/Conn and consumes typed lifecycle events; it never looks
// inside message content.
package engine

import (
	"context"

	"github.com/gluk-w/bothive/internal/session"
)

// EventType identifies a lifecycle event emitted by an engine connection.
type EventType string

const (
	// EventOpened fires when the engine reports a live session.
	EventOpened EventType = "opened"
	// EventClosed fires on any disconnect; Cause classifies it.
	EventClosed EventType = "closed"
	// EventCredentialsRotated fires when session key material rotates.
	// State carries the new credential state and must be persisted before
	// the next event is consumed.
	EventCredentialsRotated EventType = "credentials_rotated"
)

// CloseCause classifies a disconnect. Terminal causes mean the credential
// is permanently invalid and reconnecting is pointless; everything else is
// transient and resumable with the same credential.
type CloseCause string

const (
	CauseLoggedOut      CloseCause = "logged_out"
	CauseBadSession     CloseCause = "bad_session"
	CauseConnectionLost CloseCause = "connection_lost"
	CauseStreamError    CloseCause = "stream_error"
)

// Terminal reports whether the cause invalidates the credential.
func (c CloseCause) Terminal() bool {
	return c == CauseLoggedOut || c == CauseBadSession
}

// Event is one lifecycle event from an engine connection.
type Event struct {
	Type  EventType
	Cause CloseCause               // set for EventClosed
	Err   error                    // optional detail for EventClosed
	State *session.CredentialState // set for EventCredentialsRotated
}

// Config carries what the engine needs to establish a session.
type Config struct {
	BotName string
	State   *session.CredentialState
}

// Conn is one live engine connection. The Events channel is closed when
// the connection is torn down; if no EventClosed was delivered first, the
// consumer treats the closure as a transient connection loss.
type Conn interface {
	Events() <-chan Event
	// Send delivers a text message to the bot's own account. Best-effort;
	// used only for the connected greeting.
	Send(ctx context.Context, text string) error
	// Close requests a graceful shutdown. Idempotent.
	Close(ctx context.Context) error
}

// Dialer establishes engine connections. Dial returns once the transport
// is up; session establishment completes asynchronously and is reported
// through the Events channel.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Conn, error)
}
