// Package registry persists durable bot metadata: owner, enrollment seed,
// lifecycle status, last activity. It deliberately knows nothing about
// live connections — liveness belongs to the supervisor.
package registry

import (
	"errors"
	"time"
)

// ErrNotFound is returned by Get for an unknown bot.
var ErrNotFound = errors.New("bot not found")

// ErrExists is returned by Create when the bot name is already taken.
var ErrExists = errors.New("bot already exists")

// Status is a bot's persisted lifecycle status.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Record is one bot's durable metadata.
type Record struct {
	BotName        string    `json:"botName"`
	OwnerNumber    string    `json:"ownerNumber"`
	SessionSeed    string    `json:"-"`
	Status         Status    `json:"status"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Registry is the tenant metadata contract, with the same two backends as
// the credential store.
type Registry interface {
	// Create inserts a new bot and fails with ErrExists if the name is
	// taken. Enrollment goes through Create so two concurrent requests
	// for the same name cannot both succeed.
	Create(rec Record) error
	Upsert(rec Record) error
	Get(botName string) (Record, error)
	List() ([]Record, error)
	Remove(botName string) error
	SetStatus(botName string, status Status, at time.Time) error
}
