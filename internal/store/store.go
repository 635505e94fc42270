// Package store persists per-bot credential state.
//
// Two backends implement the same three-operation contract: a filesystem
// tree (one directory per bot) and a relational table. The lifecycle core
// never branches on which one it was given. Both seal blobs with Fernet
// before they touch the backend.
package store

import (
	"errors"

	"github.com/gluk-w/bothive/internal/session"
)

// ErrNotFound is returned by Load when no credential state is persisted
// for the bot.
var ErrNotFound = errors.New("credentials not found")

// Store is the credential persistence contract. Save must be visible to a
// subsequent Load from any replica sharing the backend; Delete is
// idempotent.
type Store interface {
	Load(botName string) (*session.CredentialState, error)
	Save(botName string, state *session.CredentialState) error
	Delete(botName string) error
}
