// Package session defines the credential material a hosted bot needs to
// establish or resume a messaging session.
//
// The enrollment seed is a base64-encoded JSON credential blob supplied by
// the caller at enrollment time. After the first successful connection the
// engine rotates key material and the persisted CredentialState supersedes
// the seed; the seed is kept on the tenant record only for audit and
// re-enrollment.
package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSeed indicates an enrollment seed that could not be decoded or
// that fails schema validation. Callers must not create any state when
// they see this error.
var ErrInvalidSeed = errors.New("invalid session seed")

// Identity is the account the credential authenticates as.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// CredentialState is the mutable authentication material required to
// maintain or resume a session without re-enrollment. The raw blob is kept
// byte-for-byte so the engine reads back exactly what it last wrote;
// Me and DeviceID are extracted for validation and logging only.
type CredentialState struct {
	Me       Identity
	DeviceID string
	Blob     []byte
}

// credsSchema is the subset of the blob the lifecycle core validates.
// Everything else in the blob is opaque engine key material.
type credsSchema struct {
	Me       *Identity `json:"me"`
	DeviceID string    `json:"deviceId"`
}

// DecodeSeed decodes a base64 enrollment seed into a CredentialState.
// The decoded JSON must carry an identity (me.id) and a device (deviceId);
// anything else is rejected with ErrInvalidSeed.
func DecodeSeed(seed string) (*CredentialState, error) {
	blob, err := base64.StdEncoding.DecodeString(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64: %v", ErrInvalidSeed, err)
	}
	return FromBlob(blob)
}

// FromBlob validates a raw credential blob (a freshly decoded seed or a
// blob read back from the credential store) and wraps it in a
// CredentialState.
func FromBlob(blob []byte) (*CredentialState, error) {
	var schema credsSchema
	if err := json.Unmarshal(blob, &schema); err != nil {
		return nil, fmt.Errorf("%w: not JSON: %v", ErrInvalidSeed, err)
	}
	if schema.Me == nil || schema.Me.ID == "" {
		return nil, fmt.Errorf("%w: missing me.id", ErrInvalidSeed)
	}
	if schema.DeviceID == "" {
		return nil, fmt.Errorf("%w: missing deviceId", ErrInvalidSeed)
	}
	return &CredentialState{
		Me:       *schema.Me,
		DeviceID: schema.DeviceID,
		Blob:     blob,
	}, nil
}

// ValidateSeed reports whether a seed would decode, without retaining the
// result. Used by the HTTP layer for early rejection.
func ValidateSeed(seed string) error {
	_, err := DecodeSeed(seed)
	return err
}
