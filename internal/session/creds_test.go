package session

import (
	"encoding/base64"
	"errors"
	"testing"
)

func encodeSeed(t *testing.T, blob string) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte(blob))
}

func TestDecodeSeed_Valid(t *testing.T) {
	blob := `{"me":{"id":"254700000001:12@s.whatsapp.net","name":"alice"},"deviceId":"dev-1","signedIdentityKey":{"private":"xx"}}`
	state, err := DecodeSeed(encodeSeed(t, blob))
	if err != nil {
		t.Fatalf("DecodeSeed: %v", err)
	}
	if state.Me.ID != "254700000001:12@s.whatsapp.net" {
		t.Errorf("unexpected identity: %q", state.Me.ID)
	}
	if state.DeviceID != "dev-1" {
		t.Errorf("unexpected device: %q", state.DeviceID)
	}
	if string(state.Blob) != blob {
		t.Error("blob not preserved byte-for-byte")
	}
}

func TestDecodeSeed_Invalid(t *testing.T) {
	tests := []struct {
		name string
		seed string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"not json", encodeSeed(t, "hello world")},
		{"missing me", encodeSeed(t, `{"deviceId":"dev-1"}`)},
		{"empty me.id", encodeSeed(t, `{"me":{"id":""},"deviceId":"dev-1"}`)},
		{"missing deviceId", encodeSeed(t, `{"me":{"id":"a@b"}}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSeed(tt.seed)
			if !errors.Is(err, ErrInvalidSeed) {
				t.Fatalf("expected ErrInvalidSeed, got %v", err)
			}
		})
	}
}

func TestFromBlob_RoundTrip(t *testing.T) {
	blob := []byte(`{"me":{"id":"a@b"},"deviceId":"d","extra":[1,2,3]}`)
	state, err := FromBlob(blob)
	if err != nil {
		t.Fatalf("FromBlob: %v", err)
	}
	again, err := FromBlob(state.Blob)
	if err != nil {
		t.Fatalf("FromBlob round trip: %v", err)
	}
	if string(again.Blob) != string(blob) {
		t.Error("blob changed across round trip")
	}
}
