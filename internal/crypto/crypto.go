// Package crypto encrypts credential blobs at rest with Fernet.
//
// The key lives in a file under the data path rather than in the database
// so that both storage backends (filesystem and relational) can share it.
package crypto

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fernet/fernet-go"
)

const keyFileName = "fernet.key"

// Codec seals and opens credential blobs with a single Fernet key.
type Codec struct {
	key *fernet.Key
}

// Load reads the Fernet key from dataPath, generating and persisting a new
// one on first use.
func Load(dataPath string) (*Codec, error) {
	path := filepath.Join(dataPath, keyFileName)

	raw, err := os.ReadFile(path)
	if err == nil {
		key, err := fernet.DecodeKey(string(raw))
		if err != nil {
			return nil, fmt.Errorf("decode fernet key %s: %w", path, err)
		}
		return &Codec{key: key}, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read fernet key: %w", err)
	}

	var k fernet.Key
	if err := k.Generate(); err != nil {
		return nil, fmt.Errorf("generate fernet key: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("create data path: %w", err)
	}
	if err := os.WriteFile(path, []byte(k.Encode()), 0600); err != nil {
		return nil, fmt.Errorf("save fernet key: %w", err)
	}
	return &Codec{key: &k}, nil
}

// Seal encrypts and signs a plaintext blob.
func (c *Codec) Seal(plain []byte) ([]byte, error) {
	tok, err := fernet.EncryptAndSign(plain, c.key)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return tok, nil
}

// Open verifies and decrypts a sealed blob. Tokens do not expire; the
// credential store is the source of truth for staleness.
func (c *Codec) Open(token []byte) ([]byte, error) {
	msg := fernet.VerifyAndDecrypt(token, 0*time.Second, []*fernet.Key{c.key})
	if msg == nil {
		return nil, fmt.Errorf("decrypt: invalid token")
	}
	return msg, nil
}
