package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gluk-w/bothive/internal/crypto"
	"github.com/gluk-w/bothive/internal/session"
)

const credsFileName = "creds.enc"

// FS stores credential state in a directory tree: root/<botName>/creds.enc.
// Single-process only; writes are made atomic with a temp file and rename.
type FS struct {
	root  string
	codec *crypto.Codec
}

func NewFS(root string, codec *crypto.Codec) (*FS, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create session root: %w", err)
	}
	return &FS{root: root, codec: codec}, nil
}

func (s *FS) path(botName string) string {
	return filepath.Join(s.root, botName, credsFileName)
}

func (s *FS) Load(botName string) (*session.CredentialState, error) {
	token, err := os.ReadFile(s.path(botName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read credentials for %s: %w", botName, err)
	}
	blob, err := s.codec.Open(token)
	if err != nil {
		return nil, fmt.Errorf("unseal credentials for %s: %w", botName, err)
	}
	return session.FromBlob(blob)
}

func (s *FS) Save(botName string, state *session.CredentialState) error {
	token, err := s.codec.Seal(state.Blob)
	if err != nil {
		return fmt.Errorf("seal credentials for %s: %w", botName, err)
	}

	dir := filepath.Join(s.root, botName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session dir for %s: %w", botName, err)
	}

	tmp, err := os.CreateTemp(dir, credsFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp credentials file: %w", err)
	}
	if _, err := tmp.Write(token); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write credentials for %s: %w", botName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close credentials file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(botName)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit credentials for %s: %w", botName, err)
	}
	return nil
}

// Delete removes only the credential file. The bot's directory may still
// hold registry metadata; the registry prunes the directory when the last
// file goes.
func (s *FS) Delete(botName string) error {
	if err := os.Remove(s.path(botName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete credentials for %s: %w", botName, err)
	}
	os.Remove(filepath.Join(s.root, botName)) // prunes the dir if now empty
	return nil
}
