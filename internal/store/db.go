package store

import (
	"errors"
	"fmt"

	"github.com/gluk-w/bothive/internal/crypto"
	"github.com/gluk-w/bothive/internal/database"
	"github.com/gluk-w/bothive/internal/session"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DB stores credential state in the credential_blobs table, one row per
// bot. Safe across process replicas sharing the same database.
type DB struct {
	codec *crypto.Codec
}

func NewDB(codec *crypto.Codec) *DB {
	return &DB{codec: codec}
}

func (s *DB) Load(botName string) (*session.CredentialState, error) {
	var row database.CredentialBlob
	if err := database.DB.Where("bot_name = ?", botName).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load credentials for %s: %w", botName, err)
	}
	blob, err := s.codec.Open(row.Blob)
	if err != nil {
		return nil, fmt.Errorf("unseal credentials for %s: %w", botName, err)
	}
	return session.FromBlob(blob)
}

func (s *DB) Save(botName string, state *session.CredentialState) error {
	token, err := s.codec.Seal(state.Blob)
	if err != nil {
		return fmt.Errorf("seal credentials for %s: %w", botName, err)
	}
	row := database.CredentialBlob{BotName: botName, Blob: token}
	err = database.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bot_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"blob", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save credentials for %s: %w", botName, err)
	}
	return nil
}

func (s *DB) Delete(botName string) error {
	if err := database.DB.Where("bot_name = ?", botName).Delete(&database.CredentialBlob{}).Error; err != nil {
		return fmt.Errorf("delete credentials for %s: %w", botName, err)
	}
	return nil
}
