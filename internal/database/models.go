package database

import "time"

// Bot is the durable tenant record, independent of the live connection.
// Liveness is owned by the supervisor's handle map, not this table.
type Bot struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	Name           string    `gorm:"uniqueIndex;not null;size:64" json:"botName"`
	OwnerNumber    string    `gorm:"not null" json:"ownerNumber"`
	SessionSeed    string    `gorm:"type:text" json:"-"` // original enrollment seed, kept for audit
	Status         string    `gorm:"not null;default:connecting" json:"status"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"-"`
}

// CredentialBlob holds a bot's Fernet-sealed credential state.
type CredentialBlob struct {
	BotName   string    `gorm:"primaryKey;size:64"`
	Blob      []byte    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
