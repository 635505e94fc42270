package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/gluk-w/bothive/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DB is the relational registry backend, one row per bot in the bots table.
type DB struct{}

func NewDB() *DB {
	return &DB{}
}

func toRecord(b database.Bot) Record {
	return Record{
		BotName:        b.Name,
		OwnerNumber:    b.OwnerNumber,
		SessionSeed:    b.SessionSeed,
		Status:         Status(b.Status),
		LastActivityAt: b.LastActivityAt,
		CreatedAt:      b.CreatedAt,
	}
}

func (r *DB) Create(rec Record) error {
	row := database.Bot{
		Name:           rec.BotName,
		OwnerNumber:    rec.OwnerNumber,
		SessionSeed:    rec.SessionSeed,
		Status:         string(rec.Status),
		LastActivityAt: rec.LastActivityAt,
	}
	// DoNothing plus a rows check stays portable across sqlite and
	// postgres; driver duplicate-key errors are not.
	res := database.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("create bot %s: %w", rec.BotName, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrExists
	}
	return nil
}

func (r *DB) Upsert(rec Record) error {
	row := database.Bot{
		Name:           rec.BotName,
		OwnerNumber:    rec.OwnerNumber,
		SessionSeed:    rec.SessionSeed,
		Status:         string(rec.Status),
		LastActivityAt: rec.LastActivityAt,
	}
	err := database.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_number", "session_seed", "status", "last_activity_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert bot %s: %w", rec.BotName, err)
	}
	return nil
}

func (r *DB) Get(botName string) (Record, error) {
	var b database.Bot
	if err := database.DB.Where("name = ?", botName).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get bot %s: %w", botName, err)
	}
	return toRecord(b), nil
}

func (r *DB) List() ([]Record, error) {
	var bots []database.Bot
	if err := database.DB.Order("name").Find(&bots).Error; err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	recs := make([]Record, len(bots))
	for i, b := range bots {
		recs[i] = toRecord(b)
	}
	return recs, nil
}

func (r *DB) Remove(botName string) error {
	if err := database.DB.Where("name = ?", botName).Delete(&database.Bot{}).Error; err != nil {
		return fmt.Errorf("remove bot %s: %w", botName, err)
	}
	return nil
}

func (r *DB) SetStatus(botName string, status Status, at time.Time) error {
	res := database.DB.Model(&database.Bot{}).Where("name = ?", botName).Updates(map[string]interface{}{
		"status":           string(status),
		"last_activity_at": at,
	})
	if res.Error != nil {
		return fmt.Errorf("set status for %s: %w", botName, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
