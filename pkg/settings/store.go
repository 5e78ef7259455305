// Package settings persists the settings document, the staff roster and the
// stored schedules.
package settings

import (
	"context"
	"encoding/json"

	"github.com/arnavshah/limits-settings-go/pkg/database"
	"github.com/arnavshah/limits-settings-go/pkg/models"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store reads and writes the whole settings document
type Store interface {
	Read(ctx context.Context) (*models.Settings, error)
	Write(ctx context.Context, s *models.Settings) error
}

// GormStore keeps the settings document in a single database row
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Read returns the stored document, or an empty one if nothing was saved yet
func (s *GormStore) Read(ctx context.Context) (*models.Settings, error) {
	var rec database.SettingsRecord
	err := s.db.WithContext(ctx).Where("id = ?", database.SettingsID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return empty(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read settings")
	}
	return decode(&rec)
}

// Write replaces the stored document
func (s *GormStore) Write(ctx context.Context, doc *models.Settings) error {
	rec, err := encode(doc)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(rec).Error
	return errors.Wrap(err, "write settings")
}

func empty() *models.Settings {
	return &models.Settings{
		DailyLimits:   []models.DailyLimit{},
		MonthlyLimits: []models.MonthlyLimit{},
	}
}

func encode(doc *models.Settings) (*database.SettingsRecord, error) {
	daily := doc.DailyLimits
	if daily == nil {
		daily = []models.DailyLimit{}
	}
	monthly := doc.MonthlyLimits
	if monthly == nil {
		monthly = []models.MonthlyLimit{}
	}

	d, err := json.Marshal(daily)
	if err != nil {
		return nil, errors.Wrap(err, "encode daily limits")
	}
	m, err := json.Marshal(monthly)
	if err != nil {
		return nil, errors.Wrap(err, "encode monthly limits")
	}
	return &database.SettingsRecord{
		ID:            database.SettingsID,
		DailyLimits:   datatypes.JSON(d),
		MonthlyLimits: datatypes.JSON(m),
		MLParameters:  datatypes.JSON(doc.MLParameters),
	}, nil
}

func decode(rec *database.SettingsRecord) (*models.Settings, error) {
	doc := empty()
	if len(rec.DailyLimits) > 0 {
		if err := json.Unmarshal(rec.DailyLimits, &doc.DailyLimits); err != nil {
			return nil, errors.Wrap(err, "decode daily limits")
		}
	}
	if len(rec.MonthlyLimits) > 0 {
		if err := json.Unmarshal(rec.MonthlyLimits, &doc.MonthlyLimits); err != nil {
			return nil, errors.Wrap(err, "decode monthly limits")
		}
	}
	if len(rec.MLParameters) > 0 && string(rec.MLParameters) != "null" {
		doc.MLParameters = json.RawMessage(rec.MLParameters)
	}
	return doc, nil
}
