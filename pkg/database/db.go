package database

import (
	"fmt"
	"time"

	"github.com/arnavshah/limits-settings-go/pkg/config"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SettingsID is the primary key of the single settings row
const SettingsID = 1

// SettingsRecord represents the settings table. It holds exactly one row.
type SettingsRecord struct {
	ID            uint           `gorm:"primaryKey;autoIncrement:false" json:"id"`
	DailyLimits   datatypes.JSON `gorm:"not null" json:"daily_limits"`
	MonthlyLimits datatypes.JSON `gorm:"not null" json:"monthly_limits"`
	MLParameters  datatypes.JSON `json:"ml_parameters"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// StaffRecord represents the staff table
type StaffRecord struct {
	ID       string `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Status   string `gorm:"index" json:"status"`
	EndYear  *int   `json:"end_year"`
	EndMonth *int   `json:"end_month"`
	EndDay   *int   `json:"end_day"`
	Position int    `gorm:"not null;default:0" json:"position"`
}

// ScheduleEntryRecord represents the schedule_entries table
type ScheduleEntryRecord struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ScheduleID string `gorm:"index:idx_schedule_date;not null" json:"schedule_id"`
	Date       string `gorm:"index:idx_schedule_date;not null" json:"date"`
	StaffID    string `gorm:"not null" json:"staff_id"`
	ShiftType  string `gorm:"not null" json:"shift_type"`
}

// APIKey represents the api_keys table
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Key        string     `gorm:"unique;not null" json:"-"`
	KeyPreview string     `json:"key_preview"`
	Name       string     `gorm:"not null" json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used"`
}

// APIUsage represents the api_usage table
type APIUsage struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	KeyID        uint   `gorm:"uniqueIndex:idx_key_date;not null" json:"key_id"`
	Date         string `gorm:"uniqueIndex:idx_key_date;not null" json:"date"`
	RequestCount int    `gorm:"default:0" json:"request_count"`
	LimitsServed int    `gorm:"default:0" json:"limits_served"`
}

// MasterUser represents the master_users table
type MasterUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// InitDB opens postgres when a URL is configured and sqlite otherwise, then
// migrates the schema
func InitDB(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var dialector gorm.Dialector
	if cfg.URL != "" {
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.URL,
			PreferSimpleProtocol: true,
		})
		gormCfg.PrepareStmt = false
	} else {
		dialector = sqlite.Open(cfg.Path)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logger.Info("database ready", zap.String("dialect", db.Dialector.Name()))
	return db, nil
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&SettingsRecord{},
		&StaffRecord{},
		&ScheduleEntryRecord{},
		&APIKey{},
		&APIUsage{},
		&MasterUser{},
	); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}
