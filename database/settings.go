package database

import (
	"context"
	"errors"
	"fanshare/models"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// VersionKey is the settings key holding the applied schema version.
	VersionKey = "schema_version"

	// DefaultVersion is the ledger value of a database no migration has touched.
	DefaultVersion = "0.0.0"
)

// ErrEmptySettingKey is returned for blank setting keys.
var ErrEmptySettingKey = errors.New("empty setting key")

// SettingsStore reads and writes rows of system_settings. It doubles as the schema
// version ledger under VersionKey.
type SettingsStore struct {
	db *gorm.DB
}

// NewSettingsStore binds a store to db.
func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// WithDB returns a store bound to db, typically an open transaction.
func (s *SettingsStore) WithDB(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// EnsureLedger creates the settings table and the default version row if either is
// missing. When both exist it only reads. created reports whether anything was written.
func (s *SettingsStore) EnsureLedger(ctx context.Context) (created bool, err error) {
	db := s.db.WithContext(ctx)

	exists, err := NewSQLiteInspector(s.db).HasTable(ctx, models.SystemSetting{}.TableName())
	if err != nil {
		return false, err
	}
	if !exists {
		if err := db.Migrator().CreateTable(&models.SystemSetting{}); err != nil {
			return false, fmt.Errorf("create settings table: %w", err)
		}
		created = true
	}

	var count int64
	if err := db.Model(&models.SystemSetting{}).Where("key = ?", VersionKey).Count(&count).Error; err != nil {
		return created, fmt.Errorf("check version row: %w", err)
	}
	if count == 0 {
		row := models.SystemSetting{Key: VersionKey, Value: DefaultVersion}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return created, fmt.Errorf("insert default version: %w", err)
		}
		created = true
	}
	return created, nil
}

// GetVersion returns the recorded schema version, creating the ledger with
// DefaultVersion first if it does not exist yet.
func (s *SettingsStore) GetVersion(ctx context.Context) (string, error) {
	if _, err := s.EnsureLedger(ctx); err != nil {
		return "", err
	}
	value, ok, err := s.GetSetting(ctx, VersionKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return DefaultVersion, nil
	}
	return value, nil
}

// SetVersion records v as the applied schema version.
func (s *SettingsStore) SetVersion(ctx context.Context, v string) error {
	return s.SetSetting(ctx, VersionKey, v)
}

// GetSetting returns a persisted key/value setting.
// ok is false when the key does not exist.
func (s *SettingsStore) GetSetting(ctx context.Context, key string) (value string, ok bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, ErrEmptySettingKey
	}

	var rows []models.SystemSetting
	if err := s.db.WithContext(ctx).Where("key = ?", key).Limit(1).Find(&rows).Error; err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Value, true, nil
}

// SetSetting upserts a key/value setting. An existing row keeps its created_at.
func (s *SettingsStore) SetSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptySettingKey
	}

	row := models.SystemSetting{Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a persisted setting if it exists.
func (s *SettingsStore) DeleteSetting(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptySettingKey
	}

	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.SystemSetting{}).Error; err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// ListSettings returns all settings ordered by key.
func (s *SettingsStore) ListSettings(ctx context.Context) ([]models.SystemSetting, error) {
	var rows []models.SystemSetting
	if err := s.db.WithContext(ctx).Order("key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return rows, nil
}
