package service

import (
	"context"
	"errors"
	"fanshare/database"
	"fanshare/models"
	"fmt"
	"strings"
)

const maxSettingKeyLen = 128

var (
	ErrSettingNotFound = errors.New("setting not found")
	ErrSettingReadOnly = errors.New("setting is read-only")
	ErrInvalidSetting  = errors.New("invalid setting")
)

// SettingsService handles the generic key/value settings exposed over HTTP
type SettingsService struct {
	store *database.SettingsStore
}

// NewSettingsService constructs a settings service
func NewSettingsService(store *database.SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

// List returns every setting, including the schema version.
func (s *SettingsService) List(ctx context.Context) ([]models.SystemSetting, error) {
	return s.store.ListSettings(ctx)
}

// Get fetches one setting value.
func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return "", err
	}
	value, ok, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSettingNotFound, key)
	}
	return value, nil
}

// Set upserts a setting. The schema version is owned by the migration runner.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	key, err := s.writableKey(key)
	if err != nil {
		return err
	}
	return s.store.SetSetting(ctx, key, value)
}

// Delete removes a setting.
func (s *SettingsService) Delete(ctx context.Context, key string) error {
	key, err := s.writableKey(key)
	if err != nil {
		return err
	}
	if _, ok, err := s.store.GetSetting(ctx, key); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrSettingNotFound, key)
	}
	return s.store.DeleteSetting(ctx, key)
}

func (s *SettingsService) writableKey(key string) (string, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(key, database.VersionKey) {
		return "", fmt.Errorf("%w: %s", ErrSettingReadOnly, key)
	}
	return key, nil
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidSetting)
	}
	if len(key) > maxSettingKeyLen {
		return "", fmt.Errorf("%w: key longer than %d bytes", ErrInvalidSetting, maxSettingKeyLen)
	}
	return key, nil
}
