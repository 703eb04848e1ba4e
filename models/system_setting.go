package models

import "time"

// SystemSetting stores small persistent key/value settings, including the schema
// version ledger, in the system_settings table.
type SystemSetting struct {
	Key       string    `gorm:"primaryKey;size:128" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the ledger table name; it is part of the persisted layout.
func (SystemSetting) TableName() string {
	return "system_settings"
}
