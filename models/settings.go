package models

import (
	"context"
	"errors"
	"time"

	"github.com/lalantsika/lalantsika_backend/config"
	"gorm.io/gorm"
)

// SettingsRowId pins the singleton row; the matching document in the
// store lives under one well-known id.
const (
	SettingsRowId      = 1
	DefaultMaxAttempts = 3
)

type Settings struct {
	ID            int        `gorm:"primary_key" json:"id"`
	MaxTentatives int        `gorm:"not null" json:"max_tentatives"`
	Synchronized  *bool      `json:"synchronized"`
	LastSyncAt    *time.Time `json:"last_sync_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Settings) TableName() string {
	return "settings"
}

// GetSettings returns the singleton row, creating the default when the
// table is empty.
func GetSettings(ctx context.Context) (*Settings, error) {
	db := config.GetDB().WithContext(ctx)

	var settings Settings
	err := db.Where("id = ?", SettingsRowId).Take(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	settings = Settings{ID: SettingsRowId, MaxTentatives: DefaultMaxAttempts}
	if err := db.Create(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateMaxTentatives mutates the singleton and drops the synchronized
// flag so the change propagates on the next outbound pass.
func UpdateMaxTentatives(ctx context.Context, max int) (*Settings, error) {
	if _, err := GetSettings(ctx); err != nil {
		return nil, err
	}
	err := config.GetDB().WithContext(ctx).Model(&Settings{}).
		Where("id = ?", SettingsRowId).
		Updates(map[string]interface{}{
			"max_tentatives": max,
			"synchronized":   false,
		}).Error
	if err != nil {
		return nil, err
	}
	return GetSettings(ctx)
}
