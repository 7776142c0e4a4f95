package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Status struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Label     string    `gorm:"size:100;not null;unique" json:"label"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetStatusById(ctx context.Context, id int) (*Status, error) {
	var status Status
	err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &status, nil
}

// GetOrCreateStatusByLabel resolves a label coming in from a document.
// The unique index on label makes concurrent first-writers converge on
// a single row instead of duplicating it.
func GetOrCreateStatusByLabel(ctx context.Context, label string) (*Status, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, errors.New("status label is empty")
	}

	db := config.GetDB().WithContext(ctx)
	status := Status{Label: label}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "label"}},
		DoNothing: true,
	}).Create(&status).Error
	if err != nil {
		return nil, err
	}
	if status.ID != 0 {
		return &status, nil
	}

	// Conflict path: another writer owns the row, fetch it.
	var existing Status
	if err := db.Where("label = ?", label).Take(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}
