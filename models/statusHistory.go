package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/utils"
	"gorm.io/gorm"
)

type StatusHistory struct {
	ID           int        `gorm:"primary_key" json:"id"`
	Uid          *string    `gorm:"size:128;uniqueIndex" json:"uid"`
	Date         time.Time  `gorm:"not null;index" json:"date"`
	Description  string     `gorm:"type:text" json:"description"`
	StatusId     int        `gorm:"not null" json:"status_id"`
	Status       *Status    `json:"status"`
	ReportId     int        `gorm:"not null;index" json:"report_id"`
	Report       *Report    `json:"report"`
	ImagesJSON   []byte     `gorm:"type:jsonb" json:"images"`
	Synchronized *bool      `gorm:"index" json:"synchronized"`
	LastSyncAt   *time.Time `json:"last_sync_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (h StatusHistory) TableName() string {
	return "status_history"
}

func (h *StatusHistory) ImageList() []string {
	if len(h.ImagesJSON) == 0 {
		return nil
	}
	var images []string
	if err := json.Unmarshal(h.ImagesJSON, &images); err != nil {
		return nil
	}
	return images
}

func (h *StatusHistory) SetImages(images []string) {
	if len(images) == 0 {
		h.ImagesJSON = nil
		return
	}
	raw, _ := json.Marshal(images)
	h.ImagesJSON = raw
}

func GetStatusHistoryByUid(ctx context.Context, uid string) (*StatusHistory, error) {
	if uid == "" {
		return nil, utils.ErrorRecordNotFound
	}
	var history StatusHistory
	err := config.GetDB().WithContext(ctx).Where("uid = ?", uid).Take(&history).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &history, nil
}

func ListUnsynchronizedStatusHistories(ctx context.Context) ([]StatusHistory, error) {
	var histories []StatusHistory
	err := config.GetDB().WithContext(ctx).
		Preload("Status").
		Where("synchronized IS NOT TRUE OR uid IS NULL OR uid = ''").
		Find(&histories).Error
	return histories, err
}

// CurrentStatusOf picks the entry that defines a report's current
// status: the latest date, ties broken by the higher id.
func CurrentStatusOf(histories []StatusHistory) *StatusHistory {
	var current *StatusHistory
	for i := range histories {
		h := &histories[i]
		if current == nil {
			current = h
			continue
		}
		if h.Date.After(current.Date) || (h.Date.Equal(current.Date) && h.ID > current.ID) {
			current = h
		}
	}
	return current
}

// GetCurrentStatusOfReport resolves the current status from the store,
// applying the same (date, id) ordering in SQL.
func GetCurrentStatusOfReport(ctx context.Context, reportId int) (*StatusHistory, error) {
	var history StatusHistory
	err := config.GetDB().WithContext(ctx).
		Preload("Status").
		Where("report_id = ?", reportId).
		Order("date DESC").Order("id DESC").
		First(&history).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &history, nil
}
