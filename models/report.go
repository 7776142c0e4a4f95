package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Report struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Uid          *string         `gorm:"size:128;uniqueIndex" json:"uid"`
	DateCreation time.Time       `gorm:"not null" json:"date_creation"`
	Surface      decimal.Decimal `gorm:"type:numeric(14,2)" json:"surface"`
	Budget       decimal.Decimal `gorm:"type:numeric(16,2)" json:"budget"`
	Description  string          `gorm:"type:text" json:"description"`
	Geom         *GeoPoint       `json:"geom"`
	City         *string         `gorm:"size:150" json:"city"`
	CompanyId    *int            `json:"company_id"`
	Company      *Company        `json:"company"`
	UserId       *int            `json:"user_id"`
	User         *User           `json:"user"`
	Synchronized *bool           `gorm:"index" json:"synchronized"`
	LastSyncAt   *time.Time      `json:"last_sync_at"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetReportById(ctx context.Context, id int) (*Report, error) {
	var report Report
	err := config.GetDB().WithContext(ctx).
		Preload("Company").Preload("User").
		Where("id = ?", id).Take(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &report, nil
}

func GetReportByUid(ctx context.Context, uid string) (*Report, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, utils.ErrorRecordNotFound
	}
	var report Report
	err := config.GetDB().WithContext(ctx).Where("uid = ?", uid).Take(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &report, nil
}

func ListUnsynchronizedReports(ctx context.Context) ([]Report, error) {
	var reports []Report
	err := config.GetDB().WithContext(ctx).
		Preload("Company").Preload("User").
		Where("synchronized IS NOT TRUE OR uid IS NULL OR uid = ''").
		Find(&reports).Error
	return reports, err
}

// AssignReportCompany reassigns a report to a company and drops the
// synchronized flag so the next outbound pass re-propagates it.
func AssignReportCompany(ctx context.Context, reportId int, companyId *int) (*Report, error) {
	db := config.GetDB().WithContext(ctx)

	if companyId != nil {
		if _, err := GetCompanyById(ctx, *companyId); err != nil {
			return nil, err
		}
	}

	res := db.Model(&Report{}).Where("id = ?", reportId).Updates(map[string]interface{}{
		"company_id":   companyId,
		"synchronized": false,
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return GetReportById(ctx, reportId)
}
