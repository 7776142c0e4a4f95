package models

import (
	"context"
	"errors"
	"time"

	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/utils"
	"gorm.io/gorm"
)

// Company is relational-only: reports may be assigned to one, and the
// assignment rides along on the report's exported document as a label.
type Company struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:150;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:150" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetCompanyById(ctx context.Context, id int) (*Company, error) {
	var company Company
	err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &company, nil
}
