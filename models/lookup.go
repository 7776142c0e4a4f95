package models

import (
	"context"
	"errors"
	"time"

	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/utils"
	"gorm.io/gorm"
)

const (
	UserTypeCitizen = "citizen"
	UserTypeManager = "manager"
)

type Sex struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Label     string    `gorm:"size:50;not null;unique" json:"label"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type UserType struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Label     string    `gorm:"size:50;not null;unique" json:"label"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetSexByLabel(ctx context.Context, label string) (*Sex, error) {
	var sex Sex
	err := config.GetDB().WithContext(ctx).Where("label = ?", label).Take(&sex).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &sex, nil
}

func GetUserTypeById(ctx context.Context, id int) (*UserType, error) {
	var userType UserType
	err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&userType).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &userType, nil
}

func GetUserTypeByLabel(ctx context.Context, label string) (*UserType, error) {
	var userType UserType
	err := config.GetDB().WithContext(ctx).Where("label = ?", label).Take(&userType).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &userType, nil
}
