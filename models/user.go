package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID           int        `gorm:"primary_key" json:"id"`
	FirebaseUid  *string    `gorm:"size:128;uniqueIndex" json:"firebase_uid"`
	Identifier   string     `gorm:"size:100;not null;unique" json:"identifier" binding:"required"`
	Name         string     `gorm:"size:150;not null" json:"name" binding:"required"`
	Email        *string    `gorm:"size:150;uniqueIndex" json:"email"`
	Password     string     `gorm:"size:255" json:"password"`
	BirthDate    *time.Time `json:"birth_date"`
	SexId        *int       `json:"sex_id"`
	Sex          *Sex       `json:"sex"`
	UserTypeId   *int       `json:"user_type_id"`
	UserType     *UserType  `json:"user_type"`
	PushToken    string     `gorm:"size:512" json:"push_token"`
	PhotoUrl     string     `json:"photo_url"`
	Synchronized *bool      `gorm:"index" json:"synchronized"`
	LastSyncAt   *time.Time `json:"last_sync_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PrepareGive strips the credential hash before the record leaves the
// backend in any direction.
func (user *User) PrepareGive() {
	user.Password = ""
}

func GetUserById(ctx context.Context, id int) (*User, error) {
	var user User
	err := config.GetDB().WithContext(ctx).
		Preload("Sex").Preload("UserType").
		Where("id = ?", id).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func GetUserByFirebaseUid(ctx context.Context, uid string) (*User, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, utils.ErrorRecordNotFound
	}
	var user User
	err := config.GetDB().WithContext(ctx).Where("firebase_uid = ?", uid).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func GetUserByIdentifier(ctx context.Context, identifier string) (*User, error) {
	var user User
	err := config.GetDB().WithContext(ctx).Where("identifier = ?", identifier).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListUnsynchronizedUsers returns every user that must be pushed:
// never synced, mutated since the last sync, or still missing its
// document-store id.
func ListUnsynchronizedUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := config.GetDB().WithContext(ctx).
		Preload("Sex").Preload("UserType").
		Where("synchronized IS NOT TRUE OR firebase_uid IS NULL OR firebase_uid = ''").
		Find(&users).Error
	return users, err
}
