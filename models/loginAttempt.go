package models

import (
	"context"
	"time"

	"github.com/lalantsika/lalantsika_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoginAttempt keeps per-identity failure counters in the record store
// so lockouts survive restarts and hold across replicas.
type LoginAttempt struct {
	ID           int        `gorm:"primary_key" json:"id"`
	Identity     string     `gorm:"size:150;not null;uniqueIndex" json:"identity"`
	Count        int        `gorm:"not null;default:0" json:"count"`
	LastFailedAt *time.Time `json:"last_failed_at"`
	LockedUntil  *time.Time `json:"locked_until"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsLoginLocked reports whether the identity is currently locked out.
func IsLoginLocked(ctx context.Context, identity string) (bool, error) {
	var count int64
	err := config.GetDB().WithContext(ctx).Model(&LoginAttempt{}).
		Where("identity = ? AND locked_until IS NOT NULL AND locked_until > ?", identity, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RegisterFailedLogin bumps the identity's counter atomically and locks
// the identity for lockFor once the counter reaches maxAttempts.
// Returns whether the identity is now locked.
func RegisterFailedLogin(ctx context.Context, identity string, maxAttempts int, lockFor time.Duration) (bool, error) {
	db := config.GetDB().WithContext(ctx)
	now := time.Now()

	attempt := LoginAttempt{Identity: identity, Count: 1, LastFailedAt: &now}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "identity"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":          gorm.Expr("login_attempts.count + 1"),
			"last_failed_at": now,
		}),
	}).Create(&attempt).Error
	if err != nil {
		return false, err
	}

	var current LoginAttempt
	if err := db.Where("identity = ?", identity).Take(&current).Error; err != nil {
		return false, err
	}
	if current.Count < maxAttempts {
		return false, nil
	}

	lockedUntil := now.Add(lockFor)
	err = db.Model(&LoginAttempt{}).Where("identity = ?", identity).
		Updates(map[string]interface{}{"locked_until": lockedUntil, "count": 0}).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

// ResetLoginAttempts clears the counter and any lockout after a
// successful login.
func ResetLoginAttempts(ctx context.Context, identity string) error {
	return config.GetDB().WithContext(ctx).Model(&LoginAttempt{}).
		Where("identity = ?", identity).
		Updates(map[string]interface{}{"count": 0, "locked_until": nil}).Error
}
