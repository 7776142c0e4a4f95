package models

import (
	"context"
	"time"

	"github.com/lalantsika/lalantsika_backend/config"
	"gorm.io/gorm/clause"
)

// SyncLease excludes overlapping sync passes per entity type. A pass
// acquires the lease by conditional update; a crashed holder's lease
// simply expires, so nothing stays stuck.
type SyncLease struct {
	ID          int       `gorm:"primary_key" json:"id"`
	EntityType  string    `gorm:"size:50;not null;uniqueIndex" json:"entity_type"`
	LockedUntil time.Time `gorm:"not null" json:"locked_until"`
	Owner       string    `gorm:"size:128" json:"owner"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AcquireSyncLease takes the per-entity-type lease for ttl. Returns
// false when another pass currently holds it.
func AcquireSyncLease(ctx context.Context, entityType string, owner string, ttl time.Duration) (bool, error) {
	db := config.GetDB().WithContext(ctx)
	now := time.Now()

	res := db.Model(&SyncLease{}).
		Where("entity_type = ? AND locked_until < ?", entityType, now).
		Updates(map[string]interface{}{"locked_until": now.Add(ttl), "owner": owner})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	lease := SyncLease{EntityType: entityType, LockedUntil: now.Add(ttl), Owner: owner}
	createRes := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_type"}},
		DoNothing: true,
	}).Create(&lease)
	if createRes.Error != nil {
		return false, createRes.Error
	}
	return createRes.RowsAffected == 1, nil
}

// ReleaseSyncLease ends the holder's lease early. Only the owner may
// release; a stale release from a crashed pass is a no-op.
func ReleaseSyncLease(ctx context.Context, entityType string, owner string) error {
	return config.GetDB().WithContext(ctx).Model(&SyncLease{}).
		Where("entity_type = ? AND owner = ?", entityType, owner).
		Update("locked_until", time.Now()).Error
}
