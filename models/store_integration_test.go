package models

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/utils"
)

var dbOnce sync.Once

func requireDB(t *testing.T) {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires postgres with postgis via DB_* env)")
	}
	dbOnce.Do(func() {
		config.ConnectDatabaseWithRetry()
		MigrateTable()
	})
}

func TestAssignReportCompany_DropsSynchronizedFlag(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	user := User{Identifier: "mgr-" + uuid.NewString(), Name: "Manager"}
	if err := config.GetDB().Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	company := Company{Name: "Colas " + uuid.NewString()}
	if err := config.GetDB().Create(&company).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}

	synced := true
	now := time.Now().UTC()
	report := Report{DateCreation: now, UserId: &user.ID, Synchronized: &synced, LastSyncAt: &now}
	if err := config.GetDB().Create(&report).Error; err != nil {
		t.Fatalf("create report: %v", err)
	}

	updated, err := AssignReportCompany(ctx, report.ID, &company.ID)
	if err != nil {
		t.Fatalf("AssignReportCompany: %v", err)
	}
	if updated.CompanyId == nil || *updated.CompanyId != company.ID {
		t.Fatalf("company not assigned: %v", updated.CompanyId)
	}
	if updated.Synchronized != nil && *updated.Synchronized {
		t.Fatal("assignment must drop the synchronized flag")
	}

	// Unknown companies are rejected before anything is written.
	missing := company.ID + 1_000_000
	if _, err := AssignReportCompany(ctx, report.ID, &missing); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("err = %v, want ErrorRecordNotFound", err)
	}
}

func TestSettings_SingletonAndUpdate(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	settings, err := GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings.ID != SettingsRowId {
		t.Fatalf("settings id = %d", settings.ID)
	}

	updated, err := UpdateMaxTentatives(ctx, 7)
	if err != nil {
		t.Fatalf("UpdateMaxTentatives: %v", err)
	}
	if updated.MaxTentatives != 7 {
		t.Fatalf("max_tentatives = %d", updated.MaxTentatives)
	}
	if updated.Synchronized != nil && *updated.Synchronized {
		t.Fatal("update must drop the synchronized flag")
	}
}

func TestLoginAttempts_LockAfterMax(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	identity := "lock-" + uuid.NewString()

	for i := 0; i < 2; i++ {
		locked, err := RegisterFailedLogin(ctx, identity, 3, time.Minute)
		if err != nil {
			t.Fatalf("RegisterFailedLogin: %v", err)
		}
		if locked {
			t.Fatalf("locked after %d attempts", i+1)
		}
	}

	locked, err := RegisterFailedLogin(ctx, identity, 3, time.Minute)
	if err != nil {
		t.Fatalf("RegisterFailedLogin: %v", err)
	}
	if !locked {
		t.Fatal("third failure must lock")
	}
	if isLocked, _ := IsLoginLocked(ctx, identity); !isLocked {
		t.Fatal("IsLoginLocked must report the lockout")
	}

	if err := ResetLoginAttempts(ctx, identity); err != nil {
		t.Fatalf("ResetLoginAttempts: %v", err)
	}
	if isLocked, _ := IsLoginLocked(ctx, identity); isLocked {
		t.Fatal("reset must clear the lockout")
	}
}

func TestSyncLease_MutualExclusion(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	entity := "lease-" + uuid.NewString()

	first, err := AcquireSyncLease(ctx, entity, "owner-a", time.Minute)
	if err != nil {
		t.Fatalf("AcquireSyncLease: %v", err)
	}
	if !first {
		t.Fatal("fresh lease must be acquirable")
	}

	second, err := AcquireSyncLease(ctx, entity, "owner-b", time.Minute)
	if err != nil {
		t.Fatalf("AcquireSyncLease: %v", err)
	}
	if second {
		t.Fatal("held lease must not be acquirable")
	}

	// Only the owner can release; a stranger's release is a no-op.
	if err := ReleaseSyncLease(ctx, entity, "owner-b"); err != nil {
		t.Fatalf("ReleaseSyncLease: %v", err)
	}
	if ok, _ := AcquireSyncLease(ctx, entity, "owner-b", time.Minute); ok {
		t.Fatal("non-owner release must not free the lease")
	}

	if err := ReleaseSyncLease(ctx, entity, "owner-a"); err != nil {
		t.Fatalf("ReleaseSyncLease: %v", err)
	}
	if ok, _ := AcquireSyncLease(ctx, entity, "owner-b", time.Minute); !ok {
		t.Fatal("owner release must free the lease")
	}
}

func TestGetOrCreateStatusByLabel_Converges(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	label := "label-" + uuid.NewString()

	first, err := GetOrCreateStatusByLabel(ctx, label)
	if err != nil {
		t.Fatalf("GetOrCreateStatusByLabel: %v", err)
	}
	second, err := GetOrCreateStatusByLabel(ctx, label)
	if err != nil {
		t.Fatalf("second GetOrCreateStatusByLabel: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("labels diverged: %d vs %d", first.ID, second.ID)
	}
}
