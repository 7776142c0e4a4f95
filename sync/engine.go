package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/firestore"
	"github.com/lalantsika/lalantsika_backend/models"
	"github.com/sirupsen/logrus"
)

// leaseTTL bounds how long a crashed pass can block its entity type.
const leaseTTL = 10 * time.Minute

// Engine converges the record store and the document store. All batch
// work is sequential; each record is its own relational transaction, so
// overlapping or repeated passes are redundant, never corrupting.
type Engine struct {
	store  *firestore.Client
	logger *logrus.Logger
}

func NewEngine(store *firestore.Client) *Engine {
	return &Engine{store: store, logger: config.GetLogger()}
}

// SyncUnsynchronized pushes every not-yet-synchronized relational row
// of one entity type to the document store.
func (e *Engine) SyncUnsynchronized(ctx context.Context, entity string) (Result, error) {
	return e.withLease(ctx, entity, func() (Result, error) {
		switch entity {
		case EntityUsers:
			return e.syncUsers(ctx)
		case EntityReports:
			return e.syncReports(ctx)
		case EntityStatusHistory:
			return e.syncStatusHistories(ctx)
		case EntitySettings:
			return e.syncSettings(ctx)
		default:
			return Result{}, ErrUnknownEntity
		}
	})
}

// SyncFromStore pulls every not-yet-synchronized document of one
// collection into the record store.
func (e *Engine) SyncFromStore(ctx context.Context, entity string) (Result, error) {
	return e.withLease(ctx, entity, func() (Result, error) {
		switch entity {
		case EntityUsers:
			return e.pullUsers(ctx)
		case EntityReports:
			return e.pullReports(ctx)
		case EntityStatusHistory:
			return e.pullStatusHistories(ctx)
		case EntitySettings:
			return e.pullSettings(ctx)
		default:
			return Result{}, ErrUnknownEntity
		}
	})
}

// ForceResync is the operator escape hatch after suspected drift: it
// resets every row's synchronized flag, then pushes everything.
func (e *Engine) ForceResync(ctx context.Context, entity string) (Result, error) {
	model, ok := entityModel(entity)
	if !ok {
		return Result{}, ErrUnknownEntity
	}
	err := config.GetDB().WithContext(ctx).Model(model).
		Where("id IS NOT NULL").
		Update("synchronized", false).Error
	if err != nil {
		return Result{}, err
	}
	return e.SyncUnsynchronized(ctx, entity)
}

// ForceResyncAll forces every entity type. Entity types that fail at
// the batch level are reported alongside the ones that ran.
func (e *Engine) ForceResyncAll(ctx context.Context) map[string]PassOutcome {
	outcomes := map[string]PassOutcome{}
	for _, entity := range AllEntities {
		res, err := e.ForceResync(ctx, entity)
		if err != nil {
			outcomes[entity] = PassOutcome{Error: err.Error()}
			config.LogError(e.logger, "sync", "ForceResyncAll", "force "+entity, nil, err)
			continue
		}
		out := res
		outcomes[entity] = PassOutcome{Outbound: &out}
	}
	return outcomes
}

func entityModel(entity string) (interface{}, bool) {
	switch entity {
	case EntityUsers:
		return &models.User{}, true
	case EntityReports:
		return &models.Report{}, true
	case EntityStatusHistory:
		return &models.StatusHistory{}, true
	case EntitySettings:
		return &models.Settings{}, true
	default:
		return nil, false
	}
}

// PassOutcome is one entity type's slice of a full pass.
type PassOutcome struct {
	Outbound *Result `json:"outbound,omitempty"`
	Inbound  *Result `json:"inbound,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// RunFullPass converges every entity type in both directions. Entity
// types that fail at the batch level are reported and do not stop the
// remaining types.
func (e *Engine) RunFullPass(ctx context.Context) map[string]PassOutcome {
	outcomes := map[string]PassOutcome{}
	for _, entity := range AllEntities {
		outcome := PassOutcome{}

		out, err := e.SyncUnsynchronized(ctx, entity)
		if err != nil {
			outcome.Error = err.Error()
			config.LogError(e.logger, "sync", "RunFullPass", "outbound "+entity, nil, err)
			outcomes[entity] = outcome
			continue
		}
		outcome.Outbound = &out

		in, err := e.SyncFromStore(ctx, entity)
		if err != nil {
			outcome.Error = err.Error()
			config.LogError(e.logger, "sync", "RunFullPass", "inbound "+entity, nil, err)
		} else {
			outcome.Inbound = &in
		}
		outcomes[entity] = outcome
	}
	return outcomes
}

// withLease serializes passes per entity type. The lease lives in the
// record store so it holds across replicas; a lost race is ErrSyncBusy,
// not a wait.
func (e *Engine) withLease(ctx context.Context, entity string, fn func() (Result, error)) (Result, error) {
	if _, ok := entityModel(entity); !ok {
		return Result{}, ErrUnknownEntity
	}

	owner := uuid.NewString()
	acquired, err := models.AcquireSyncLease(ctx, entity, owner, leaseTTL)
	if err != nil {
		return Result{}, err
	}
	if !acquired {
		return Result{}, ErrSyncBusy
	}
	defer func() {
		if releaseErr := models.ReleaseSyncLease(ctx, entity, owner); releaseErr != nil {
			config.LogError(e.logger, "sync", "withLease", "release "+entity, nil, releaseErr)
		}
	}()

	return fn()
}
