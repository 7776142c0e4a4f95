package sync

import (
	"context"
	"errors"

	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/firestore"
)

// RelationalCounts measures how much of one table has been exported.
type RelationalCounts struct {
	Total          int64   `json:"total"`
	Synced         int64   `json:"synchronized"`
	Unsynchronized int64   `json:"unsynchronized"`
	Percent        float64 `json:"percent"`
	Error          string  `json:"error,omitempty"`
}

// StoreCounts measures one collection's import backlog.
type StoreCounts struct {
	Total          int    `json:"total"`
	Unsynchronized int    `json:"unsynchronized"`
	Error          string `json:"error,omitempty"`
}

// unsyncedWhere matches ListUnsynchronized* so the reporter and the
// engine agree on what still needs pushing.
func unsyncedWhere(entity string) string {
	switch entity {
	case EntityUsers:
		return "synchronized IS NOT TRUE OR firebase_uid IS NULL OR firebase_uid = ''"
	case EntityReports, EntityStatusHistory:
		return "synchronized IS NOT TRUE OR uid IS NULL OR uid = ''"
	default:
		return "synchronized IS NOT TRUE"
	}
}

// RelationalStatus reports outbound progress per entity type. A failed
// entity carries its error instead of failing the whole report.
func (e *Engine) RelationalStatus(ctx context.Context) map[string]RelationalCounts {
	out := map[string]RelationalCounts{}
	for _, entity := range AllEntities {
		model, _ := entityModel(entity)
		counts := RelationalCounts{}

		db := config.GetDB().WithContext(ctx)
		if err := db.Model(model).Count(&counts.Total).Error; err != nil {
			counts.Error = err.Error()
			out[entity] = counts
			continue
		}
		if err := db.Model(model).Where(unsyncedWhere(entity)).Count(&counts.Unsynchronized).Error; err != nil {
			counts = RelationalCounts{Error: err.Error()}
			out[entity] = counts
			continue
		}

		counts.Synced = counts.Total - counts.Unsynchronized
		if counts.Total > 0 {
			counts.Percent = float64(counts.Synced) / float64(counts.Total) * 100
		} else {
			counts.Percent = 100
		}
		out[entity] = counts
	}
	return out
}

// StoreStatus reports inbound backlog per collection.
func (e *Engine) StoreStatus(ctx context.Context) map[string]StoreCounts {
	out := map[string]StoreCounts{}
	for _, entity := range AllEntities {
		counts := StoreCounts{}

		if entity == EntitySettings {
			fields, err := e.store.GetDocument(ctx, EntitySettings, SettingsDocumentId)
			switch {
			case errors.Is(err, firestore.ErrNotFound):
			case err != nil:
				counts.Error = err.Error()
			default:
				counts.Total = 1
				if needsPull(fields) {
					counts.Unsynchronized = 1
				}
			}
			out[entity] = counts
			continue
		}

		docs, err := e.store.ListCollection(ctx, entity)
		if err != nil {
			counts.Error = err.Error()
			out[entity] = counts
			continue
		}
		counts.Total = len(docs)
		for _, fields := range docs {
			if needsPull(fields) {
				counts.Unsynchronized++
			}
		}
		out[entity] = counts
	}
	return out
}
