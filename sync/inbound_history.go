package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/firestore"
	"github.com/lalantsika/lalantsika_backend/models"
	"github.com/lalantsika/lalantsika_backend/utils"
	"gorm.io/gorm"
)

// pullStatusHistories imports status change entries, then reprojects
// the current status onto every report a new entry touched.
func (e *Engine) pullStatusHistories(ctx context.Context) (Result, error) {
	docs, err := e.store.ListCollection(ctx, EntityStatusHistory)
	if err != nil {
		return Result{}, err
	}

	res := Result{}
	affected := map[int]struct{}{}
	for docId, fields := range docs {
		if !needsPull(fields) {
			continue
		}
		res.Total++

		reportId, internalId, err := e.pullStatusHistory(ctx, docId, fields)
		if err != nil {
			res.failure(internalId, docId, err)
			config.LogError(e.logger, "sync", "pullStatusHistories", "pull status history", docId, err)
			continue
		}
		res.success()
		affected[reportId] = struct{}{}
	}

	for reportId := range affected {
		if err := e.projectReportStatus(ctx, reportId); err != nil {
			config.LogError(e.logger, "sync", "pullStatusHistories", "project report status", reportId, err)
		}
	}
	return res, nil
}

func (e *Engine) pullStatusHistory(ctx context.Context, docId string, fields firestore.Fields) (int, int, error) {
	report, err := e.resolveHistoryParent(ctx, fields)
	if err != nil {
		return 0, 0, err
	}

	status, err := e.resolveStatus(ctx, fields)
	if err != nil {
		return report.ID, 0, err
	}

	history, err := e.resolveHistoryRow(ctx, docId, fields)
	if err != nil {
		return report.ID, 0, err
	}

	if date, ok := fields.Time("date"); ok {
		history.Date = date
	} else if history.Date.IsZero() {
		history.Date = time.Now().UTC()
	}
	if description, ok := fields.String("description"); ok {
		history.Description = description
	}
	if images, ok := fields["images"].([]interface{}); ok {
		list := make([]string, 0, len(images))
		for _, img := range images {
			if s, ok := img.(string); ok {
				list = append(list, s)
			}
		}
		history.SetImages(list)
	}

	history.ReportId = report.ID
	history.StatusId = status.ID
	history.Uid = &docId
	synced := true
	history.Synchronized = &synced
	now := time.Now().UTC()
	history.LastSyncAt = &now

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		history.Report = nil
		history.Status = nil
		return tx.Save(history).Error
	})
	if err != nil {
		return report.ID, history.ID, err
	}

	return report.ID, history.ID, e.markDocumentSynchronized(ctx, EntityStatusHistory, docId, fields, "id_status_history_postgres", history.ID)
}

// resolveHistoryParent climbs the reference ladder for the owning
// report: the relational id, then the report uid against the record
// store, then the report document itself. An entry whose parent
// resolves nowhere stays in the document store untouched; a later pass
// retries once the report has been imported.
func (e *Engine) resolveHistoryParent(ctx context.Context, fields firestore.Fields) (*models.Report, error) {
	if id, ok := fields.Int("id_report_postgres"); ok {
		report, err := models.GetReportById(ctx, int(id))
		if err == nil {
			return report, nil
		}
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, err
		}
	}

	reportUid, ok := fields.String("report_uid")
	if !ok || reportUid == "" {
		return nil, errors.New("history document names no parent report")
	}

	report, err := models.GetReportByUid(ctx, reportUid)
	if err == nil {
		return report, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	// Last rung: the report document may know its relational id even
	// though the local uid column was never written.
	reportFields, err := e.store.GetDocument(ctx, EntityReports, reportUid)
	if err != nil {
		if errors.Is(err, firestore.ErrNotFound) {
			return nil, fmt.Errorf("parent report %q is not imported yet", reportUid)
		}
		return nil, err
	}
	if id, ok := reportFields.Int("id_report_postgres"); ok {
		report, err := models.GetReportById(ctx, int(id))
		if err == nil {
			return report, nil
		}
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("parent report %q is not imported yet", reportUid)
}

func (e *Engine) resolveHistoryRow(ctx context.Context, docId string, fields firestore.Fields) (*models.StatusHistory, error) {
	if id, ok := fields.Int("id_status_history_postgres"); ok {
		var history models.StatusHistory
		err := config.GetDB().WithContext(ctx).Where("id = ?", int(id)).Take(&history).Error
		if err == nil {
			return &history, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return &models.StatusHistory{ID: int(id)}, nil
	}

	history, err := models.GetStatusHistoryByUid(ctx, docId)
	if err == nil {
		return history, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	return &models.StatusHistory{}, nil
}
