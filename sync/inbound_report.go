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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// pullReports imports defect reports filed from the mobile client.
func (e *Engine) pullReports(ctx context.Context) (Result, error) {
	docs, err := e.store.ListCollection(ctx, EntityReports)
	if err != nil {
		return Result{}, err
	}

	res := Result{}
	for docId, fields := range docs {
		if !needsPull(fields) {
			continue
		}
		res.Total++

		internalId, err := e.pullReport(ctx, docId, fields)
		if err != nil {
			res.failure(internalId, docId, err)
			config.LogError(e.logger, "sync", "pullReports", "pull report", docId, err)
			continue
		}
		res.success()
	}
	return res, nil
}

func (e *Engine) pullReport(ctx context.Context, docId string, fields firestore.Fields) (int, error) {
	// The embedded status is resolved first so its label exists as a
	// relational row even when the report itself carries no status
	// column; history entries referencing it land later in the pass.
	if _, err := e.resolveStatus(ctx, fields); err != nil && !errors.Is(err, errNoStatus) {
		return 0, err
	}

	owner, err := e.resolveReportOwner(ctx, fields)
	if err != nil {
		return 0, err
	}

	report, err := e.resolveReportRow(ctx, docId, fields)
	if err != nil {
		return 0, err
	}

	if date, ok := fields.Time("date_creation"); ok {
		report.DateCreation = date
	} else if report.DateCreation.IsZero() {
		report.DateCreation = time.Now().UTC()
	}
	if description, ok := fields.String("description"); ok {
		report.Description = description
	}
	if city, ok := fields.String("city"); ok && city != "" {
		report.City = &city
	}
	if surface, ok := fields.Float("surface"); ok {
		report.Surface = decimal.NewFromFloat(surface)
	}
	if budget, ok := fields.Float("budget"); ok {
		report.Budget = decimal.NewFromFloat(budget)
	}

	// Both coordinates or none; a document with only one is treated
	// as having no location.
	latitude, okLat := fields.Float("latitude")
	longitude, okLon := fields.Float("longitude")
	if okLat && okLon {
		report.Geom = models.NewGeoPoint(latitude, longitude)
	}

	if owner != nil {
		report.UserId = &owner.ID
	}
	report.Uid = &docId
	synced := true
	report.Synchronized = &synced
	now := time.Now().UTC()
	report.LastSyncAt = &now

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report.User = nil
		report.Company = nil
		return tx.Save(report).Error
	})
	if err != nil {
		return report.ID, err
	}

	return report.ID, e.markDocumentSynchronized(ctx, EntityReports, docId, fields, "id_report_postgres", report.ID)
}

// resolveReportOwner finds the user a pulled report belongs to. The
// relational id wins when the document carries one; the firebase uid
// is the fallback. A document naming no owner at all resolves to nil,
// an anonymous report. Only a named-but-missing owner is an error.
func (e *Engine) resolveReportOwner(ctx context.Context, fields firestore.Fields) (*models.User, error) {
	if id, ok := fields.Int("id_user_postgres"); ok {
		user, err := models.GetUserById(ctx, int(id))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return nil, fmt.Errorf("report owner row %d does not exist", id)
			}
			return nil, err
		}
		return user, nil
	}

	uid, ok := fields.String("user_uid")
	if !ok || uid == "" {
		return nil, nil
	}
	user, err := models.GetUserByFirebaseUid(ctx, uid)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, fmt.Errorf("report owner %q is not imported yet", uid)
		}
		return nil, err
	}
	return user, nil
}

func (e *Engine) resolveReportRow(ctx context.Context, docId string, fields firestore.Fields) (*models.Report, error) {
	if id, ok := fields.Int("id_report_postgres"); ok {
		report, err := models.GetReportById(ctx, int(id))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				// Explicit-id insert keeps the two stores agreeing on
				// the relational id the document already names.
				return &models.Report{ID: int(id)}, nil
			}
			return nil, err
		}
		return report, nil
	}

	report, err := models.GetReportByUid(ctx, docId)
	if err == nil {
		return report, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	return &models.Report{}, nil
}

var errNoStatus = errors.New("document carries no status")

// resolveStatus maps an embedded statut value to a relational Status
// row, creating the label when it is new.
func (e *Engine) resolveStatus(ctx context.Context, fields firestore.Fields) (*models.Status, error) {
	statut, ok := fields.Map("statut")
	if !ok {
		return nil, errNoStatus
	}

	if id, ok := statut.Int("id"); ok {
		status, err := models.GetStatusById(ctx, int(id))
		if err == nil {
			return status, nil
		}
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, err
		}
		// Stale relational id; fall through to the label.
	}

	label, ok := statut.String("label")
	if !ok || label == "" {
		return nil, errNoStatus
	}
	return models.GetOrCreateStatusByLabel(ctx, label)
}
