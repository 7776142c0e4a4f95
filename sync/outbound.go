package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/firestore"
	"github.com/lalantsika/lalantsika_backend/models"
	"github.com/lalantsika/lalantsika_backend/utils"
	"gorm.io/gorm"
)

// syncUsers pushes every unsynchronized user. A record failure is
// logged into the result and the batch moves on.
func (e *Engine) syncUsers(ctx context.Context) (Result, error) {
	users, err := models.ListUnsynchronizedUsers(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Total: len(users)}
	for i := range users {
		user := &users[i]
		if err := e.pushUser(ctx, user); err != nil {
			res.failure(user.ID, stringOrEmpty(user.FirebaseUid), err)
			config.LogError(e.logger, "sync", "syncUsers", "push user", user.ID, err)
			continue
		}
		res.success()
	}
	return res, nil
}

func (e *Engine) syncReports(ctx context.Context) (Result, error) {
	reports, err := models.ListUnsynchronizedReports(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Total: len(reports)}
	for i := range reports {
		report := &reports[i]
		if err := e.pushReport(ctx, report); err != nil {
			res.failure(report.ID, stringOrEmpty(report.Uid), err)
			config.LogError(e.logger, "sync", "syncReports", "push report", report.ID, err)
			continue
		}
		res.success()
	}
	return res, nil
}

func (e *Engine) syncStatusHistories(ctx context.Context) (Result, error) {
	histories, err := models.ListUnsynchronizedStatusHistories(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Total: len(histories)}
	for i := range histories {
		history := &histories[i]
		if err := e.pushStatusHistory(ctx, history); err != nil {
			res.failure(history.ID, stringOrEmpty(history.Uid), err)
			config.LogError(e.logger, "sync", "syncStatusHistories", "push status history", history.ID, err)
			continue
		}
		res.success()
	}
	return res, nil
}

func (e *Engine) syncSettings(ctx context.Context) (Result, error) {
	settings, err := models.GetSettings(ctx)
	if err != nil {
		return Result{}, err
	}
	if settings.Synchronized != nil && *settings.Synchronized {
		return Result{}, nil
	}

	res := Result{Total: 1}
	if err := e.pushSettings(ctx, settings); err != nil {
		res.failure(settings.ID, SettingsDocumentId, err)
		config.LogError(e.logger, "sync", "syncSettings", "push settings", settings.ID, err)
		return res, nil
	}
	res.success()
	return res, nil
}

// pushUser writes the user's document, then marks the row synchronized
// in one transaction. The document never carries the password hash.
func (e *Engine) pushUser(ctx context.Context, user *models.User) error {
	externalId := stringOrEmpty(user.FirebaseUid)
	minted := false
	if externalId == "" {
		externalId = uuid.NewString()
		minted = true
	}

	if err := e.store.PutDocument(ctx, EntityUsers, externalId, userExportFields(user)); err != nil {
		return err
	}

	return config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"synchronized": true,
			"last_sync_at": time.Now().UTC(),
		}
		if minted {
			updates["firebase_uid"] = externalId
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error
	})
}

func (e *Engine) pushReport(ctx context.Context, report *models.Report) error {
	externalId := stringOrEmpty(report.Uid)
	minted := false
	if externalId == "" {
		externalId = uuid.NewString()
		minted = true
	}

	fields, err := e.reportExportFields(ctx, report)
	if err != nil {
		return err
	}
	if err := e.store.PutDocument(ctx, EntityReports, externalId, fields); err != nil {
		return err
	}

	return config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"synchronized": true,
			"last_sync_at": time.Now().UTC(),
		}
		if minted {
			updates["uid"] = externalId
		}
		return tx.Model(&models.Report{}).Where("id = ?", report.ID).Updates(updates).Error
	})
}

func (e *Engine) pushStatusHistory(ctx context.Context, history *models.StatusHistory) error {
	report, err := models.GetReportById(ctx, history.ReportId)
	if err != nil {
		return err
	}
	if stringOrEmpty(report.Uid) == "" {
		// The parent has not been exported yet; a later pass picks
		// this entry up once the report carries its document id.
		return errors.New("parent report has no document id yet")
	}

	externalId := stringOrEmpty(history.Uid)
	minted := false
	if externalId == "" {
		externalId = uuid.NewString()
		minted = true
	}

	fields := statusHistoryExportFields(history, report)
	if err := e.store.PutDocument(ctx, EntityStatusHistory, externalId, fields); err != nil {
		return err
	}

	return config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"synchronized": true,
			"last_sync_at": time.Now().UTC(),
		}
		if minted {
			updates["uid"] = externalId
		}
		return tx.Model(&models.StatusHistory{}).Where("id = ?", history.ID).Updates(updates).Error
	})
}

func (e *Engine) pushSettings(ctx context.Context, settings *models.Settings) error {
	fields := firestore.Fields{
		"id_postgres":    settings.ID,
		"max_tentatives": settings.MaxTentatives,
		"synchronized":   true,
		"last_sync_at":   time.Now().UTC(),
	}
	if err := e.store.PutDocument(ctx, EntitySettings, SettingsDocumentId, fields); err != nil {
		return err
	}

	return config.GetDB().WithContext(ctx).Model(&models.Settings{}).
		Where("id = ?", settings.ID).
		Updates(map[string]interface{}{
			"synchronized": true,
			"last_sync_at": time.Now().UTC(),
		}).Error
}

// userExportFields denormalizes the lookup rows into labels the mobile
// client reads directly. The document carries the synchronized flag so
// the pull leg does not echo a freshly pushed row back.
func userExportFields(user *models.User) firestore.Fields {
	fields := firestore.Fields{
		"id_postgres":  user.ID,
		"identifier":   user.Identifier,
		"name":         user.Name,
		"synchronized": true,
		"last_sync_at": time.Now().UTC(),
	}
	if user.Email != nil {
		fields["email"] = *user.Email
	}
	if user.BirthDate != nil {
		fields["birth_date"] = *user.BirthDate
	}
	if user.Sex != nil {
		fields["sex"] = user.Sex.Label
	}
	if user.UserType != nil {
		fields["user_type"] = user.UserType.Label
	}
	if user.PushToken != "" {
		fields["push_token"] = user.PushToken
	}
	if user.PhotoUrl != "" {
		fields["photo_url"] = user.PhotoUrl
	}
	return fields
}

// reportExportFields embeds the report's current status as a statut
// map so the client needs no join against the history collection.
func (e *Engine) reportExportFields(ctx context.Context, report *models.Report) (firestore.Fields, error) {
	fields := firestore.Fields{
		"id_report_postgres": report.ID,
		"date_creation":      report.DateCreation,
		"description":        report.Description,
		"surface":            report.Surface.InexactFloat64(),
		"budget":             report.Budget.InexactFloat64(),
		"synchronized":       true,
		"last_sync_at":       time.Now().UTC(),
	}
	if report.City != nil {
		fields["city"] = *report.City
	}
	if report.Geom != nil {
		fields["latitude"] = report.Geom.Latitude()
		fields["longitude"] = report.Geom.Longitude()
	}
	if report.Company != nil {
		fields["company"] = report.Company.Name
	}
	if report.UserId != nil {
		fields["id_user_postgres"] = *report.UserId
	}
	if report.User != nil && report.User.FirebaseUid != nil {
		fields["user_uid"] = *report.User.FirebaseUid
	}

	current, err := models.GetCurrentStatusOfReport(ctx, report.ID)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	if current != nil && current.Status != nil {
		fields["statut"] = statusSummaryFields(current)
	}
	return fields, nil
}

// statusSummaryFields is the current-status embed written onto report
// documents: the resolved status plus the date it took effect.
func statusSummaryFields(current *models.StatusHistory) firestore.Fields {
	fields := statusFields(current.Status)
	fields["date"] = current.Date
	return fields
}

func statusHistoryExportFields(history *models.StatusHistory, report *models.Report) firestore.Fields {
	fields := firestore.Fields{
		"id_status_history_postgres": history.ID,
		"id_report_postgres":         report.ID,
		"report_uid":                 stringOrEmpty(report.Uid),
		"date":                       history.Date,
		"description":                history.Description,
		"synchronized":               true,
		"last_sync_at":               time.Now().UTC(),
	}
	if history.Status != nil {
		fields["statut"] = statusFields(history.Status)
	}
	if images := history.ImageList(); len(images) > 0 {
		fields["images"] = images
	}
	return fields
}

func statusFields(status *models.Status) firestore.Fields {
	return firestore.Fields{
		"id":    status.ID,
		"label": status.Label,
	}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
