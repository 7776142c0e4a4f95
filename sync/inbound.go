package sync

import (
	"context"
	"errors"
	"time"

	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/firestore"
	"github.com/lalantsika/lalantsika_backend/models"
	"github.com/lalantsika/lalantsika_backend/utils"
	"gorm.io/gorm"
)

// needsPull reports whether a document still awaits import: the
// synchronized marker is absent or explicitly false.
func needsPull(fields firestore.Fields) bool {
	synced, ok := fields.Bool("synchronized")
	return !ok || !synced
}

// markDocumentSynchronized writes the document back with its
// relational cross reference and the synchronized marker set. The
// whole field map is rewritten, so the caller passes the decoded
// document, not a delta.
func (e *Engine) markDocumentSynchronized(ctx context.Context, collection string, docId string, fields firestore.Fields, idFieldName string, internalId int) error {
	fields["synchronized"] = true
	fields["last_sync_at"] = time.Now().UTC()
	if idFieldName != "" {
		fields[idFieldName] = internalId
	}
	return e.store.PutDocument(ctx, collection, docId, fields)
}

// pullUsers imports citizen accounts registered on the mobile side.
func (e *Engine) pullUsers(ctx context.Context) (Result, error) {
	docs, err := e.store.ListCollection(ctx, EntityUsers)
	if err != nil {
		return Result{}, err
	}

	res := Result{}
	for docId, fields := range docs {
		if !needsPull(fields) {
			continue
		}
		res.Total++

		internalId, err := e.pullUser(ctx, docId, fields)
		if err != nil {
			res.failure(internalId, docId, err)
			config.LogError(e.logger, "sync", "pullUsers", "pull user", docId, err)
			continue
		}
		res.success()
	}
	return res, nil
}

// pullUser upserts one user document. The row is matched by the
// document's relational id when it carries one, by firebase uid
// otherwise; an unmatched document becomes a new row.
func (e *Engine) pullUser(ctx context.Context, docId string, fields firestore.Fields) (int, error) {
	user, err := e.resolveUserRow(ctx, docId, fields)
	if err != nil {
		return 0, err
	}

	if identifier, ok := fields.String("identifier"); ok {
		user.Identifier = identifier
	}
	if user.Identifier == "" {
		// Documents created client side may omit an identifier; the
		// uid is unique and stable, so it serves.
		user.Identifier = docId
	}
	if name, ok := fields.String("name"); ok {
		user.Name = name
	}
	if email, ok := fields.String("email"); ok && email != "" {
		user.Email = &email
	}
	if birthDate, ok := fields.Time("birth_date"); ok {
		user.BirthDate = &birthDate
	}
	if pushToken, ok := fields.String("push_token"); ok {
		user.PushToken = pushToken
	}
	if photoUrl, ok := fields.String("photo_url"); ok {
		user.PhotoUrl = photoUrl
	}
	if label, ok := fields.String("sex"); ok && label != "" {
		sex, err := models.GetSexByLabel(ctx, label)
		if err != nil {
			if !errors.Is(err, utils.ErrorRecordNotFound) {
				return user.ID, err
			}
		} else {
			user.SexId = &sex.ID
		}
	}
	userType, err := e.resolveUserType(ctx, fields)
	if err != nil {
		return user.ID, err
	}
	user.UserTypeId = &userType.ID

	user.FirebaseUid = &docId
	synced := true
	user.Synchronized = &synced
	now := time.Now().UTC()
	user.LastSyncAt = &now

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user.Sex = nil
		user.UserType = nil
		return tx.Save(user).Error
	})
	if err != nil {
		return user.ID, err
	}

	return user.ID, e.markDocumentSynchronized(ctx, EntityUsers, docId, fields, "id_postgres", user.ID)
}

func (e *Engine) resolveUserRow(ctx context.Context, docId string, fields firestore.Fields) (*models.User, error) {
	if id, ok := fields.Int("id_postgres"); ok {
		user, err := models.GetUserById(ctx, int(id))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				// Preserve cross-store identity with an explicit-id
				// insert.
				return &models.User{ID: int(id)}, nil
			}
			return nil, err
		}
		return user, nil
	}

	user, err := models.GetUserByFirebaseUid(ctx, docId)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	return &models.User{}, nil
}

// resolveUserType defaults incoming accounts to citizens; managers are
// only ever created backend side.
func (e *Engine) resolveUserType(ctx context.Context, fields firestore.Fields) (*models.UserType, error) {
	label, ok := fields.String("user_type")
	if !ok || label == "" {
		label = models.UserTypeCitizen
	}
	userType, err := models.GetUserTypeByLabel(ctx, label)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return models.GetUserTypeByLabel(ctx, models.UserTypeCitizen)
		}
		return nil, err
	}
	return userType, nil
}

// pullSettings applies the settings singleton document to the pinned
// relational row.
func (e *Engine) pullSettings(ctx context.Context) (Result, error) {
	fields, err := e.store.GetDocument(ctx, EntitySettings, SettingsDocumentId)
	if err != nil {
		if errors.Is(err, firestore.ErrNotFound) {
			return Result{}, nil
		}
		return Result{}, err
	}
	if !needsPull(fields) {
		return Result{}, nil
	}

	res := Result{Total: 1}
	maxTentatives, ok := fields.Int("max_tentatives")
	if !ok {
		res.failure(models.SettingsRowId, SettingsDocumentId, errors.New("settings document has no max_tentatives field"))
		return res, nil
	}

	settings, err := models.GetSettings(ctx)
	if err != nil {
		return Result{}, err
	}
	err = config.GetDB().WithContext(ctx).Model(&models.Settings{}).
		Where("id = ?", settings.ID).
		Updates(map[string]interface{}{
			"max_tentatives": int(maxTentatives),
			"synchronized":   true,
			"last_sync_at":   time.Now().UTC(),
		}).Error
	if err != nil {
		res.failure(settings.ID, SettingsDocumentId, err)
		config.LogError(e.logger, "sync", "pullSettings", "apply settings", nil, err)
		return res, nil
	}

	if err := e.markDocumentSynchronized(ctx, EntitySettings, SettingsDocumentId, fields, "id_postgres", settings.ID); err != nil {
		res.failure(settings.ID, SettingsDocumentId, err)
		return res, nil
	}
	res.success()
	return res, nil
}
