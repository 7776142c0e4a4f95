package sync

import (
	"context"
	"errors"
	"os"

	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/firestore"
	"github.com/lalantsika/lalantsika_backend/models"
	"github.com/lalantsika/lalantsika_backend/utils"
)

// statusChangedMessage is what downstream notifiers consume when a
// report's current status moves.
type statusChangedMessage struct {
	ReportId    int    `json:"report_id"`
	ReportUid   string `json:"report_uid"`
	StatusId    int    `json:"status_id"`
	StatusLabel string `json:"status_label"`
	PushToken   string `json:"push_token,omitempty"`
}

// projectReportStatus rewrites the statut embed on a report's document
// from the report's newest history entry, then announces the change.
// Reports that never made it to the document store are skipped.
func (e *Engine) projectReportStatus(ctx context.Context, reportId int) error {
	report, err := models.GetReportById(ctx, reportId)
	if err != nil {
		return err
	}
	if stringOrEmpty(report.Uid) == "" {
		return nil
	}

	current, err := models.GetCurrentStatusOfReport(ctx, reportId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil
		}
		return err
	}
	if current.Status == nil {
		return nil
	}

	fields, err := e.store.GetDocument(ctx, EntityReports, *report.Uid)
	if err != nil {
		if errors.Is(err, firestore.ErrNotFound) {
			return nil
		}
		return err
	}

	fields["statut"] = statusSummaryFields(current)
	if err := e.store.PutDocument(ctx, EntityReports, *report.Uid, fields); err != nil {
		return err
	}

	e.notifyStatusChanged(ctx, report, current)
	return nil
}

// notifyStatusChanged publishes the change for push delivery. Delivery
// is best effort; a broker failure never fails the sync pass.
func (e *Engine) notifyStatusChanged(ctx context.Context, report *models.Report, current *models.StatusHistory) {
	topicName := os.Getenv("SYNC_NOTIFY_TOPIC")
	if topicName == "" {
		topicName = "report-status-changed"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		config.LogError(e.logger, "sync", "notifyStatusChanged", "pubsub client", report.ID, err)
		return
	}

	msg := statusChangedMessage{
		ReportId:    report.ID,
		ReportUid:   stringOrEmpty(report.Uid),
		StatusId:    current.Status.ID,
		StatusLabel: current.Status.Label,
	}
	if report.UserId != nil {
		if owner, err := models.GetUserById(ctx, *report.UserId); err == nil {
			msg.PushToken = owner.PushToken
		}
	}

	raw, err := utils.MarshalToJSON(msg)
	if err != nil {
		config.LogError(e.logger, "sync", "notifyStatusChanged", "marshal message", report.ID, err)
		return
	}

	topic, err := config.CreateTopicIfNotExists(client, topicName)
	if err != nil {
		config.LogError(e.logger, "sync", "notifyStatusChanged", "resolve topic", report.ID, err)
		return
	}

	if _, err := publish(ctx, topic, []byte(raw)); err != nil {
		config.LogError(e.logger, "sync", "notifyStatusChanged", "publish", report.ID, err)
	}
}
