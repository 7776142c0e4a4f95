package sync

import "errors"

// Entity type names double as document-store collection ids.
const (
	EntityUsers         = "users"
	EntityReports       = "reports"
	EntityStatusHistory = "status_history"
	EntitySettings      = "settings"
)

// SettingsDocumentId is the well-known id of the settings singleton's
// document.
const SettingsDocumentId = "settings"

// AllEntities lists every synchronized entity type in pass order.
// Reports run before status history so parent references resolve
// within one pass when possible.
var AllEntities = []string{EntityUsers, EntityReports, EntityStatusHistory, EntitySettings}

var (
	// ErrUnknownEntity rejects a manual trigger naming an entity type
	// that is not synchronized.
	ErrUnknownEntity = errors.New("unknown entity type")

	// ErrSyncBusy means another pass holds the entity type's lease.
	ErrSyncBusy = errors.New("a sync pass for this entity type is already running")
)

// RecordError identifies one failed record inside a batch so an
// operator can re-trigger exactly that record.
type RecordError struct {
	InternalId int    `json:"internal_id,omitempty"`
	ExternalId string `json:"external_id,omitempty"`
	Message    string `json:"message"`
}

// Result is the outcome of one batch. A batch never aborts on a
// per-record failure; the error list carries what went wrong.
type Result struct {
	Total  int           `json:"total"`
	Synced int           `json:"synced"`
	Failed int           `json:"failed"`
	Errors []RecordError `json:"errors"`
}

func (r *Result) success() {
	r.Synced++
}

func (r *Result) failure(internalId int, externalId string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, RecordError{
		InternalId: internalId,
		ExternalId: externalId,
		Message:    err.Error(),
	})
}
