package sync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/firestore"
	"github.com/lalantsika/lalantsika_backend/models"
)

// fakeStore is an in-memory stand-in for the document store's REST
// surface, good enough for get/patch/delete/list.
type fakeStore struct {
	mu     stdsync.Mutex
	prefix string
	docs   map[string]map[string]map[string]interface{}

	// failSubstring makes writes whose body contains it fail with 500,
	// to exercise per-record failure isolation.
	failSubstring string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		prefix: "/projects/lalantsika-test/databases/(default)/documents/",
		docs:   map[string]map[string]map[string]interface{}{},
	}
}

func (f *fakeStore) seed(t *testing.T, collection string, id string, fields firestore.Fields) {
	t.Helper()
	encoded, err := firestore.EncodeFields(fields)
	if err != nil {
		t.Fatalf("EncodeFields: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs[collection] == nil {
		f.docs[collection] = map[string]map[string]interface{}{}
	}
	f.docs[collection][id] = encoded
}

func (f *fakeStore) fields(t *testing.T, collection string, id string) firestore.Fields {
	t.Helper()
	f.mu.Lock()
	raw, ok := f.docs[collection][id]
	f.mu.Unlock()
	if !ok {
		t.Fatalf("document %s/%s not in store", collection, id)
	}
	decoded, err := firestore.DecodeFields(raw)
	if err != nil {
		t.Fatalf("DecodeFields: %v", err)
	}
	return decoded
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rest := strings.TrimPrefix(r.URL.Path, f.prefix)
	parts := strings.Split(rest, "/")

	name := func(collection, id string) string {
		return "projects/lalantsika-test/databases/(default)/documents/" + collection + "/" + id
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		collection := parts[0]
		docs := []map[string]interface{}{}
		for id, fields := range f.docs[collection] {
			docs = append(docs, map[string]interface{}{
				"name":   name(collection, id),
				"fields": fields,
			})
		}
		if len(docs) == 0 {
			http.Error(w, `{"error":{"code":404}}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"documents": docs})

	case len(parts) == 2:
		collection, id := parts[0], parts[1]
		switch r.Method {
		case http.MethodGet:
			fields, ok := f.docs[collection][id]
			if !ok {
				http.Error(w, `{"error":{"code":404}}`, http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"name":   name(collection, id),
				"fields": fields,
			})
		case http.MethodPatch:
			var body struct {
				Fields map[string]interface{} `json:"fields"`
			}
			raw, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if f.failSubstring != "" && strings.Contains(string(raw), f.failSubstring) {
				http.Error(w, `{"error":{"code":500}}`, http.StatusInternalServerError)
				return
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if f.docs[collection] == nil {
				f.docs[collection] = map[string]map[string]interface{}{}
			}
			f.docs[collection][id] = body.Fields
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"name":   name(collection, id),
				"fields": body.Fields,
			})
		case http.MethodDelete:
			delete(f.docs[collection], id)
			w.WriteHeader(http.StatusOK)
		}
	default:
		http.Error(w, "unexpected path "+r.URL.Path, http.StatusBadRequest)
	}
}

var dbSetupOnce stdsync.Once

// setupIntegration connects the relational store once per test binary
// and wires a fresh fake document store per test.
func setupIntegration(t *testing.T) (*Engine, *fakeStore) {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires postgres with postgis via DB_* env)")
	}

	dbSetupOnce.Do(func() {
		config.ConnectDatabaseWithRetry()
		models.MigrateTable()
	})

	fake := newFakeStore()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	t.Setenv("FIRESTORE_PROJECT_ID", "lalantsika-test")
	t.Setenv("FIRESTORE_BASE_URL", srv.URL)
	t.Setenv("FIRESTORE_DATABASE", "")
	t.Setenv("FIRESTORE_API_KEY", "")
	t.Setenv("FIRESTORE_ACCESS_TOKEN", "")
	t.Setenv("PUBSUB_PROJECT_ID", "")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GCP_PROJECT", "")

	store, err := firestore.NewClient()
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return NewEngine(store), fake
}

func createTestUser(t *testing.T, ctx context.Context) *models.User {
	t.Helper()
	user := &models.User{
		Identifier: "user-" + uuid.NewString(),
		Name:       "Test User",
		Password:   "$2a$10$hash",
	}
	if err := config.GetDB().WithContext(ctx).Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestPushUser_MintsExternalIdAndIsIdempotent(t *testing.T) {
	engine, fake := setupIntegration(t)
	ctx := context.Background()

	user := createTestUser(t, ctx)
	if err := engine.pushUser(ctx, user); err != nil {
		t.Fatalf("pushUser: %v", err)
	}

	stored, err := models.GetUserById(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserById: %v", err)
	}
	if stored.FirebaseUid == nil || *stored.FirebaseUid == "" {
		t.Fatal("external id was not minted")
	}
	if stored.Synchronized == nil || !*stored.Synchronized {
		t.Fatal("row not marked synchronized")
	}
	if stored.LastSyncAt == nil {
		t.Fatal("last_sync_at not set")
	}

	fields := fake.fields(t, EntityUsers, *stored.FirebaseUid)
	if id, _ := fields.Int("id_postgres"); int(id) != user.ID {
		t.Fatalf("id_postgres = %d, want %d", id, user.ID)
	}
	if _, ok := fields["password"]; ok {
		t.Fatal("password leaked into the document")
	}
	if needsPull(fields) {
		t.Fatal("pushed document must carry the synchronized marker")
	}

	// Second push must hit the same document, not mint a new one.
	if err := engine.pushUser(ctx, stored); err != nil {
		t.Fatalf("second pushUser: %v", err)
	}
	again, _ := models.GetUserById(ctx, user.ID)
	if *again.FirebaseUid != *stored.FirebaseUid {
		t.Fatalf("external id changed between pushes: %q vs %q", *again.FirebaseUid, *stored.FirebaseUid)
	}
	if len(fake.docs[EntityUsers]) != 1 {
		t.Fatalf("expected one document, got %d", len(fake.docs[EntityUsers]))
	}
}

func TestSyncUsers_PartialFailureDoesNotAbortBatch(t *testing.T) {
	engine, fake := setupIntegration(t)
	ctx := context.Background()

	good := createTestUser(t, ctx)
	bad := createTestUser(t, ctx)
	marker := "boom-" + uuid.NewString()
	if err := config.GetDB().WithContext(ctx).Model(bad).Update("name", marker).Error; err != nil {
		t.Fatalf("update name: %v", err)
	}
	fake.failSubstring = marker

	res, err := engine.SyncUnsynchronized(ctx, EntityUsers)
	if err != nil {
		t.Fatalf("SyncUnsynchronized: %v", err)
	}
	if res.Failed < 1 {
		t.Fatalf("expected at least one failure, got %+v", res)
	}
	if res.Synced < 1 {
		t.Fatalf("batch aborted on record failure: %+v", res)
	}

	goodRow, _ := models.GetUserById(ctx, good.ID)
	if goodRow.Synchronized == nil || !*goodRow.Synchronized {
		t.Fatal("good record was not synced past the failing one")
	}
	badRow, _ := models.GetUserById(ctx, bad.ID)
	if badRow.Synchronized != nil && *badRow.Synchronized {
		t.Fatal("failed record must stay unsynchronized")
	}
}

func TestPullReport_ResolvesOwnerAndCreatesStatus(t *testing.T) {
	engine, fake := setupIntegration(t)
	ctx := context.Background()

	ownerUid := "citizen-" + uuid.NewString()
	owner := createTestUser(t, ctx)
	if err := config.GetDB().WithContext(ctx).Model(owner).Update("firebase_uid", ownerUid).Error; err != nil {
		t.Fatalf("set firebase_uid: %v", err)
	}

	label := "submitted-" + uuid.NewString()
	docId := "report-" + uuid.NewString()
	fake.seed(t, EntityReports, docId, firestore.Fields{
		"user_uid":      ownerUid,
		"description":   "deep pothole near the market",
		"date_creation": time.Now().UTC().Format(time.RFC3339),
		"latitude":      -18.8792,
		"longitude":     47.5079,
		"surface":       3.5,
		"statut":        firestore.Fields{"label": label},
	})

	fields := fake.fields(t, EntityReports, docId)
	internalId, err := engine.pullReport(ctx, docId, fields)
	if err != nil {
		t.Fatalf("pullReport: %v", err)
	}

	report, err := models.GetReportByUid(ctx, docId)
	if err != nil {
		t.Fatalf("GetReportByUid: %v", err)
	}
	if report.ID != internalId {
		t.Fatalf("internal id mismatch: %d vs %d", report.ID, internalId)
	}
	if report.UserId == nil || *report.UserId != owner.ID {
		t.Fatalf("owner not resolved: %v", report.UserId)
	}
	if report.Geom == nil || report.Geom.Latitude() != -18.8792 {
		t.Fatalf("geometry not imported: %+v", report.Geom)
	}

	var status models.Status
	if err := config.GetDB().WithContext(ctx).Where("label = ?", label).Take(&status).Error; err != nil {
		t.Fatalf("status label was not materialized: %v", err)
	}

	after := fake.fields(t, EntityReports, docId)
	if synced, _ := after.Bool("synchronized"); !synced {
		t.Fatal("document not marked synchronized")
	}
	if id, _ := after.Int("id_report_postgres"); int(id) != report.ID {
		t.Fatalf("cross reference not written back: %d", id)
	}
}

func TestPullStatusHistory_DefersUntilParentExists(t *testing.T) {
	engine, fake := setupIntegration(t)
	ctx := context.Background()

	reportUid := "report-" + uuid.NewString()
	historyId := "hist-" + uuid.NewString()
	fake.seed(t, EntityStatusHistory, historyId, firestore.Fields{
		"report_uid":  reportUid,
		"description": "work scheduled",
		"date":        time.Now().UTC().Format(time.RFC3339),
		"statut":      firestore.Fields{"label": "in progress"},
	})

	fields := fake.fields(t, EntityStatusHistory, historyId)
	if _, _, err := engine.pullStatusHistory(ctx, historyId, fields); err == nil {
		t.Fatal("expected deferral while the parent report is missing")
	}
	if _, err := models.GetStatusHistoryByUid(ctx, historyId); err == nil {
		t.Fatal("deferred entry must not be inserted")
	}
	if synced, _ := fake.fields(t, EntityStatusHistory, historyId).Bool("synchronized"); synced {
		t.Fatal("deferred document must stay unsynchronized")
	}

	// Import the parent, then retry.
	owner := createTestUser(t, ctx)
	report := &models.Report{
		Uid:          &reportUid,
		DateCreation: time.Now().UTC(),
		UserId:       &owner.ID,
	}
	if err := config.GetDB().WithContext(ctx).Create(report).Error; err != nil {
		t.Fatalf("create report: %v", err)
	}
	fake.seed(t, EntityReports, reportUid, firestore.Fields{
		"id_report_postgres": report.ID,
		"synchronized":       true,
	})

	reportId, _, err := engine.pullStatusHistory(ctx, historyId, fields)
	if err != nil {
		t.Fatalf("retry after parent import: %v", err)
	}
	if reportId != report.ID {
		t.Fatalf("parent resolved to %d, want %d", reportId, report.ID)
	}

	history, err := models.GetStatusHistoryByUid(ctx, historyId)
	if err != nil {
		t.Fatalf("GetStatusHistoryByUid: %v", err)
	}
	if history.ReportId != report.ID {
		t.Fatalf("report_id = %d", history.ReportId)
	}

	// Projection rewrites the embedded status on the report document.
	if err := engine.projectReportStatus(ctx, report.ID); err != nil {
		t.Fatalf("projectReportStatus: %v", err)
	}
	statut, ok := fake.fields(t, EntityReports, reportUid).Map("statut")
	if !ok {
		t.Fatal("statut embed missing after projection")
	}
	if label, _ := statut.String("label"); label != "in progress" {
		t.Fatalf("statut.label = %q", label)
	}
}

func TestRelationalStatus_CountsMatchListQueries(t *testing.T) {
	engine, _ := setupIntegration(t)
	ctx := context.Background()

	createTestUser(t, ctx)
	counts := engine.RelationalStatus(ctx)

	users := counts[EntityUsers]
	if users.Error != "" {
		t.Fatalf("users counts errored: %s", users.Error)
	}
	if users.Total < 1 || users.Unsynchronized < 1 {
		t.Fatalf("counts = %+v", users)
	}
	if users.Synced != users.Total-users.Unsynchronized {
		t.Fatalf("synced arithmetic off: %+v", users)
	}
	if users.Percent < 0 || users.Percent > 100 {
		t.Fatalf("percent out of range: %v", users.Percent)
	}
}
