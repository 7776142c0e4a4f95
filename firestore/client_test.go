package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("FIRESTORE_PROJECT_ID", "lalantsika-test")
	t.Setenv("FIRESTORE_BASE_URL", srv.URL)
	t.Setenv("FIRESTORE_DATABASE", "")
	t.Setenv("FIRESTORE_API_KEY", "")
	t.Setenv("FIRESTORE_ACCESS_TOKEN", "")
	client, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, srv
}

func TestGetDocument_DecodesFields(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("unexpected method %s", r.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"name": "projects/p/databases/(default)/documents/reports/abc",
			"fields": map[string]interface{}{
				"description":        map[string]interface{}{"stringValue": "pothole"},
				"surface":            map[string]interface{}{"doubleValue": 4.2},
				"id_report_postgres": map[string]interface{}{"integerValue": "17"},
			},
		})
	}))

	fields, err := client.GetDocument(context.Background(), "reports", "abc")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if v, _ := fields.String("description"); v != "pothole" {
		t.Fatalf("description = %q", v)
	}
	if v, _ := fields.Int("id_report_postgres"); v != 17 {
		t.Fatalf("id_report_postgres = %d", v)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":404}}`, http.StatusNotFound)
	}))

	_, err := client.GetDocument(context.Background(), "reports", "zzz")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetDocument_RejectedReadIsReadError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"denied"}}`, http.StatusForbidden)
	}))

	_, err := client.GetDocument(context.Background(), "reports", "abc")
	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %v", err)
	}
	if readErr.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", readErr.StatusCode)
	}
}

func TestListCollection_RejectedReadIsReadError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	}))

	_, err := client.ListCollection(context.Background(), "reports")
	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %v", err)
	}
}

func TestGetDocument_TransportFailure(t *testing.T) {
	client, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := client.GetDocument(context.Background(), "reports", "abc")
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
}

func TestPutDocument_EncodesAndUpserts(t *testing.T) {
	var captured map[string]interface{}
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))

	err := client.PutDocument(context.Background(), "users", "u1", map[string]interface{}{
		"email":        "a@x.com",
		"synchronized": true,
		"id_postgres":  int64(7),
	})
	if err != nil {
		t.Fatalf("PutDocument: %v", err)
	}

	fields, _ := captured["fields"].(map[string]interface{})
	email, _ := fields["email"].(map[string]interface{})
	if email["stringValue"] != "a@x.com" {
		t.Fatalf("email encoded as %v", email)
	}
	id, _ := fields["id_postgres"].(map[string]interface{})
	if id["integerValue"] != "7" {
		t.Fatalf("id_postgres encoded as %v", id)
	}
}

func TestPutDocument_WriteError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"denied"}}`, http.StatusForbidden)
	}))

	err := client.PutDocument(context.Background(), "users", "u1", map[string]interface{}{"a": "b"})
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected WriteError, got %v", err)
	}
	if writeErr.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", writeErr.StatusCode)
	}
}

func TestDeleteDocument_MissingIsSuccess(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "", http.StatusNotFound)
	}))

	ok, err := client.DeleteDocument(context.Background(), "users", "gone")
	if err != nil || !ok {
		t.Fatalf("DeleteDocument = %v, %v", ok, err)
	}
}

func TestListCollection_Pagination(t *testing.T) {
	page := 0
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page++
		if page == 1 {
			if r.URL.Query().Get("pageToken") != "" {
				t.Fatalf("first page should have no token")
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"documents": []map[string]interface{}{
					{
						"name":   "projects/p/databases/(default)/documents/reports/r1",
						"fields": map[string]interface{}{"description": map[string]interface{}{"stringValue": "one"}},
					},
				},
				"nextPageToken": "tok",
			})
			return
		}
		if r.URL.Query().Get("pageToken") != "tok" {
			t.Fatalf("second page missing token")
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"documents": []map[string]interface{}{
				{
					"name":   "projects/p/databases/(default)/documents/reports/r2",
					"fields": map[string]interface{}{"description": map[string]interface{}{"stringValue": "two"}},
				},
			},
		})
	}))

	docs, err := client.ListCollection(context.Background(), "reports")
	if err != nil {
		t.Fatalf("ListCollection: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if v, _ := docs["r2"].String("description"); v != "two" {
		t.Fatalf("r2 description = %q", v)
	}
}

func TestListCollection_MissingCollectionIsEmpty(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "", http.StatusNotFound)
	}))

	docs, err := client.ListCollection(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("ListCollection: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected empty mapping, got %v", docs)
	}
}

func TestQueryEquals_BuildsAndedFilter(t *testing.T) {
	var query map[string]interface{}
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
			t.Fatalf("decode query: %v", err)
		}
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{
				"document": map[string]interface{}{
					"name":   "projects/p/databases/(default)/documents/users/u9",
					"fields": map[string]interface{}{"email": map[string]interface{}{"stringValue": "a@x.com"}},
				},
			},
			{"readTime": "2024-05-01T00:00:00Z"},
		})
	}))

	docs, err := client.QueryEquals(context.Background(), "users", map[string]interface{}{
		"email": "a@x.com",
	})
	if err != nil {
		t.Fatalf("QueryEquals: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if _, ok := docs["u9"]; !ok {
		t.Fatalf("u9 missing: %v", docs)
	}

	structured, _ := query["structuredQuery"].(map[string]interface{})
	if structured == nil {
		t.Fatalf("structuredQuery missing: %v", query)
	}
	where, _ := structured["where"].(map[string]interface{})
	composite, _ := where["compositeFilter"].(map[string]interface{})
	if composite["op"] != "AND" {
		t.Fatalf("composite op = %v", composite["op"])
	}
}
