package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Client talks to the document store's REST surface. Every call is one
// synchronous round-trip bounded by the client timeout.
type Client struct {
	baseURL string
	parent  string
	apiKey  string
	token   string
	http    *http.Client
}

// NewClient builds a client from the environment:
//
//	FIRESTORE_PROJECT_ID      (required)
//	FIRESTORE_DATABASE        (default "(default)")
//	FIRESTORE_BASE_URL        (default https://firestore.googleapis.com/v1)
//	FIRESTORE_API_KEY         (optional, appended as ?key=)
//	FIRESTORE_ACCESS_TOKEN    (optional, sent as Bearer token)
//	FIRESTORE_TIMEOUT_SECONDS (default 30)
func NewClient() (*Client, error) {
	projectID := strings.TrimSpace(os.Getenv("FIRESTORE_PROJECT_ID"))
	if projectID == "" {
		return nil, errors.New("FIRESTORE_PROJECT_ID is required")
	}
	database := strings.TrimSpace(os.Getenv("FIRESTORE_DATABASE"))
	if database == "" {
		database = "(default)"
	}
	baseURL := strings.TrimSpace(os.Getenv("FIRESTORE_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://firestore.googleapis.com/v1"
	}
	timeoutSeconds := 30
	if v := strings.TrimSpace(os.Getenv("FIRESTORE_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeoutSeconds = n
		}
	}

	parent := fmt.Sprintf("projects/%s/databases/%s/documents", projectID, database)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		parent:  parent,
		apiKey:  strings.TrimSpace(os.Getenv("FIRESTORE_API_KEY")),
		token:   strings.TrimSpace(os.Getenv("FIRESTORE_ACCESS_TOKEN")),
		http:    &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}, nil
}

type wireDocument struct {
	Name   string                 `json:"name"`
	Fields map[string]interface{} `json:"fields"`
}

type listResponse struct {
	Documents     []wireDocument `json:"documents"`
	NextPageToken string         `json:"nextPageToken"`
}

// GetDocument fetches and decodes one document. A missing document is
// ErrNotFound, not a store failure.
func (c *Client) GetDocument(ctx context.Context, collection string, id string) (Fields, error) {
	status, body, err := c.do(ctx, http.MethodGet, c.documentPath(collection, id), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status < 200 || status >= 300 {
		return nil, &ReadError{StatusCode: status, Body: body}
	}

	var doc wireDocument
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, &DecodeError{Reason: "document body", Err: err}
	}
	return DecodeFields(doc.Fields)
}

// PutDocument upserts a document under the given id, encoding every
// field recursively. The write replaces the whole field set.
func (c *Client) PutDocument(ctx context.Context, collection string, id string, fields map[string]interface{}) error {
	encoded, err := EncodeFields(fields)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]interface{}{"fields": encoded})
	if err != nil {
		return err
	}

	status, body, err := c.do(ctx, http.MethodPatch, c.documentPath(collection, id), payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &WriteError{StatusCode: status, Body: body}
	}
	return nil
}

// DeleteDocument removes a document. Deleting a missing document is a
// successful delete.
func (c *Client) DeleteDocument(ctx context.Context, collection string, id string) (bool, error) {
	status, body, err := c.do(ctx, http.MethodDelete, c.documentPath(collection, id), nil)
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound {
		return true, nil
	}
	if status < 200 || status >= 300 {
		return false, &WriteError{StatusCode: status, Body: body}
	}
	return true, nil
}

// ListCollection fetches every document in a collection, following page
// tokens. A missing or empty collection is an empty mapping.
func (c *Client) ListCollection(ctx context.Context, collection string) (map[string]Fields, error) {
	out := map[string]Fields{}
	pageToken := ""
	for {
		params := url.Values{}
		params.Set("pageSize", "300")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		status, body, err := c.do(ctx, http.MethodGet, c.collectionPath(collection)+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return out, nil
		}
		if status < 200 || status >= 300 {
			return nil, &ReadError{StatusCode: status, Body: body}
		}

		var parsed listResponse
		if err := json.Unmarshal([]byte(body), &parsed); err != nil {
			return nil, &DecodeError{Reason: "collection listing", Err: err}
		}
		for _, doc := range parsed.Documents {
			fields, err := DecodeFields(doc.Fields)
			if err != nil {
				return nil, err
			}
			out[documentID(doc.Name)] = fields
		}
		if parsed.NextPageToken == "" {
			return out, nil
		}
		pageToken = parsed.NextPageToken
	}
}

// QueryEquals runs a server-side equality filter, ANDing every entry of
// fieldEquals.
func (c *Client) QueryEquals(ctx context.Context, collection string, fieldEquals map[string]interface{}) (map[string]Fields, error) {
	filters := make([]interface{}, 0, len(fieldEquals))
	for field, value := range fieldEquals {
		enc, err := EncodeValue(value)
		if err != nil {
			return nil, err
		}
		filters = append(filters, map[string]interface{}{
			"fieldFilter": map[string]interface{}{
				"field": map[string]interface{}{"fieldPath": field},
				"op":    "EQUAL",
				"value": enc,
			},
		})
	}

	query := map[string]interface{}{
		"structuredQuery": map[string]interface{}{
			"from": []interface{}{map[string]interface{}{"collectionId": collection}},
			"where": map[string]interface{}{
				"compositeFilter": map[string]interface{}{
					"op":      "AND",
					"filters": filters,
				},
			},
		},
	}
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	status, body, err := c.do(ctx, http.MethodPost, c.parent+":runQuery", payload)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &ReadError{StatusCode: status, Body: body}
	}

	var results []struct {
		Document *wireDocument `json:"document"`
	}
	if err := json.Unmarshal([]byte(body), &results); err != nil {
		return nil, &DecodeError{Reason: "query results", Err: err}
	}

	out := map[string]Fields{}
	for _, result := range results {
		if result.Document == nil {
			continue
		}
		fields, err := DecodeFields(result.Document.Fields)
		if err != nil {
			return nil, err
		}
		out[documentID(result.Document.Name)] = fields
	}
	return out, nil
}

// documentID strips the resource prefix from a full document name.
func documentID(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func (c *Client) documentPath(collection string, id string) string {
	return c.parent + "/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
}

func (c *Client) collectionPath(collection string) string {
	return c.parent + "/" + url.PathEscape(collection)
}

func (c *Client) do(ctx context.Context, method string, path string, payload []byte) (int, string, error) {
	endpoint := c.baseURL + "/" + path
	if c.apiKey != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = endpoint + sep + "key=" + url.QueryEscape(c.apiKey)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", &UnavailableError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, strings.TrimSpace(string(body)), nil
}
