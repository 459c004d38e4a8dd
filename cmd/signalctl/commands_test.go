// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

type seenRequest struct {
	method string
	path   string
	query  string
	body   map[string]any
	header http.Header
}

// fakeAPI answers every request with the given status and envelope and
// records what it saw.
type fakeAPI struct {
	mu     sync.Mutex
	seen   []seenRequest
	status int
	reply  string
	ctype  string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	f.mu.Lock()
	f.seen = append(f.seen, seenRequest{r.Method, r.URL.Path, r.URL.RawQuery, body, r.Header.Clone()})
	f.mu.Unlock()

	ctype := f.ctype
	if ctype == "" {
		ctype = "application/json"
	}
	w.Header().Set("Content-Type", ctype)
	w.WriteHeader(f.status)
	_, _ = io.WriteString(w, f.reply)
}

func run(t *testing.T, api *fakeAPI, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandsBuildRequests(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		args   []string
		method string
		path   string
		query  string
		body   map[string]any
	}{
		{
			name: "record", args: []string{"record", "--user", "7", "--product", "42", "--type", "purchase"},
			method: http.MethodPost, path: "/api/v1/interactions",
			body: map[string]any{"productId": float64(42), "interactionType": "PURCHASE"},
		},
		{
			name: "record for shopper", args: []string{"record", "--role", "trainer", "--user-id", "5", "--product", "3"},
			method: http.MethodPost, path: "/api/v1/interactions",
			body: map[string]any{"userId": float64(5), "productId": float64(3), "interactionType": "CLICK"},
		},
		{
			name: "export page", args: []string{"export", "--cursor", "10", "--limit", "5"},
			method: http.MethodGet, path: "/api/v1/interactions/export", query: "cursor=10&limit=5",
		},
		{
			name: "train", args: []string{"train", "--force", "--tag", "v2"},
			method: http.MethodPost, path: "/api/v1/training",
			body: map[string]any{"force_retrain_all": true, "model_version_tag": "v2"},
		},
		{
			name: "incremental train", args: []string{"train"},
			method: http.MethodPost, path: "/api/v1/training",
			body: map[string]any{"force_retrain_all": false},
		},
		{name: "status", args: []string{"status"}, method: http.MethodGet, path: "/api/v1/training/status"},
		{name: "cancel", args: []string{"cancel"}, method: http.MethodPost, path: "/api/v1/training/cancel"},
		{name: "models list", args: []string{"models", "list"}, method: http.MethodGet, path: "/api/v1/models"},
		{name: "models activate", args: []string{"models", "activate", "v1"}, method: http.MethodPost, path: "/api/v1/models/v1/activate"},
		{
			name: "homepage", args: []string{"recommend", "homepage", "--count", "3", "--exclude", "1,2"},
			method: http.MethodGet, path: "/api/v1/recommendations/homepage", query: "count=3&exclude=1%2C2",
		},
		{name: "similar", args: []string{"recommend", "similar", "42"}, method: http.MethodGet, path: "/api/v1/recommendations/similar/42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			api := &fakeAPI{status: http.StatusOK, reply: `{"status":"success","data":{"ok":true}}`}
			out, err := run(t, api, tt.args...)
			if err != nil {
				t.Fatalf("run() error = %v", err)
			}
			if !strings.Contains(out, `"ok": true`) {
				t.Errorf("output = %q", out)
			}
			if len(api.seen) != 1 {
				t.Fatalf("requests = %d", len(api.seen))
			}
			got := api.seen[0]
			if got.method != tt.method || got.path != tt.path || got.query != tt.query {
				t.Errorf("request = %s %s?%s, want %s %s?%s", got.method, got.path, got.query, tt.method, tt.path, tt.query)
			}
			if tt.body != nil {
				gotBody, _ := json.Marshal(got.body)
				wantBody, _ := json.Marshal(tt.body)
				if !bytes.Equal(gotBody, wantBody) {
					t.Errorf("body = %s, want %s", gotBody, wantBody)
				}
			}
		})
	}
}

func TestIdentityHeaders(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{status: http.StatusOK, reply: `{"status":"success","data":{}}`}
	if _, err := run(t, api, "status", "--user", "9", "--role", "trainer", "--token", "abc"); err != nil {
		t.Fatal(err)
	}
	h := api.seen[0].header
	if h.Get("X-User-ID") != "9" || h.Get("X-User-Role") != "trainer" || h.Get("Authorization") != "Bearer abc" {
		t.Errorf("headers = %v", h)
	}
}

func TestAPIErrorSurfaces(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{status: http.StatusConflict, reply: `{"status":"error","error":{"code":"TRAINING_IN_PROGRESS","message":"training already in progress"}}`}
	_, err := run(t, api, "train")

	var ae *apiError
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v, want *apiError", err)
	}
	if ae.Status != http.StatusConflict || ae.Code != "TRAINING_IN_PROGRESS" {
		t.Errorf("apiError = %+v", ae)
	}
}

func TestExportNDJSONStreams(t *testing.T) {
	t.Parallel()
	lines := "{\"cursor\":1}\n{\"cursor\":2}\n"
	api := &fakeAPI{status: http.StatusOK, reply: lines, ctype: "application/x-ndjson"}
	out, err := run(t, api, "export", "--ndjson")
	if err != nil {
		t.Fatal(err)
	}
	if out != lines {
		t.Errorf("output = %q", out)
	}
	if api.seen[0].query != "cursor=0&format=ndjson" {
		t.Errorf("query = %q", api.seen[0].query)
	}
}

func TestArgumentValidation(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{status: http.StatusOK, reply: `{"status":"success","data":{}}`}
	for _, args := range [][]string{
		{"recommend", "similar", "abc"},
		{"models", "activate"},
		{"record", "--type", "CLICK"},
	} {
		if _, err := run(t, api, args...); err == nil {
			t.Errorf("%v should fail", args)
		}
	}
	if len(api.seen) != 0 {
		t.Errorf("invalid commands reached the server %d times", len(api.seen))
	}
}
