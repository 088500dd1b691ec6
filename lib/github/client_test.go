// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// newTestClient starts a TLS test server with the given handler and
// returns a client pointed at it.
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:    server.URL,
		Token:      "test-token",
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, server
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{BaseURL: "http://api.example.com", Token: "x"}); err == nil {
		t.Error("plain HTTP base URL must be rejected")
	}
	if _, err := NewClient(Config{}); err == nil {
		t.Error("missing token must be rejected")
	}
}

func TestGetRefSendsAuthHeaders(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-GitHub-Api-Version"); got != apiVersion {
			t.Errorf("X-GitHub-Api-Version = %q", got)
		}
		if r.URL.Path != "/repos/acme/widgets/git/ref/heads%2Fmain" && r.URL.Path != "/repos/acme/widgets/git/ref/heads/main" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ref":    "refs/heads/main",
			"object": map[string]string{"sha": "abc123", "type": "commit"},
		})
	}))

	ref, err := client.GetRef(context.Background(), "acme", "widgets", "heads/main")
	if err != nil {
		t.Fatalf("GetRef: %v", err)
	}
	if ref.Object.SHA != "abc123" {
		t.Errorf("SHA = %q, want abc123", ref.Object.SHA)
	}
}

func TestAPIErrorParsing(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
	}))

	_, err := client.GetRef(context.Background(), "acme", "widgets", "heads/gone")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want a 404 APIError", err)
	}
}

func TestRateLimitRetry(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ref":    "refs/heads/main",
			"object": map[string]string{"sha": "abc123", "type": "commit"},
		})
	}))

	ref, err := client.GetRef(context.Background(), "acme", "widgets", "heads/main")
	if err != nil {
		t.Fatalf("GetRef after rate limit: %v", err)
	}
	if ref.Object.SHA != "abc123" {
		t.Errorf("SHA = %q", ref.Object.SHA)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2 (one retry)", calls)
	}
}

func TestEnsurePullRequestCreatesWhenNoneOpen(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var created bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode([]PullRequest{})
		case r.Method == http.MethodPost:
			mu.Lock()
			created = true
			mu.Unlock()
			var pr NewPullRequest
			json.NewDecoder(r.Body).Decode(&pr)
			json.NewEncoder(w).Encode(map[string]any{
				"number": 7,
				"state":  "open",
				"title":  pr.Title,
				"head":   map[string]string{"ref": pr.Head},
				"base":   map[string]string{"ref": pr.Base},
			})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))

	pr, err := client.EnsurePullRequest(context.Background(), "acme", "widgets", NewPullRequest{
		Title: "Sync docs requirements",
		Head:  "conveyor/docs-requirements",
		Base:  "main",
	})
	if err != nil {
		t.Fatalf("EnsurePullRequest: %v", err)
	}
	if !created {
		t.Error("expected a create call")
	}
	if pr.Number != 7 {
		t.Errorf("number = %d, want 7", pr.Number)
	}
}

func TestEnsurePullRequestUpdatesExisting(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var patched, createCalled bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			existing := PullRequest{Number: 12, State: "open"}
			existing.Head.Ref = "conveyor/docs-requirements"
			existing.Base.Ref = "main"
			json.NewEncoder(w).Encode([]PullRequest{existing})
		case r.Method == http.MethodPatch:
			mu.Lock()
			patched = true
			mu.Unlock()
			json.NewEncoder(w).Encode(map[string]any{"number": 12, "state": "open"})
		case r.Method == http.MethodPost:
			mu.Lock()
			createCalled = true
			mu.Unlock()
			w.WriteHeader(http.StatusUnprocessableEntity)
		}
	}))

	pr, err := client.EnsurePullRequest(context.Background(), "acme", "widgets", NewPullRequest{
		Title: "Sync docs requirements",
		Head:  "conveyor/docs-requirements",
		Base:  "main",
	})
	if err != nil {
		t.Fatalf("EnsurePullRequest: %v", err)
	}
	if !patched || createCalled {
		t.Errorf("patched=%v created=%v, want update-in-place only", patched, createCalled)
	}
	if pr.Number != 12 {
		t.Errorf("number = %d, want 12", pr.Number)
	}
}
