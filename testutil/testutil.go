// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/huddle-plan/auth"
	"github.com/danielhkuo/huddle-plan/cliparse"
	"github.com/danielhkuo/huddle-plan/hub"
	"github.com/danielhkuo/huddle-plan/session"
)

// TestSecret signs bearer tokens in tests
const TestSecret = "test-auth-secret"

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:             3319,
		AuthTokenSecret:  TestSecret,
		HeartbeatSeconds: 60,
	}
}

// SetupEngine creates an ephemeral store and hub wired together.
// No database: snapshots are disabled, sessions live in memory only.
func SetupEngine(t *testing.T) (*session.Store, *hub.Hub) {
	t.Helper()

	store := session.NewStore(session.Config{})
	h := hub.NewHub(store, time.Minute)
	store.SetBroadcaster(h)
	t.Cleanup(store.Close)

	return store, h
}

// NewVerifier returns a verifier keyed with the test secret
func NewVerifier() *auth.Verifier {
	return auth.NewVerifier(TestSecret)
}

// BearerToken mints a valid token for the given user
func BearerToken(t *testing.T, userID, displayName string) string {
	t.Helper()

	token, err := NewVerifier().IssueToken(userID, displayName, time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue test token: %v", err)
	}
	return token
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AuthedRequest creates an HTTP test request carrying a bearer token for
// the given user.
func AuthedRequest(t *testing.T, method, path string, body interface{}, userID, displayName string) *http.Request {
	t.Helper()

	return MakeRequest(method, path, body, map[string]string{
		"Authorization": "Bearer " + BearerToken(t, userID, displayName),
	})
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
