// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/huddle-plan/models"
	"github.com/danielhkuo/huddle-plan/testutil"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, h := testutil.SetupEngine(t)
	mux := NewRouter(store, h, testutil.NewVerifier())
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestHealthEndpoint(t *testing.T) {
	store, h := testutil.SetupEngine(t)
	mux := NewRouter(store, h, testutil.NewVerifier())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	store, h := testutil.SetupEngine(t)
	mux := NewRouter(store, h, testutil.NewVerifier())

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "huddle-plan API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestSessionRoutesRequireAuth(t *testing.T) {
	store, h := testutil.SetupEngine(t)
	mux := NewRouter(store, h, testutil.NewVerifier())

	routes := []struct {
		method string
		path   string
	}{
		{"POST", "/sessions"},
		{"GET", "/sessions"},
		{"GET", "/sessions/some-id"},
		{"POST", "/sessions/some-id/end"},
		{"DELETE", "/sessions/some-id"},
		{"PATCH", "/sessions/some-id/settings"},
		{"GET", "/ws"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401 without token, got %d", w.Code)
			}
		})
	}
}

func readJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// dialWS opens an authenticated WebSocket connection to the test server.
func dialWS(t *testing.T, server *httptest.Server, userID, displayName string) *websocket.Conn {
	t.Helper()

	token := testutil.BearerToken(t, userID, displayName)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmd models.Command) {
	t.Helper()
	if err := conn.WriteJSON(cmd); err != nil {
		t.Fatalf("Failed to send %s command: %v", cmd.Action, err)
	}
}

// readUntil reads frames until one of the wanted type arrives. Other event
// types are discarded; the deadline keeps a missing event from hanging the
// test.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) models.Event {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var ev models.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("Did not receive %s event: %v", eventType, err)
		}
		if ev.Type == eventType {
			return ev
		}
	}
}

// TestRealtimeCollaboration walks the full collaborative flow over real
// connections: create over HTTP, join over WebSocket, edit the itinerary,
// vote, and watch presence change on disconnect.
func TestRealtimeCollaboration(t *testing.T) {
	server := newTestServer(t)
	client := server.Client()

	// Alice creates a session over HTTP.
	req, _ := http.NewRequest("POST", server.URL+"/sessions",
		strings.NewReader(`{"name":"Team Offsite"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testutil.BearerToken(t, "alice", "Alice"))
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Create request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var created models.Session
	if err := readJSON(resp, &created); err != nil {
		t.Fatalf("Failed to decode created session: %v", err)
	}

	// Both users join over WebSocket.
	alice := dialWS(t, server, "alice", "Alice")
	sendCommand(t, alice, models.Command{Action: models.ActionJoinSession, SessionID: created.ID})
	readUntil(t, alice, models.EventSessionState)

	bob := dialWS(t, server, "bob", "Bob")
	sendCommand(t, bob, models.Command{Action: models.ActionJoinSession, SessionID: created.ID})
	readUntil(t, bob, models.EventSessionState)

	joined := readUntil(t, alice, models.EventUserJoined)
	if joined.Data.(map[string]any)["userId"] != "bob" {
		t.Errorf("Expected alice to see bob join, got %v", joined.Data)
	}

	// Alice replaces the itinerary; bob observes the update.
	itin := models.Itinerary{Items: []models.ItineraryItem{
		{ID: "item-1", Title: "Karting"},
		{ID: "item-2", Title: "Escape Room"},
	}}
	sendCommand(t, alice, models.Command{
		Action:    models.ActionUpdateItinerary,
		SessionID: created.ID,
		Itinerary: &itin,
	})
	update := readUntil(t, bob, models.EventItineraryUpdated)
	payload := update.Data.(map[string]any)
	if payload["updatedBy"] != "alice" {
		t.Errorf("Expected updatedBy alice, got %v", payload["updatedBy"])
	}

	// Bob votes; alice observes the tally.
	up := models.VoteUp
	sendCommand(t, bob, models.Command{
		Action:    models.ActionVote,
		SessionID: created.ID,
		ItemID:    "item-1",
		Vote:      &up,
	})
	vote := readUntil(t, alice, models.EventVoteUpdate)
	votes := vote.Data.(map[string]any)["votes"].(map[string]any)
	if votes["upvotes"].(float64) != 1 {
		t.Errorf("Expected 1 upvote, got %v", votes["upvotes"])
	}

	// Bob drops; alice sees the presence change.
	bob.Close()
	left := readUntil(t, alice, models.EventUserLeft)
	delta := left.Data.(map[string]any)
	if delta["userId"] != "bob" || delta["presence"] != models.PresenceOffline {
		t.Errorf("Unexpected presence delta: %v", delta)
	}

	// The HTTP snapshot agrees with what the sockets observed.
	req, _ = http.NewRequest("GET", server.URL+"/sessions/"+created.ID, nil)
	req.Header.Set("Authorization", "Bearer "+testutil.BearerToken(t, "alice", "Alice"))
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("Get request failed: %v", err)
	}
	defer resp.Body.Close()
	var snap models.Session
	if err := readJSON(resp, &snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snap.Votes["item-1"].Upvotes != 1 {
		t.Errorf("Expected HTTP snapshot to carry the vote, got %+v", snap.Votes)
	}
	if len(snap.Participants) != 2 {
		t.Errorf("Expected 2 participants, got %d", len(snap.Participants))
	}
}

// TestEndedSessionRejectsCommands ends a session over HTTP and verifies the
// socket side starts failing.
func TestEndedSessionRejectsCommands(t *testing.T) {
	server := newTestServer(t)
	client := server.Client()

	req, _ := http.NewRequest("POST", server.URL+"/sessions",
		strings.NewReader(`{"name":"Short Lived"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testutil.BearerToken(t, "alice", "Alice"))
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Create request failed: %v", err)
	}
	defer resp.Body.Close()
	var created models.Session
	if err := readJSON(resp, &created); err != nil {
		t.Fatalf("Failed to decode created session: %v", err)
	}

	alice := dialWS(t, server, "alice", "Alice")
	sendCommand(t, alice, models.Command{Action: models.ActionJoinSession, SessionID: created.ID})
	readUntil(t, alice, models.EventSessionState)

	req, _ = http.NewRequest("POST", server.URL+"/sessions/"+created.ID+"/end", nil)
	req.Header.Set("Authorization", "Bearer "+testutil.BearerToken(t, "alice", "Alice"))
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("End request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from end, got %d", resp.StatusCode)
	}

	itin := models.Itinerary{Items: []models.ItineraryItem{{Title: "Too Late"}}}
	sendCommand(t, alice, models.Command{
		Action:    models.ActionUpdateItinerary,
		SessionID: created.ID,
		Itinerary: &itin,
	})
	errEvent := readUntil(t, alice, models.EventError)
	if errEvent.SessionID != created.ID {
		t.Errorf("Expected error scoped to session, got %+v", errEvent)
	}
}
