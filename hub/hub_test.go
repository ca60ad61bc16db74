// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package hub

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/huddle-plan/models"
	"github.com/danielhkuo/huddle-plan/session"
)

func newTestHub(t *testing.T) (*Hub, *session.Store) {
	t.Helper()
	store := session.NewStore(session.Config{})
	h := NewHub(store, time.Minute)
	store.SetBroadcaster(h)
	t.Cleanup(store.Close)
	return h, store
}

// connect registers a pump-less client; tests read its send buffer directly.
func connect(h *Hub, userID, displayName string) *Client {
	c := NewClient(h, nil, userID, displayName)
	h.Register(c)
	return c
}

// drain decodes everything buffered on the client's send channel.
func drain(t *testing.T, c *Client) []models.Event {
	t.Helper()
	var events []models.Event
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return events
			}
			var ev models.Event
			if err := json.Unmarshal(payload, &ev); err != nil {
				t.Fatalf("Failed to decode event: %v", err)
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func ofType(events []models.Event, eventType string) []models.Event {
	var out []models.Event
	for _, ev := range events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// plannedSession creates a session and gives it one itinerary item via a
// joined seed client, which is then detached so it stops receiving events.
func plannedSession(t *testing.T, h *Hub, store *session.Store) models.Session {
	t.Helper()
	s, err := store.CreateSession("Team Offsite", "seed-user", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	seed := connect(h, "seed-user", "Seed")
	h.dispatch(seed, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
	itin := models.Itinerary{Items: []models.ItineraryItem{{ID: "item-1", Title: "Karting"}}}
	h.dispatch(seed, models.Command{
		Action:    models.ActionUpdateItinerary,
		SessionID: s.ID,
		Itinerary: &itin,
	})
	h.Disconnect(seed)
	return s
}

func TestJoinDeliversSnapshot(t *testing.T) {
	h, store := newTestHub(t)
	s := plannedSession(t, h, store)

	c := connect(h, "user-1", "Alice")
	h.dispatch(c, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})

	states := ofType(drain(t, c), models.EventSessionState)
	if len(states) != 1 {
		t.Fatalf("Expected 1 session-state event, got %d", len(states))
	}
	if states[0].SessionID != s.ID {
		t.Errorf("Expected sessionId %s, got %s", s.ID, states[0].SessionID)
	}
	data := states[0].Data.(map[string]any)
	if data["name"] != "Team Offsite" {
		t.Errorf("Expected snapshot name in payload, got %v", data["name"])
	}
}

func TestJoinUnknownSessionSendsError(t *testing.T) {
	h, _ := newTestHub(t)

	c := connect(h, "user-1", "Alice")
	h.dispatch(c, models.Command{Action: models.ActionJoinSession, SessionID: "nope"})

	events := drain(t, c)
	if len(ofType(events, models.EventError)) != 1 {
		t.Fatalf("Expected 1 error event, got %+v", events)
	}
	if len(ofType(events, models.EventSessionState)) != 0 {
		t.Error("Expected no snapshot for a failed join")
	}
}

// TestBroadcastIsolation wires a randomized topology of sessions and
// connections and checks that no client ever receives a frame for a session
// it has not joined, while every joined session's traffic does arrive.
func TestBroadcastIsolation(t *testing.T) {
	h, store := newTestHub(t)
	rng := rand.New(rand.NewSource(1))

	const nSessions = 6
	const nClients = 12

	sessions := make([]models.Session, nSessions)
	for i := range sessions {
		sessions[i] = plannedSession(t, h, store)
	}

	clients := make([]*Client, nClients)
	joined := make([]map[string]bool, nClients)
	for i := range clients {
		c := connect(h, fmt.Sprintf("user-%d", i), fmt.Sprintf("User %d", i))
		clients[i] = c
		joined[i] = map[string]bool{}

		// Client i always covers session i%nSessions so every session has
		// at least one member; the rest of its memberships are random.
		for s := range sessions {
			if s != i%nSessions && rng.Intn(2) == 0 {
				continue
			}
			h.dispatch(c, models.Command{Action: models.ActionJoinSession, SessionID: sessions[s].ID})
			joined[i][sessions[s].ID] = true
		}
	}

	for s := range sessions {
		itin := models.Itinerary{Items: []models.ItineraryItem{{ID: "item-1", Title: fmt.Sprintf("Stop %d", s)}}}
		h.dispatch(clients[s], models.Command{
			Action:    models.ActionUpdateItinerary,
			SessionID: sessions[s].ID,
			Itinerary: &itin,
		})
	}

	for i, c := range clients {
		updates := map[string]int{}
		for _, ev := range drain(t, c) {
			if !joined[i][ev.SessionID] {
				t.Fatalf("Client %d received %s for session %s it never joined", i, ev.Type, ev.SessionID)
			}
			if ev.Type == models.EventItineraryUpdated {
				updates[ev.SessionID]++
			}
		}
		for id := range joined[i] {
			if updates[id] != 1 {
				t.Errorf("Client %d expected 1 itinerary-updated for session %s, got %d", i, id, updates[id])
			}
		}
	}
}

// TestVoteRacingJoinReachesJoiner races a member's vote against another
// user's join. Whatever the interleaving, the joiner's ordered stream must
// end up showing the vote: in the snapshot itself, or in a vote-update
// frame queued behind it.
func TestVoteRacingJoinReachesJoiner(t *testing.T) {
	h, store := newTestHub(t)

	for i := 0; i < 100; i++ {
		s := plannedSession(t, h, store)
		voter := connect(h, "voter", "Voter")
		h.dispatch(voter, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
		drain(t, voter)

		joiner := connect(h, "joiner", "Joiner")
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			up := models.VoteUp
			h.dispatch(voter, models.Command{Action: models.ActionVote, SessionID: s.ID, ItemID: "item-1", Vote: &up})
		}()
		go func() {
			defer wg.Done()
			h.dispatch(joiner, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
		}()
		wg.Wait()

		upvotes := -1
		for _, ev := range drain(t, joiner) {
			switch ev.Type {
			case models.EventSessionState:
				upvotes = 0
				votes := ev.Data.(map[string]any)["votes"].(map[string]any)
				if tally, ok := votes["item-1"].(map[string]any); ok {
					upvotes = int(tally["upvotes"].(float64))
				}
			case models.EventVoteUpdate:
				tally := ev.Data.(map[string]any)["votes"].(map[string]any)
				upvotes = int(tally["upvotes"].(float64))
			}
		}
		if upvotes != 1 {
			t.Fatalf("Iteration %d: joiner's replayed stream shows %d upvotes, want 1", i, upvotes)
		}

		h.Disconnect(voter)
		h.Disconnect(joiner)
	}
}

func TestGlobalDiscovery(t *testing.T) {
	h, store := newTestHub(t)

	c := connect(h, "user-1", "Alice")
	s, err := store.CreateSession("Spring Retreat", "creator", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	created := ofType(drain(t, c), models.EventSessionCreated)
	if len(created) != 1 {
		t.Fatalf("Expected 1 session-created event, got %d", len(created))
	}
	data := created[0].Data.(map[string]any)
	if data["id"] != s.ID {
		t.Errorf("Expected announced session %s, got %v", s.ID, data["id"])
	}
}

func TestCommandErrorReachesOriginatorOnly(t *testing.T) {
	h, store := newTestHub(t)
	s := plannedSession(t, h, store)

	a1 := connect(h, "user-a1", "A1")
	a2 := connect(h, "user-a2", "A2")
	h.dispatch(a1, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
	h.dispatch(a2, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
	drain(t, a1)
	drain(t, a2)

	up := models.VoteUp
	h.dispatch(a1, models.Command{
		Action:    models.ActionVote,
		SessionID: s.ID,
		ItemID:    "no-such-item",
		Vote:      &up,
	})

	if errs := ofType(drain(t, a1), models.EventError); len(errs) != 1 {
		t.Fatalf("Expected originator to get 1 error event, got %d", len(errs))
	}
	if events := drain(t, a2); len(events) != 0 {
		t.Errorf("Expected bystander to see nothing, got %+v", events)
	}
}

func TestDisconnectMarksOffline(t *testing.T) {
	h, store := newTestHub(t)
	s := plannedSession(t, h, store)

	a1 := connect(h, "user-a1", "A1")
	a2 := connect(h, "user-a2", "A2")
	h.dispatch(a1, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
	h.dispatch(a2, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
	drain(t, a1)
	drain(t, a2)

	h.Disconnect(a2)

	left := ofType(drain(t, a1), models.EventUserLeft)
	if len(left) != 1 {
		t.Fatalf("Expected 1 user-left event, got %d", len(left))
	}
	data := left[0].Data.(map[string]any)
	if data["userId"] != "user-a2" || data["presence"] != models.PresenceOffline {
		t.Errorf("Unexpected presence delta: %v", data)
	}

	snap, _ := store.GetSession(s.ID)
	for _, p := range snap.Participants {
		if p.UserID == "user-a2" && p.Presence != models.PresenceOffline {
			t.Errorf("Expected participant offline, got %s", p.Presence)
		}
	}
}

func TestReconnectRestoresState(t *testing.T) {
	h, store := newTestHub(t)
	s := plannedSession(t, h, store)

	a1 := connect(h, "user-a1", "A1")
	h.dispatch(a1, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
	up := models.VoteUp
	h.dispatch(a1, models.Command{Action: models.ActionVote, SessionID: s.ID, ItemID: "item-1", Vote: &up})
	h.Disconnect(a1)

	again := connect(h, "user-a1", "A1")
	h.dispatch(again, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})

	states := ofType(drain(t, again), models.EventSessionState)
	if len(states) != 1 {
		t.Fatalf("Expected 1 session-state on rejoin, got %d", len(states))
	}
	votes := states[0].Data.(map[string]any)["votes"].(map[string]any)
	tally := votes["item-1"].(map[string]any)
	if tally["upvotes"].(float64) != 1 {
		t.Errorf("Expected persisted upvote in rejoin snapshot, got %v", tally["upvotes"])
	}
}

func TestMultipleConnectionsOneParticipant(t *testing.T) {
	h, store := newTestHub(t)
	s := plannedSession(t, h, store)

	observer := connect(h, "watcher", "Watcher")
	h.dispatch(observer, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
	drain(t, observer)

	tab1 := connect(h, "user-a1", "A1")
	tab2 := connect(h, "user-a1", "A1")
	h.dispatch(tab1, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
	h.dispatch(tab2, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})

	if joined := ofType(drain(t, observer), models.EventUserJoined); len(joined) != 1 {
		t.Fatalf("Expected a single user-joined for two tabs, got %d", len(joined))
	}

	h.Disconnect(tab1)
	if left := ofType(drain(t, observer), models.EventUserLeft); len(left) != 0 {
		t.Fatal("Expected no user-left while a connection remains")
	}

	h.Disconnect(tab2)
	if left := ofType(drain(t, observer), models.EventUserLeft); len(left) != 1 {
		t.Fatal("Expected user-left after the last connection dropped")
	}

	snap, _ := store.GetSession(s.ID)
	count := 0
	for _, p := range snap.Participants {
		if p.UserID == "user-a1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected exactly one participant record, got %d", count)
	}
}

func TestLeaveSessionAction(t *testing.T) {
	h, store := newTestHub(t)
	s := plannedSession(t, h, store)

	a1 := connect(h, "user-a1", "A1")
	a2 := connect(h, "user-a2", "A2")
	h.dispatch(a1, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
	h.dispatch(a2, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
	drain(t, a1)
	drain(t, a2)

	h.dispatch(a1, models.Command{Action: models.ActionLeaveSession, SessionID: s.ID})

	if left := ofType(drain(t, a2), models.EventUserLeft); len(left) != 1 {
		t.Fatalf("Expected 1 user-left event, got %d", len(left))
	}

	// The leaver is unsubscribed: later session traffic must not reach it.
	up := models.VoteUp
	h.dispatch(a2, models.Command{Action: models.ActionVote, SessionID: s.ID, ItemID: "item-1", Vote: &up})
	if events := drain(t, a1); len(events) != 0 {
		t.Errorf("Expected no events after leaving, got %+v", events)
	}
}

func TestStalledClientDropped(t *testing.T) {
	h, store := newTestHub(t)
	s := plannedSession(t, h, store)

	a1 := connect(h, "user-a1", "A1")
	stalled := connect(h, "user-a2", "A2")
	h.dispatch(a1, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
	h.dispatch(stalled, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
	drain(t, a1)
	drain(t, stalled)

	for i := 0; i < sendBuffer; i++ {
		stalled.send <- []byte("{}")
	}

	up := models.VoteUp
	h.dispatch(a1, models.Command{Action: models.ActionVote, SessionID: s.ID, ItemID: "item-1", Vote: &up})

	// The drop runs on its own goroutine.
	waitFor(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return !h.clients[stalled]
	})

	// Dropping the stalled client counts as its last connection leaving.
	waitFor(t, func() bool {
		return len(ofType(drain(t, a1), models.EventUserLeft)) == 1
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func TestIdleConnectionGoesAway(t *testing.T) {
	h, store := newTestHub(t)
	h.heartbeat = 10 * time.Millisecond
	s := plannedSession(t, h, store)

	a1 := connect(h, "user-a1", "A1")
	h.dispatch(a1, models.Command{Action: models.ActionJoinSession, SessionID: s.ID})
	drain(t, a1)

	time.Sleep(20 * time.Millisecond)
	h.markIdleAway(a1)

	snap, _ := store.GetSession(s.ID)
	for _, p := range snap.Participants {
		if p.UserID == "user-a1" && p.Presence != models.PresenceAway {
			t.Errorf("Expected idle participant away, got %s", p.Presence)
		}
	}

	// Any activity on the connection flips the user back to active.
	pos := models.CursorPosition{X: 1, Y: 2}
	h.dispatch(a1, models.Command{Action: models.ActionCursorMove, SessionID: s.ID, Position: &pos})
	snap, _ = store.GetSession(s.ID)
	for _, p := range snap.Participants {
		if p.UserID == "user-a1" && p.Presence != models.PresenceActive {
			t.Errorf("Expected participant active after cursor move, got %s", p.Presence)
		}
	}
}
