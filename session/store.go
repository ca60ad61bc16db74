// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danielhkuo/huddle-plan/models"
)

const maxSessionNameLength = 120

// SnapshotStore is the persistence adapter the engine consumes but does not
// implement. Write failures are survivable; in-memory state stays
// authoritative.
type SnapshotStore interface {
	Save(ctx context.Context, snap models.Session) error
	LoadAll(ctx context.Context) ([]models.Session, error)
	Delete(ctx context.Context, id string) error
}

// Broadcaster fans out state-change events. Publish must be fire-and-forget
// from the caller's perspective: a slow connection can never stall a
// session's mutation pipeline. PublishTo targets one user's connections
// within the session; the actor uses it to hand a joiner its snapshot on
// the same ordered path as the room's broadcasts.
type Broadcaster interface {
	Publish(sessionID string, event models.Event)
	PublishTo(sessionID, userID string, event models.Event)
	PublishGlobal(event models.Event)
}

// Filter narrows ListSessions. Mine selects sessions the user created or
// participates in; Status is "", "active", or "ended".
type Filter struct {
	UserID string
	Mine   bool
	Status string
}

type Config struct {
	Snapshots       SnapshotStore // optional; nil = ephemeral engine
	AllowSpectators bool          // allow read-only joins to ended sessions
}

// Store is the authoritative in-process registry of live sessions. The
// registry map has its own lock, independent of the per-session actors, so
// registry bookkeeping never contends with session mutation.
type Store struct {
	cfg   Config
	mu    sync.RWMutex
	rooms map[string]*room

	bmu   sync.RWMutex
	bcast Broadcaster
}

func NewStore(cfg Config) *Store {
	return &Store{
		cfg:   cfg,
		rooms: make(map[string]*room),
	}
}

// SetBroadcaster wires the fan-out sink. Called once during boot, before
// the store serves traffic; a nil broadcaster drops events.
func (s *Store) SetBroadcaster(b Broadcaster) {
	s.bmu.Lock()
	s.bcast = b
	s.bmu.Unlock()
}

func (s *Store) broadcaster() Broadcaster {
	s.bmu.RLock()
	defer s.bmu.RUnlock()
	return s.bcast
}

func (s *Store) publish(sessionID string, event models.Event) {
	if b := s.broadcaster(); b != nil {
		b.Publish(sessionID, event)
	}
}

func (s *Store) publishTo(sessionID, userID string, event models.Event) {
	if b := s.broadcaster(); b != nil {
		b.PublishTo(sessionID, userID, event)
	}
}

func (s *Store) publishGlobal(event models.Event) {
	if b := s.broadcaster(); b != nil {
		b.PublishGlobal(event)
	}
}

func (s *Store) room(id string) (*room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// CreateSession allocates a session with default settings and an empty
// itinerary, and announces it on the global discovery channel.
func (s *Store) CreateSession(name, creatorID string, teamID *string) (models.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Session{}, fmt.Errorf("%w: session name is required", ErrValidation)
	}
	if len(name) > maxSessionNameLength {
		return models.Session{}, fmt.Errorf("%w: session name exceeds %d characters", ErrValidation, maxSessionNameLength)
	}
	if creatorID == "" {
		return models.Session{}, fmt.Errorf("%w: creator is required", ErrValidation)
	}

	st := newState(name, creatorID, teamID)
	r := newRoom(s, st, true)

	s.mu.Lock()
	s.rooms[st.id] = r
	s.mu.Unlock()

	snap := sanitize(r.snapshot())
	r.markDirty()
	s.publishGlobal(models.Event{
		Type:      models.EventSessionCreated,
		SessionID: snap.ID,
		Data:      snap,
		Timestamp: time.Now(),
	})

	slog.Info("session created", "session_id", snap.ID, "name", name, "creator", creatorID)
	return snap, nil
}

func (s *Store) GetSession(id string) (models.Session, error) {
	r, ok := s.room(id)
	if !ok {
		return models.Session{}, ErrNotFound
	}
	return sanitize(r.snapshot()), nil
}

// ListSessions serves the sessions index from per-session snapshots without
// entering any serialization point; snapshots are immutable values, so
// there is no field-level tearing.
func (s *Store) ListSessions(f Filter) []models.Session {
	s.mu.RLock()
	rooms := make([]*room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	out := make([]models.Session, 0, len(rooms))
	for _, r := range rooms {
		snap := r.snapshot()
		if f.Status != "" && snap.Status != f.Status {
			continue
		}
		if f.Mine && !isMember(snap, f.UserID) {
			continue
		}
		out = append(out, sanitize(snap))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func isMember(snap models.Session, userID string) bool {
	if userID == "" {
		return false
	}
	if snap.CreatorID == userID {
		return true
	}
	for _, p := range snap.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// EndSession transitions the session to ended. Idempotent: ending an
// already-ended session is a no-op success so retrying callers never see a
// spurious failure.
func (s *Store) EndSession(id, byUserID string) (models.Session, error) {
	r, ok := s.room(id)
	if !ok {
		return models.Session{}, ErrNotFound
	}
	c := endCmd{byUserID: byUserID, reply: make(chan cmdResult, 1)}
	if !r.do(c) {
		// Actor already reaped; the session is ended.
		return sanitize(r.snapshot()), nil
	}
	res := <-c.reply
	return res.snap, res.err
}

// ApplySettingsPatch merges a partial settings update. Status is not a
// setting; ending a session goes through EndSession only.
func (s *Store) ApplySettingsPatch(id string, patch models.SettingsPatch) (models.Session, error) {
	r, ok := s.room(id)
	if !ok {
		return models.Session{}, ErrNotFound
	}
	c := settingsCmd{patch: patch, reply: make(chan cmdResult, 1)}
	if !r.do(c) {
		return models.Session{}, ErrSessionEnded
	}
	res := <-c.reply
	return res.snap, res.err
}

// Join upserts the user's Participant record and returns the full session
// snapshot. The presence-delta broadcast to other members fires only when
// presence actually changed, so a second tab joins silently. The snapshot
// also goes out as a session-state event to the joiner's connections; the
// actor sends it, so connections subscribed before calling Join observe the
// snapshot and every later event in order with nothing lost in between.
func (s *Store) Join(sessionID, userID, displayName string) (models.Session, error) {
	if userID == "" {
		return models.Session{}, fmt.Errorf("%w: user is required", ErrValidation)
	}
	r, ok := s.room(sessionID)
	if !ok {
		return models.Session{}, ErrNotFound
	}
	c := joinCmd{userID: userID, displayName: displayName, reply: make(chan cmdResult, 1)}
	if !r.do(c) {
		if s.cfg.AllowSpectators {
			// Reaped actor: no event will ever race this delivery.
			snap := sanitize(r.snapshot())
			s.publishTo(sessionID, userID, stateEvent(snap))
			return snap, nil
		}
		return models.Session{}, ErrSessionEnded
	}
	res := <-c.reply
	return res.snap, res.err
}

// Leave flips the participant to offline. The connection registry calls
// this only when the user's last connection to the session is gone.
func (s *Store) Leave(sessionID, userID string) error {
	r, ok := s.room(sessionID)
	if !ok {
		return ErrNotFound
	}
	c := leaveCmd{userID: userID, reply: make(chan cmdResult, 1)}
	if !r.do(c) {
		return nil
	}
	res := <-c.reply
	return res.err
}

// CastVote applies toggle vote semantics and returns the updated tally with
// server-side bookkeeping already stripped for broadcast.
func (s *Store) CastVote(sessionID, itemID, userID, direction string) (models.VoteTally, error) {
	switch direction {
	case "", models.VoteUp, models.VoteDown:
	default:
		return models.VoteTally{}, fmt.Errorf("%w: unknown vote direction %q", ErrValidation, direction)
	}
	if itemID == "" {
		return models.VoteTally{}, fmt.Errorf("%w: item is required", ErrValidation)
	}

	r, ok := s.room(sessionID)
	if !ok {
		return models.VoteTally{}, ErrNotFound
	}
	c := voteCmd{itemID: itemID, userID: userID, direction: direction, reply: make(chan cmdResult, 1)}
	if !r.do(c) {
		return models.VoteTally{}, ErrSessionEnded
	}
	res := <-c.reply
	return res.tally, res.err
}

// UpdateItinerary replaces the whole itinerary; the most recent update
// observed by the actor wins. This is a documented consistency trade-off,
// not a merge.
func (s *Store) UpdateItinerary(sessionID string, itin models.Itinerary, byUserID string) (models.Itinerary, error) {
	r, ok := s.room(sessionID)
	if !ok {
		return models.Itinerary{}, ErrNotFound
	}
	c := itineraryCmd{itin: itin, byUserID: byUserID, reply: make(chan cmdResult, 1)}
	if !r.do(c) {
		return models.Itinerary{}, ErrSessionEnded
	}
	res := <-c.reply
	return res.itin, res.err
}

// AddComment validates and relays a comment to the session.
func (s *Store) AddComment(sessionID, itemID, userID, text string) error {
	r, ok := s.room(sessionID)
	if !ok {
		return ErrNotFound
	}
	c := commentCmd{itemID: itemID, userID: userID, text: text, reply: make(chan cmdResult, 1)}
	if !r.do(c) {
		return ErrSessionEnded
	}
	res := <-c.reply
	return res.err
}

// MoveCursor updates the participant's cursor and broadcasts it.
func (s *Store) MoveCursor(sessionID, userID string, pos models.CursorPosition) error {
	r, ok := s.room(sessionID)
	if !ok {
		return ErrNotFound
	}
	c := cursorCmd{userID: userID, pos: pos, reply: make(chan cmdResult, 1)}
	if !r.do(c) {
		return ErrSessionEnded
	}
	res := <-c.reply
	return res.err
}

// SetPresence flips a participant between active and away. Offline is owned
// by Leave; this never resurrects an offline participant.
func (s *Store) SetPresence(sessionID, userID, presence string) {
	if presence != models.PresenceActive && presence != models.PresenceAway {
		return
	}
	r, ok := s.room(sessionID)
	if !ok {
		return
	}
	c := presenceCmd{userID: userID, presence: presence, reply: make(chan cmdResult, 1)}
	if !r.do(c) {
		return
	}
	<-c.reply
}

// ReleaseIfIdle reaps the session's actor once the session has ended and
// its last connection is gone. The snapshot stays readable for listings.
func (s *Store) ReleaseIfIdle(sessionID string) {
	r, ok := s.room(sessionID)
	if !ok {
		return
	}
	if r.snapshot().Status != models.StatusEnded {
		return
	}
	r.stop(true)
}

// DeleteSession removes an ended session from the registry and drops its
// persisted snapshot, so it no longer appears in listings or survives a
// restart. Active sessions must be ended first.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	r, ok := s.room(id)
	if !ok {
		return ErrNotFound
	}
	if r.snapshot().Status != models.StatusEnded {
		return ErrSessionActive
	}
	r.stop(false)

	s.mu.Lock()
	delete(s.rooms, id)
	s.mu.Unlock()

	if s.cfg.Snapshots != nil {
		if err := s.cfg.Snapshots.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}
	}
	slog.Info("session deleted", "session_id", id)
	return nil
}

// Restore loads persisted snapshots at boot. Ended sessions come back as
// read-only records without an actor.
func (s *Store) Restore(ctx context.Context) error {
	if s.cfg.Snapshots == nil {
		return nil
	}
	snaps, err := s.cfg.Snapshots.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load snapshots: %w", err)
	}

	restored := 0
	s.mu.Lock()
	for _, snap := range snaps {
		if _, ok := s.rooms[snap.ID]; ok {
			continue
		}
		st := newStateFromSnapshot(snap)
		s.rooms[snap.ID] = newRoom(s, st, snap.Status == models.StatusActive)
		restored++
	}
	s.mu.Unlock()

	if restored > 0 {
		slog.Info("sessions restored from snapshots", "count", restored)
	}
	return nil
}

// Close stops every actor and flushes final snapshots. Without a
// persistence adapter configured, sessions simply die with the process.
func (s *Store) Close() {
	s.mu.RLock()
	rooms := make([]*room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	for _, r := range rooms {
		r.stop(true)
	}
}
