// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/huddle-plan/models"
)

// Typed mailbox messages. Every inbound command becomes one of these;
// the run loop is the only writer of room state, so commands against the
// same session are totally ordered and never interleave at the field level.

type cmdResult struct {
	snap  models.Session
	tally models.VoteTally
	itin  models.Itinerary
	err   error
}

type joinCmd struct {
	userID      string
	displayName string
	reply       chan cmdResult
}

type leaveCmd struct {
	userID string
	reply  chan cmdResult
}

type endCmd struct {
	byUserID string
	reply    chan cmdResult
}

type settingsCmd struct {
	patch models.SettingsPatch
	reply chan cmdResult
}

type voteCmd struct {
	itemID    string
	userID    string
	direction string
	reply     chan cmdResult
}

type itineraryCmd struct {
	itin     models.Itinerary
	byUserID string
	reply    chan cmdResult
}

type commentCmd struct {
	itemID string
	userID string
	text   string
	reply  chan cmdResult
}

type cursorCmd struct {
	userID string
	pos    models.CursorPosition
	reply  chan cmdResult
}

type presenceCmd struct {
	userID   string
	presence string
	reply    chan cmdResult
}

type stopCmd struct {
	reply chan struct{}
}

// room is the per-session serialization point: one actor goroutine, one
// unbuffered mailbox. Reads never enter the mailbox; they load the
// atomically published snapshot instead.
type room struct {
	store   *Store
	inbox   chan any
	closed  chan struct{}
	persist chan struct{}
	pdone   chan struct{}
	snap    atomic.Pointer[models.Session]
	st      *state
}

// newRoom wires a room around its state. A stopped room (ended session
// restored from a snapshot) keeps its snapshot readable but accepts no
// commands.
func newRoom(s *Store, st *state, started bool) *room {
	r := &room{
		store:   s,
		inbox:   make(chan any),
		closed:  make(chan struct{}),
		persist: make(chan struct{}, 1),
		pdone:   make(chan struct{}),
		st:      st,
	}
	r.refresh()
	if started {
		go r.run()
		go r.persister()
	} else {
		close(r.closed)
		close(r.pdone)
	}
	return r
}

// do submits a command unless the actor has stopped. An accepted command is
// always processed (the mailbox is unbuffered), so a true return guarantees
// a reply.
func (r *room) do(cmd any) bool {
	select {
	case r.inbox <- cmd:
		return true
	case <-r.closed:
		return false
	}
}

// snapshot returns the last published full snapshot. Safe from any
// goroutine; the pointed-to value is never mutated after publication.
func (r *room) snapshot() models.Session {
	return *r.snap.Load()
}

func (r *room) refresh() {
	snap := r.st.snapshot()
	r.snap.Store(&snap)
}

// markDirty schedules an asynchronous snapshot write. Non-blocking: a
// pending write coalesces with the next one, and a storage outage never
// stalls the mutation pipeline.
func (r *room) markDirty() {
	select {
	case r.persist <- struct{}{}:
	default:
	}
}

func (r *room) run() {
	for {
		cmd := <-r.inbox
		switch c := cmd.(type) {
		case joinCmd:
			r.handleJoin(c)
		case leaveCmd:
			r.handleLeave(c)
		case endCmd:
			r.handleEnd(c)
		case settingsCmd:
			r.handleSettings(c)
		case voteCmd:
			r.handleVote(c)
		case itineraryCmd:
			r.handleItinerary(c)
		case commentCmd:
			r.handleComment(c)
		case cursorCmd:
			r.handleCursor(c)
		case presenceCmd:
			r.handlePresence(c)
		case stopCmd:
			close(r.closed)
			c.reply <- struct{}{}
			return
		}
	}
}

func (r *room) handleJoin(c joinCmd) {
	if r.st.status == models.StatusEnded {
		if !r.store.cfg.AllowSpectators {
			c.reply <- cmdResult{err: ErrSessionEnded}
			return
		}
		// Read-only observer: snapshot out, no participant record.
		snap := sanitize(r.snapshot())
		r.sendState(c.userID, snap)
		c.reply <- cmdResult{snap: snap}
		return
	}

	p, changed := r.st.upsertParticipant(c.userID, c.displayName)
	if changed {
		r.refresh()
		r.markDirty()
		r.publish(models.EventUserJoined, p)
	}
	// The snapshot leaves through the same ordered path as the room's
	// broadcasts, so a subscribed connection cannot miss an event that the
	// snapshot does not already contain.
	snap := sanitize(r.snapshot())
	r.sendState(c.userID, snap)
	c.reply <- cmdResult{snap: snap}
}

func (r *room) handleLeave(c leaveCmd) {
	if r.st.status == models.StatusEnded {
		c.reply <- cmdResult{}
		return
	}
	if r.st.markOffline(c.userID) {
		r.refresh()
		r.markDirty()
		r.publish(models.EventUserLeft, models.PresenceDelta{
			UserID:   c.userID,
			Presence: models.PresenceOffline,
		})
	}
	c.reply <- cmdResult{}
}

func (r *room) handleEnd(c endCmd) {
	// Idempotent: ending an ended session is a no-op success.
	if r.st.status != models.StatusEnded {
		now := time.Now()
		r.st.status = models.StatusEnded
		r.st.endedAt = &now
		r.refresh()
		r.markDirty()
		slog.Info("session ended", "session_id", r.st.id, "by", c.byUserID)
	}
	c.reply <- cmdResult{snap: sanitize(r.snapshot())}
}

func (r *room) handleSettings(c settingsCmd) {
	if r.st.status == models.StatusEnded {
		c.reply <- cmdResult{err: ErrSessionEnded}
		return
	}
	r.st.applySettingsPatch(c.patch)
	r.refresh()
	r.markDirty()
	c.reply <- cmdResult{snap: sanitize(r.snapshot())}
}

func (r *room) handleVote(c voteCmd) {
	if r.st.status == models.StatusEnded {
		c.reply <- cmdResult{err: ErrSessionEnded}
		return
	}
	tally, err := r.st.castVote(c.userID, c.itemID, c.direction)
	if err != nil {
		c.reply <- cmdResult{err: err}
		return
	}
	r.refresh()
	r.markDirty()
	wire := wireTally(tally, r.st.settings.AnonymousVoting)
	r.publish(models.EventVoteUpdate, models.VoteUpdate{ItemID: c.itemID, Votes: wire})
	c.reply <- cmdResult{tally: wire}
}

func (r *room) handleItinerary(c itineraryCmd) {
	if r.st.status == models.StatusEnded {
		c.reply <- cmdResult{err: ErrSessionEnded}
		return
	}
	if _, ok := r.st.parts[c.byUserID]; !ok {
		c.reply <- cmdResult{err: ErrNotMember}
		return
	}
	itin := r.st.replaceItinerary(c.itin)
	r.refresh()
	r.markDirty()
	r.publish(models.EventItineraryUpdated, models.ItineraryUpdate{
		Itinerary: itin,
		UpdatedBy: c.byUserID,
	})
	c.reply <- cmdResult{itin: itin}
}

func (r *room) handleComment(c commentCmd) {
	if r.st.status == models.StatusEnded {
		c.reply <- cmdResult{err: ErrSessionEnded}
		return
	}
	if err := r.st.validateComment(c.userID, c.itemID, c.text); err != nil {
		c.reply <- cmdResult{err: err}
		return
	}
	// Relay only; comments are not part of the snapshot entity.
	r.publish(models.EventCommentAdded, models.Comment{
		ID:      uuid.NewString(),
		ItemID:  c.itemID,
		UserID:  c.userID,
		Comment: c.text,
		At:      time.Now(),
	})
	c.reply <- cmdResult{}
}

func (r *room) handleCursor(c cursorCmd) {
	if r.st.status == models.StatusEnded {
		c.reply <- cmdResult{err: ErrSessionEnded}
		return
	}
	p, ok := r.st.parts[c.userID]
	if !ok {
		c.reply <- cmdResult{err: ErrNotMember}
		return
	}
	pos := c.pos
	p.Cursor = &pos
	if p.Presence == models.PresenceAway {
		p.Presence = models.PresenceActive
	}
	// Transient state: refresh the snapshot but skip the persistence write.
	r.refresh()
	r.publish(models.EventCursorUpdate, models.CursorUpdate{UserID: c.userID, Position: pos})
	c.reply <- cmdResult{}
}

func (r *room) handlePresence(c presenceCmd) {
	if r.st.status == models.StatusEnded {
		c.reply <- cmdResult{}
		return
	}
	if r.st.setPresence(c.userID, c.presence) {
		r.refresh()
	}
	c.reply <- cmdResult{}
}

func (r *room) publish(eventType string, data any) {
	r.store.publish(r.st.id, models.Event{
		Type:      eventType,
		SessionID: r.st.id,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// sendState delivers the full snapshot to one user's connections.
func (r *room) sendState(userID string, snap models.Session) {
	r.store.publishTo(r.st.id, userID, stateEvent(snap))
}

func stateEvent(snap models.Session) models.Event {
	return models.Event{
		Type:      models.EventSessionState,
		SessionID: snap.ID,
		Data:      snap,
		Timestamp: time.Now(),
	}
}

// stop halts the actor. With an unbuffered mailbox every command accepted
// before the stop has already been processed, so no caller is left waiting
// on a reply.
func (r *room) stop(flush bool) {
	c := stopCmd{reply: make(chan struct{}, 1)}
	if !r.do(c) {
		return
	}
	<-c.reply
	// Wait out the persister so no queued write lands after the stop.
	<-r.pdone
	if flush {
		r.saveSnapshot()
	}
}

func (r *room) persister() {
	defer close(r.pdone)
	for {
		select {
		case <-r.persist:
			r.saveSnapshot()
		case <-r.closed:
			return
		}
	}
}

// saveSnapshot writes the current snapshot through the persistence adapter.
// Failures degrade: one retry, then a warning. In-memory state remains
// authoritative either way.
func (r *room) saveSnapshot() {
	snapshots := r.store.cfg.Snapshots
	if snapshots == nil {
		return
	}
	snap := r.snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := snapshots.Save(ctx, snap)
	if err != nil {
		time.Sleep(100 * time.Millisecond)
		err = snapshots.Save(ctx, snap)
	}
	if err != nil {
		slog.Warn("snapshot write failed, in-memory state remains authoritative",
			"session_id", snap.ID, "error", err)
	}
}
