// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/huddle-plan/models"
)

const maxCommentLength = 2000

// state is the mutable session record. It is owned exclusively by the
// session's actor goroutine; nothing outside the run loop touches it.
type state struct {
	id        string
	name      string
	creatorID string
	teamID    *string
	status    string
	createdAt time.Time
	endedAt   *time.Time
	settings  models.SessionSettings
	itinerary models.Itinerary
	votes     map[string]*itemVotes
	parts     map[string]*models.Participant
}

// itemVotes keeps counts incrementally so a cast is O(1) instead of a
// rescan of all voters.
type itemVotes struct {
	up     int
	down   int
	byUser map[string]string // userID -> direction
}

func newState(name, creatorID string, teamID *string) *state {
	return &state{
		id:        uuid.NewString(),
		name:      name,
		creatorID: creatorID,
		teamID:    teamID,
		status:    models.StatusActive,
		createdAt: time.Now(),
		settings:  models.DefaultSettings(),
		votes:     make(map[string]*itemVotes),
		parts:     make(map[string]*models.Participant),
	}
}

// newStateFromSnapshot rebuilds a session from a persisted snapshot. Every
// participant comes back offline with no cursor: there are no live
// connections after a restart.
func newStateFromSnapshot(snap models.Session) *state {
	st := &state{
		id:        snap.ID,
		name:      snap.Name,
		creatorID: snap.CreatorID,
		teamID:    snap.TeamID,
		status:    snap.Status,
		createdAt: snap.CreatedAt,
		endedAt:   snap.EndedAt,
		settings:  snap.Settings,
		itinerary: snap.Itinerary,
		votes:     make(map[string]*itemVotes, len(snap.Votes)),
		parts:     make(map[string]*models.Participant, len(snap.Participants)),
	}
	for itemID, tally := range snap.Votes {
		iv := &itemVotes{byUser: make(map[string]string, len(tally.Ballots))}
		for userID, dir := range tally.Ballots {
			iv.byUser[userID] = dir
			switch dir {
			case models.VoteUp:
				iv.up++
			case models.VoteDown:
				iv.down++
			}
		}
		st.votes[itemID] = iv
	}
	for _, p := range snap.Participants {
		part := p
		part.Presence = models.PresenceOffline
		part.Cursor = nil
		st.parts[p.UserID] = &part
	}
	return st
}

// upsertParticipant registers a join. Exactly one Participant entry exists
// per userId regardless of how many connections the user holds.
func (st *state) upsertParticipant(userID, displayName string) (models.Participant, bool) {
	if p, ok := st.parts[userID]; ok {
		changed := p.Presence != models.PresenceActive
		p.Presence = models.PresenceActive
		if displayName != "" {
			p.DisplayName = displayName
		}
		return *p, changed
	}
	p := &models.Participant{
		UserID:      userID,
		DisplayName: displayName,
		Presence:    models.PresenceActive,
		JoinedAt:    time.Now(),
	}
	if p.DisplayName == "" {
		p.DisplayName = userID
	}
	st.parts[userID] = p
	return *p, true
}

// markOffline flips a participant to offline without deleting the record;
// vote attribution must survive disconnects.
func (st *state) markOffline(userID string) bool {
	p, ok := st.parts[userID]
	if !ok || p.Presence == models.PresenceOffline {
		return false
	}
	p.Presence = models.PresenceOffline
	p.Cursor = nil
	return true
}

func (st *state) setPresence(userID, presence string) bool {
	p, ok := st.parts[userID]
	if !ok || p.Presence == models.PresenceOffline || p.Presence == presence {
		return false
	}
	p.Presence = presence
	return true
}

func (st *state) hasItem(itemID string) bool {
	for _, item := range st.itinerary.Items {
		if item.ID == itemID {
			return true
		}
	}
	return false
}

// castVote applies toggle semantics: re-voting the same direction clears
// the vote, an empty direction clears it explicitly, and switching
// direction moves the ballot in one step.
func (st *state) castVote(userID, itemID, direction string) (models.VoteTally, error) {
	if !st.settings.VotingEnabled {
		return models.VoteTally{}, ErrVotingDisabled
	}
	if !st.hasItem(itemID) {
		return models.VoteTally{}, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if _, ok := st.parts[userID]; !ok {
		return models.VoteTally{}, ErrNotMember
	}

	iv, ok := st.votes[itemID]
	if !ok {
		iv = &itemVotes{byUser: make(map[string]string)}
		st.votes[itemID] = iv
	}

	prev := iv.byUser[userID]
	switch prev {
	case models.VoteUp:
		iv.up--
	case models.VoteDown:
		iv.down--
	}
	delete(iv.byUser, userID)

	if direction != "" && direction != prev {
		iv.byUser[userID] = direction
		if direction == models.VoteUp {
			iv.up++
		} else {
			iv.down++
		}
	}

	return iv.tally(), nil
}

// replaceItinerary is a whole-itinerary swap: last writer wins by actor
// queue order. New items get ids; tallies for ids that no longer exist are
// pruned so removed items stop leaking into snapshots.
func (st *state) replaceItinerary(itin models.Itinerary) models.Itinerary {
	for i := range itin.Items {
		if itin.Items[i].ID == "" {
			itin.Items[i].ID = uuid.NewString()
		}
	}
	st.itinerary = itin

	live := make(map[string]bool, len(itin.Items))
	for _, item := range itin.Items {
		live[item.ID] = true
	}
	for itemID := range st.votes {
		if !live[itemID] {
			delete(st.votes, itemID)
		}
	}
	return st.itinerary
}

func (st *state) applySettingsPatch(patch models.SettingsPatch) {
	if patch.VotingEnabled != nil {
		st.settings.VotingEnabled = *patch.VotingEnabled
	}
	if patch.AnonymousVoting != nil {
		st.settings.AnonymousVoting = *patch.AnonymousVoting
	}
	if patch.RequireConsensus != nil {
		st.settings.RequireConsensus = *patch.RequireConsensus
	}
	if patch.AutoSchedule != nil {
		st.settings.AutoSchedule = *patch.AutoSchedule
	}
}

func (st *state) validateComment(userID, itemID, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: comment is empty", ErrValidation)
	}
	if len(text) > maxCommentLength {
		return fmt.Errorf("%w: comment exceeds %d characters", ErrValidation, maxCommentLength)
	}
	if !st.hasItem(itemID) {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if _, ok := st.parts[userID]; !ok {
		return ErrNotMember
	}
	return nil
}

func (iv *itemVotes) tally() models.VoteTally {
	t := models.VoteTally{
		Upvotes:   iv.up,
		Downvotes: iv.down,
		Total:     iv.up - iv.down,
		Ballots:   make(map[string]string, len(iv.byUser)),
	}
	for userID, dir := range iv.byUser {
		t.Ballots[userID] = dir
		t.Voters = append(t.Voters, userID)
	}
	sort.Strings(t.Voters)
	return t
}

// snapshot builds an immutable full copy of the session. Participants are
// serialized as an ordered sequence (join time, then userId) even though
// they are a set internally.
func (st *state) snapshot() models.Session {
	snap := models.Session{
		ID:        st.id,
		Name:      st.name,
		CreatorID: st.creatorID,
		TeamID:    st.teamID,
		Status:    st.status,
		CreatedAt: st.createdAt,
		EndedAt:   st.endedAt,
		Settings:  st.settings,
		Votes:     make(map[string]models.VoteTally, len(st.votes)),
	}

	snap.Itinerary = models.Itinerary{
		Items:     append([]models.ItineraryItem(nil), st.itinerary.Items...),
		StartDate: st.itinerary.StartDate,
		EndDate:   st.itinerary.EndDate,
	}

	for itemID, iv := range st.votes {
		snap.Votes[itemID] = iv.tally()
	}

	snap.Participants = make([]models.Participant, 0, len(st.parts))
	for _, p := range st.parts {
		part := *p
		if p.Cursor != nil {
			cursor := *p.Cursor
			part.Cursor = &cursor
		}
		snap.Participants = append(snap.Participants, part)
	}
	sort.Slice(snap.Participants, func(i, j int) bool {
		a, b := snap.Participants[i], snap.Participants[j]
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.UserID < b.UserID
	})

	return snap
}

// sanitize strips server-side vote bookkeeping from a snapshot before it
// goes to a client: ballots always, the voters set when voting is
// anonymous.
func sanitize(snap models.Session) models.Session {
	out := snap
	out.Votes = make(map[string]models.VoteTally, len(snap.Votes))
	for itemID, tally := range snap.Votes {
		out.Votes[itemID] = wireTally(tally, snap.Settings.AnonymousVoting)
	}
	return out
}

func wireTally(tally models.VoteTally, anonymous bool) models.VoteTally {
	tally.Ballots = nil
	if anonymous {
		tally.Voters = nil
	}
	return tally
}
