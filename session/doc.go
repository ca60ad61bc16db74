// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package session is the engine core: the authoritative in-process registry
of live planning sessions and the single writer of their state.

# Concurrency Model

Every session owns one actor goroutine with an unbuffered typed-command
mailbox. All mutating operations against a session funnel through that
mailbox, so concurrent votes, itinerary edits, and settings updates on the
same session are totally ordered and never interleave at the field level.
Operations on different sessions proceed fully in parallel.

Reads never enter the mailbox: after each mutation the actor publishes an
immutable full snapshot through an atomic pointer, and GetSession /
ListSessions serve from that.

The registry map (session id → actor) uses its own RWMutex, decoupled from
per-session serialization.

# Operations

	store := session.NewStore(session.Config{Snapshots: snaps})
	store.SetBroadcaster(hub)

	s, err := store.CreateSession("Q4 Outing", "user-1", nil)
	snap, err := store.Join(s.ID, "user-2", "Bob")
	tally, err := store.CastVote(s.ID, itemID, "user-2", models.VoteUp)
	itin, err := store.UpdateItinerary(s.ID, newItinerary, "user-1")
	s, err = store.EndSession(s.ID, "user-1")   // idempotent

# Vote Semantics

One vote per user per item. Re-voting the same direction clears the vote
(toggle, idempotent under client retries); switching direction moves it.
Tallies are maintained incrementally, so a cast is O(1). When the session
votes anonymously the voters set is stripped from every client payload but
still tracked for duplicate prevention.

# Itinerary Semantics

Whole-itinerary replacement, last writer wins by mailbox order. Two
near-simultaneous updates resolve deterministically by queue order, not by
client clock.

# Persistence

Snapshot writes go through the SnapshotStore interface asynchronously and
best-effort: a storage outage is logged and degraded, never blocking live
collaboration. Without an adapter the engine runs ephemeral and sessions
die with the process.
*/
package session
