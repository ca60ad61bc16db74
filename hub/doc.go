// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package hub routes events between the session engine and WebSocket
connections.

The Hub keeps three views of the connection population: the global set
(discovery events), per-session fan-out sets (session events), and
per-session per-user connection counts. The counts are what make presence
accurate when one user opens several tabs: the engine hears about a join
only on the first connection and about a leave only when the last one goes.

Delivery is best-effort and non-blocking. Each connection owns a buffered
send channel; a connection that cannot keep up is disconnected instead of
back-pressuring the session that produced the event. Clients recover by
reconnecting and rejoining, which hands them a fresh full snapshot.

A join attaches the connection to the fan-out set before the command
reaches the session actor, and the actor answers with the session-state
snapshot through that same fan-out path. Per connection the snapshot and
all later events therefore form one ordered stream: whatever the snapshot
misses arrives as an event behind it, never in between.
*/
package hub
