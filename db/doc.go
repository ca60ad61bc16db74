// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation and snapshot persistence.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

One table, session_snapshot: one row per session, the full session state as
a JSONB payload plus the status column used for filtering on restore. The
in-memory engine is authoritative; rows here exist so sessions survive a
process restart.

# SnapshotStore

SnapshotStore adapts the table to the engine's persistence interface:

	store := session.NewStore(session.Config{
		Snapshots: db.NewSnapshotStore(conn),
	})

Save is an upsert. The engine serializes writes per session, so the whole
row is replaced without any merging.
*/
package db
