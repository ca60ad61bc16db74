// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/danielhkuo/huddle-plan/models"
)

// SnapshotStore persists whole-session snapshots as JSONB rows. It satisfies
// the engine's persistence interface; the engine never sees SQL.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Save upserts the session's snapshot. The row is replaced wholesale; the
// engine serializes writes per session, so no merge is needed here.
func (s *SnapshotStore) Save(ctx context.Context, snap models.Session) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %s: %w", snap.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_snapshot (id, status, payload, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, payload = EXCLUDED.payload, updated_at = NOW()`,
		snap.ID, snap.Status, payload)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", snap.ID, err)
	}

	return nil
}

// Load fetches one session snapshot by id.
func (s *SnapshotStore) Load(ctx context.Context, id string) (models.Session, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM session_snapshot WHERE id = $1`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return models.Session{}, fmt.Errorf("snapshot %s not found", id)
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to load snapshot %s: %w", id, err)
	}

	var snap models.Session
	if err := json.Unmarshal(payload, &snap); err != nil {
		return models.Session{}, fmt.Errorf("failed to unmarshal snapshot %s: %w", id, err)
	}
	return snap, nil
}

// LoadAll fetches every stored snapshot, for boot-time restore.
func (s *SnapshotStore) LoadAll(ctx context.Context) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM session_snapshot ORDER BY updated_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.Session
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		var snap models.Session
		if err := json.Unmarshal(payload, &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}

	return snaps, nil
}

// Delete removes a session's snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_snapshot WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
	}
	return nil
}
