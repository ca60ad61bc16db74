// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"errors"
	"sync"

	"github.com/danielhkuo/huddle-plan/models"
)

// fakeSnapshots is an in-memory SnapshotStore; failFor makes the next N
// saves fail to exercise the degrade path.
type fakeSnapshots struct {
	mu      sync.Mutex
	snaps   map[string]models.Session
	failFor int
	saves   int
}

func (f *fakeSnapshots) Save(ctx context.Context, snap models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.failFor > 0 {
		f.failFor--
		return errors.New("snapshot store unavailable")
	}
	if f.snaps == nil {
		f.snaps = make(map[string]models.Session)
	}
	f.snaps[snap.ID] = snap
	return nil
}

func (f *fakeSnapshots) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snaps, id)
	return nil
}

func (f *fakeSnapshots) LoadAll(ctx context.Context) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Session, 0, len(f.snaps))
	for _, snap := range f.snaps {
		out = append(out, snap)
	}
	return out, nil
}
