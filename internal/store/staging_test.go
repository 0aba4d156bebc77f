package store

import (
	"context"
	"testing"
)

func TestStageAndMergeDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	existing := testItem(1, "Known Game")
	existing.ChangeMarker = "2026-01-15"
	if err := s.UpsertItem(ctx, &existing); err != nil {
		t.Fatalf("upsert existing: %v", err)
	}

	if err := s.ResetStaging(ctx); err != nil {
		t.Fatalf("reset staging: %v", err)
	}

	// Exact natural key match: must be dropped at merge.
	dup := testItem(1, "Known Game")
	dup.ChangeMarker = "2026-01-15"
	if err := s.Stage(ctx, "run-1", &dup); err != nil {
		t.Fatalf("stage dup: %v", err)
	}

	// Brand-new record: must land.
	fresh := testItem(2, "New Game")
	fresh.ChangeMarker = "2026-02-01"
	if err := s.Stage(ctx, "run-1", &fresh); err != nil {
		t.Fatalf("stage fresh: %v", err)
	}

	inserted, err := s.MergeStaging(ctx)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("inserted = %d, want 1", inserted)
	}

	got, err := s.GetItem(ctx, 2)
	if err != nil {
		t.Fatalf("get merged item: %v", err)
	}
	if got == nil || got.Name != "New Game" {
		t.Fatalf("merged item = %+v", got)
	}
}

func TestMergeStagingFirstWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	existing := testItem(1, "Original Title")
	existing.ChangeMarker = "2026-01-15"
	if err := s.UpsertItem(ctx, &existing); err != nil {
		t.Fatalf("upsert existing: %v", err)
	}

	if err := s.ResetStaging(ctx); err != nil {
		t.Fatalf("reset staging: %v", err)
	}

	// Same app, changed marker. The natural key differs but the primary
	// key collides; the existing row must survive untouched.
	changed := testItem(1, "Original Title")
	changed.ChangeMarker = "2026-03-01"
	if err := s.Stage(ctx, "run-2", &changed); err != nil {
		t.Fatalf("stage changed: %v", err)
	}

	inserted, err := s.MergeStaging(ctx)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("inserted = %d, want 0", inserted)
	}

	got, err := s.GetItem(ctx, 1)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.ChangeMarker != "2026-01-15" {
		t.Fatalf("change_marker = %q, want original preserved", got.ChangeMarker)
	}
}

func TestResetStagingDiscardsLeftovers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ResetStaging(ctx); err != nil {
		t.Fatalf("first reset: %v", err)
	}
	leftover := testItem(1, "Leftover")
	if err := s.Stage(ctx, "run-old", &leftover); err != nil {
		t.Fatalf("stage leftover: %v", err)
	}

	if err := s.ResetStaging(ctx); err != nil {
		t.Fatalf("second reset: %v", err)
	}

	inserted, err := s.MergeStaging(ctx)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("inserted = %d, want 0 after reset", inserted)
	}
}

func TestDropStagingIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.DropStaging(ctx); err != nil {
		t.Fatalf("drop without table: %v", err)
	}
	if err := s.ResetStaging(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := s.DropStaging(ctx); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := s.DropStaging(ctx); err != nil {
		t.Fatalf("repeated drop: %v", err)
	}
}
