package store

import (
	"context"
	"testing"
	"time"
)

func TestSweepToPendingMovesStaleUnreleased(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stale := testItem(1, "Stale Unreleased")
	stale.ComingSoon = true
	if err := s.UpsertItem(ctx, &stale); err != nil {
		t.Fatalf("upsert stale: %v", err)
	}
	age(t, s, 1, 10*24*time.Hour)

	fresh := testItem(2, "Fresh Unreleased")
	fresh.ComingSoon = true
	if err := s.UpsertItem(ctx, &fresh); err != nil {
		t.Fatalf("upsert fresh: %v", err)
	}

	released := testItem(3, "Released")
	if err := s.UpsertItem(ctx, &released); err != nil {
		t.Fatalf("upsert released: %v", err)
	}
	age(t, s, 3, 10*24*time.Hour)

	moved, err := s.SweepToPending(ctx, 7*24*time.Hour, 1000)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if moved != 1 {
		t.Fatalf("moved = %d, want 1", moved)
	}

	// The stale unreleased item left the main table.
	if got, _ := s.GetItem(ctx, 1); got != nil {
		t.Fatal("swept item still present in items")
	}
	// Fresh and released items stayed.
	if got, _ := s.GetItem(ctx, 2); got == nil {
		t.Fatal("fresh unreleased item was swept")
	}
	if got, _ := s.GetItem(ctx, 3); got == nil {
		t.Fatal("released item was swept")
	}

	pending, err := s.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].AppID != 1 {
		t.Fatalf("pending = %+v, want only app 1", pending)
	}
	if pending[0].Name != "Stale Unreleased" {
		t.Fatalf("pending name = %q", pending[0].Name)
	}
}

func TestSweepToPendingBatchLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for id := int64(1); id <= 5; id++ {
		item := testItem(id, "Waiting")
		item.ComingSoon = true
		if err := s.UpsertItem(ctx, &item); err != nil {
			t.Fatalf("upsert %d: %v", id, err)
		}
		age(t, s, id, 10*24*time.Hour)
	}

	moved, err := s.SweepToPending(ctx, 7*24*time.Hour, 2)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if moved != 2 {
		t.Fatalf("moved = %d, want 2", moved)
	}
}

func TestSweepToPendingAtomicOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem(1, "Conflicting")
	item.ComingSoon = true
	if err := s.UpsertItem(ctx, &item); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	age(t, s, 1, 10*24*time.Hour)

	// Plant a pending row with the same key so the copy step must fail.
	_, err := s.db.Exec(
		"INSERT INTO pending_recheck (app_id, name, last_synced_at, stale_since) VALUES (1, 'planted', ?, ?)",
		time.Now().UTC(), time.Now().UTC())
	if err != nil {
		t.Fatalf("plant pending row: %v", err)
	}

	if _, err := s.SweepToPending(ctx, 7*24*time.Hour, 1000); err == nil {
		t.Fatal("expected sweep to fail on pending key conflict")
	}

	// The transaction rolled back and the item never left the main table.
	got, err := s.GetItem(ctx, 1)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got == nil {
		t.Fatal("item vanished from items after failed sweep")
	}
}

func TestSweepToPendingNothingStale(t *testing.T) {
	s := newTestStore(t)

	moved, err := s.SweepToPending(context.Background(), 7*24*time.Hour, 1000)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if moved != 0 {
		t.Fatalf("moved = %d, want 0", moved)
	}
}

func TestMarkPendingActivityAndPromote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem(1, "Pending")
	item.ComingSoon = true
	if err := s.UpsertItem(ctx, &item); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	age(t, s, 1, 10*24*time.Hour)
	if _, err := s.SweepToPending(ctx, 7*24*time.Hour, 1000); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	newsAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.MarkPendingActivity(ctx, 1, newsAt); err != nil {
		t.Fatalf("mark activity: %v", err)
	}

	pending, err := s.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].LastNewsAt == nil {
		t.Fatalf("pending = %+v, want one entry with news timestamp", pending)
	}
	if !pending[0].LastNewsAt.Equal(newsAt) {
		t.Fatalf("last_news_at = %v, want %v", pending[0].LastNewsAt, newsAt)
	}

	if err := s.PromoteFromPending(ctx, 1); err != nil {
		t.Fatalf("promote: %v", err)
	}
	pending, err = s.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %+v, want empty after promote", pending)
	}
}
