package memory

import (
	"context"
	"testing"
	"time"

	"subtracker/internal/core"
)

func testSub(id string) core.Subscription {
	return core.Subscription{
		ID:              id,
		Name:            "sub " + id,
		Amount:          core.Money{Cents: 999},
		Cycle:           core.Monthly,
		Category:        "Test",
		Status:          core.StatusActive,
		NextPaymentDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestUpsertAppendsAndUpdates(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.Upsert(ctx, "user-1", testSub("sub-1"))
	if err != nil || ref != "mem:1" {
		t.Fatalf("first upsert: ref=%q err=%v", ref, err)
	}
	if ref, err = s.Upsert(ctx, "user-1", testSub("sub-2")); err != nil || ref != "mem:2" {
		t.Fatalf("second upsert: ref=%q err=%v", ref, err)
	}

	// Same ID keeps its row
	updated := testSub("sub-1")
	updated.Name = "renamed"
	if ref, err = s.Upsert(ctx, "user-1", updated); err != nil || ref != "mem:1" {
		t.Fatalf("update upsert: ref=%q err=%v", ref, err)
	}
	if s.Len() != 2 {
		t.Fatalf("len: got %d, want 2", s.Len())
	}

	got, userID, ok := s.Get("sub-1")
	if !ok || userID != "user-1" || got.Name != "renamed" {
		t.Fatalf("get: got %+v user=%q ok=%v", got, userID, ok)
	}
}

func TestUpsertRejectsInvalid(t *testing.T) {
	s := New()
	bad := testSub("sub-1")
	bad.Name = ""
	if _, err := s.Upsert(context.Background(), "user-1", bad); err == nil {
		t.Fatal("expected validation error")
	}
	if s.Len() != 0 {
		t.Fatalf("len: got %d, want 0", s.Len())
	}
}
