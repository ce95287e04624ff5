package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"subtracker/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testSub(id, name string) core.Subscription {
	return core.Subscription{
		ID:              id,
		Name:            name,
		Amount:          core.Money{Cents: 1599},
		Cycle:           core.Monthly,
		Category:        "Entertainment",
		Status:          core.StatusActive,
		NextPaymentDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateAndGetSubscription(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateSubscription(ctx, "user-1", testSub("sub-1", "Netflix"))
	if err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if created.ID != "sub-1" || created.Name != "Netflix" {
		t.Fatalf("unexpected created subscription: %+v", created)
	}

	got, err := repo.GetSubscription(ctx, "user-1", "sub-1")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if got.Amount.Cents != 1599 || got.Cycle != core.Monthly || got.Category != "Entertainment" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.NextPaymentDate.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("next payment date mismatch: %v", got.NextPaymentDate)
	}
}

func TestGetSubscriptionScopedToUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateSubscription(ctx, "user-1", testSub("sub-1", "Netflix")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	if _, err := repo.GetSubscription(ctx, "user-2", "sub-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
}

func TestListSubscriptionsPerUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, tc := range []struct{ user, id, name string }{
		{"user-1", "sub-1", "Netflix"},
		{"user-1", "sub-2", "Spotify"},
		{"user-2", "sub-3", "Hulu"},
	} {
		if _, err := repo.CreateSubscription(ctx, tc.user, testSub(tc.id, tc.name)); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	subs, err := repo.ListSubscriptions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListSubscriptions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d subscriptions, want 2", len(subs))
	}
}

func TestUpdateSubscription(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateSubscription(ctx, "user-1", testSub("sub-1", "Netflix")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	updated := testSub("sub-1", "Netflix Premium")
	updated.Amount = core.Money{Cents: 2299}
	updated.Status = core.StatusPaused
	version, err := repo.UpdateSubscription(ctx, "user-1", updated)
	if err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	if version != 2 {
		t.Fatalf("version: got %d, want 2", version)
	}

	got, err := repo.GetSubscription(ctx, "user-1", "sub-1")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if got.Name != "Netflix Premium" || got.Amount.Cents != 2299 || got.Status != core.StatusPaused {
		t.Fatalf("update not applied: %+v", got)
	}

	if _, err := repo.UpdateSubscription(ctx, "user-1", testSub("missing", "x")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}
}

func TestUpdateResetsExportState(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateSubscription(ctx, "user-1", testSub("sub-1", "Netflix")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if err := repo.MarkExported(ctx, "sub-1"); err != nil {
		t.Fatalf("MarkExported: %v", err)
	}

	pending, err := repo.GetPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExports: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("exported subscription still pending: %+v", pending)
	}

	if _, err := repo.UpdateSubscription(ctx, "user-1", testSub("sub-1", "Netflix 4K")); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}

	pending, err = repo.GetPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExports: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "sub-1" {
		t.Fatalf("updated subscription should be pending again: %+v", pending)
	}
	if pending[0].Version < 2 {
		t.Fatalf("version should bump on update, got %d", pending[0].Version)
	}
}

func TestSoftDeleteSubscription(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateSubscription(ctx, "user-1", testSub("sub-1", "Netflix")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if err := repo.DeleteSubscription(ctx, "user-1", "sub-1"); err != nil {
		t.Fatalf("DeleteSubscription: %v", err)
	}

	if _, err := repo.GetSubscription(ctx, "user-1", "sub-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	subs, err := repo.ListSubscriptions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListSubscriptions: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("deleted subscription still listed: %+v", subs)
	}

	if err := repo.DeleteSubscription(ctx, "user-1", "sub-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestCountActiveSubscriptions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	active := testSub("sub-1", "Netflix")
	paused := testSub("sub-2", "Spotify")
	paused.Status = core.StatusPaused

	if _, err := repo.CreateSubscription(ctx, "user-1", active); err != nil {
		t.Fatalf("create active: %v", err)
	}
	if _, err := repo.CreateSubscription(ctx, "user-1", paused); err != nil {
		t.Fatalf("create paused: %v", err)
	}

	n, err := repo.CountActiveSubscriptions(ctx, "user-1")
	if err != nil {
		t.Fatalf("CountActiveSubscriptions: %v", err)
	}
	if n != 1 {
		t.Fatalf("got %d active, want 1", n)
	}
}

func TestDueSubscriptionsAndAdvance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	overdue := testSub("sub-1", "Netflix")
	overdue.NextPaymentDate = now.AddDate(0, 0, -3)
	future := testSub("sub-2", "Spotify")
	future.NextPaymentDate = now.AddDate(0, 0, 10)

	if _, err := repo.CreateSubscription(ctx, "user-1", overdue); err != nil {
		t.Fatalf("create overdue: %v", err)
	}
	if _, err := repo.CreateSubscription(ctx, "user-1", future); err != nil {
		t.Fatalf("create future: %v", err)
	}

	due, err := repo.ListDueSubscriptions(ctx, now, 100)
	if err != nil {
		t.Fatalf("ListDueSubscriptions: %v", err)
	}
	if len(due) != 1 || due[0].ID != "sub-1" {
		t.Fatalf("due: got %+v, want only sub-1", due)
	}
	if due[0].UserID != "user-1" || due[0].Cycle != core.Monthly {
		t.Fatalf("due row incomplete: %+v", due[0])
	}

	next := now.AddDate(0, 1, 0)
	if err := repo.AdvanceRenewal(ctx, "sub-1", core.StatusActive, next); err != nil {
		t.Fatalf("AdvanceRenewal: %v", err)
	}

	due, err = repo.ListDueSubscriptions(ctx, now, 100)
	if err != nil {
		t.Fatalf("ListDueSubscriptions after advance: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("advanced subscription still due: %+v", due)
	}

	got, err := repo.GetSubscription(ctx, "user-1", "sub-1")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if !got.NextPaymentDate.Equal(next) {
		t.Fatalf("next payment date: got %v, want %v", got.NextPaymentDate, next)
	}
}

func TestPendingExportLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateSubscription(ctx, "user-1", testSub("sub-1", "Netflix")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	pending, err := repo.GetPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExports: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "sub-1" || pending[0].Version != 1 {
		t.Fatalf("pending: got %+v", pending)
	}

	sub, userID, err := repo.GetSubscriptionForExport(ctx, "sub-1")
	if err != nil {
		t.Fatalf("GetSubscriptionForExport: %v", err)
	}
	if userID != "user-1" || sub.Name != "Netflix" {
		t.Fatalf("export lookup: got (%+v, %q)", sub, userID)
	}

	if err := repo.MarkExportError(ctx, "sub-1"); err != nil {
		t.Fatalf("MarkExportError: %v", err)
	}
	pending, err = repo.GetPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExports: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("errored subscription should not be retried blindly: %+v", pending)
	}
}

func TestUserPlanDefaultsToFree(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	plan, err := repo.GetUserPlan(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUserPlan: %v", err)
	}
	if plan != "free" {
		t.Fatalf("plan: got %q, want free", plan)
	}

	if err := repo.SetUserPlan(ctx, "user-1", "premium"); err != nil {
		t.Fatalf("SetUserPlan: %v", err)
	}
	plan, err = repo.GetUserPlan(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUserPlan: %v", err)
	}
	if plan != "premium" {
		t.Fatalf("plan: got %q, want premium", plan)
	}
}

func TestCategoryLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, name := range []string{"Entertainment", "Software"} {
		if err := repo.CreateCategory(ctx, "user-1", name); err != nil {
			t.Fatalf("CreateCategory %s: %v", name, err)
		}
	}
	// Creating twice is a no-op
	if err := repo.CreateCategory(ctx, "user-1", "Software"); err != nil {
		t.Fatalf("duplicate CreateCategory: %v", err)
	}

	names, err := repo.ListCategories(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(names) != 2 || names[0] != "Entertainment" || names[1] != "Software" {
		t.Fatalf("categories: got %v", names)
	}

	if err := repo.DeleteCategory(ctx, "user-1", "Software"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if err := repo.DeleteCategory(ctx, "user-1", "Software"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing category, got %v", err)
	}
}

func TestDeleteCategoryInUse(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateCategory(ctx, "user-1", "Entertainment"); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if _, err := repo.CreateSubscription(ctx, "user-1", testSub("sub-1", "Netflix")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	if err := repo.DeleteCategory(ctx, "user-1", "Entertainment"); !errors.Is(err, ErrCategoryInUse) {
		t.Fatalf("expected ErrCategoryInUse, got %v", err)
	}

	// Soft-deleting the subscription frees the category.
	if err := repo.DeleteSubscription(ctx, "user-1", "sub-1"); err != nil {
		t.Fatalf("DeleteSubscription: %v", err)
	}
	if err := repo.DeleteCategory(ctx, "user-1", "Entertainment"); err != nil {
		t.Fatalf("DeleteCategory after freeing: %v", err)
	}
}
