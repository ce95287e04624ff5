package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"subtracker/internal/amqp"
	"subtracker/internal/core"
	"subtracker/internal/services"
	"subtracker/internal/sheets/memory"
	"subtracker/internal/storage"
)

func newWorkerFixture(t *testing.T) (*ExportWorker, *storage.SQLiteRepository, *memory.Store) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	store := memory.New()
	return NewExportWorker(repo, store, 10), repo, store
}

func exportSub(id string) core.Subscription {
	return core.Subscription{
		ID:              id,
		Name:            "sub " + id,
		Amount:          core.Money{Cents: 1599},
		Cycle:           core.Monthly,
		Category:        "Entertainment",
		Status:          core.StatusActive,
		NextPaymentDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestHandleExportMessagePremium(t *testing.T) {
	w, repo, store := newWorkerFixture(t)
	ctx := context.Background()

	if _, err := repo.CreateSubscription(ctx, "user-1", exportSub("sub-1")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if err := repo.SetUserPlan(ctx, "user-1", services.PlanPremium); err != nil {
		t.Fatalf("SetUserPlan: %v", err)
	}

	msg := amqp.NewSubscriptionExportMessage("sub-1", 1)
	if err := w.HandleExportMessage(ctx, msg); err != nil {
		t.Fatalf("HandleExportMessage: %v", err)
	}

	got, userID, ok := store.Get("sub-1")
	if !ok || userID != "user-1" || got.Name != "sub sub-1" {
		t.Fatalf("sheet row: got %+v user=%q ok=%v", got, userID, ok)
	}

	// Exported rows drop out of the pending sweep
	pending, err := repo.GetPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExports: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after export: got %d, want 0", len(pending))
	}
}

func TestHandleExportMessageFreePlanIsNoOp(t *testing.T) {
	w, repo, store := newWorkerFixture(t)
	ctx := context.Background()

	if _, err := repo.CreateSubscription(ctx, "user-1", exportSub("sub-1")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	if err := w.HandleExportMessage(ctx, amqp.NewSubscriptionExportMessage("sub-1", 1)); err != nil {
		t.Fatalf("HandleExportMessage: %v", err)
	}

	if store.Len() != 0 {
		t.Fatalf("sheet rows: got %d, want 0", store.Len())
	}
	pending, err := repo.GetPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExports: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after no-op: got %d, want 0", len(pending))
	}
}

func TestHandleExportMessageMissingSubscriptionAcks(t *testing.T) {
	w, _, _ := newWorkerFixture(t)

	// The row was deleted before the message arrived. Returning nil acks it.
	if err := w.HandleExportMessage(context.Background(), amqp.NewSubscriptionExportMessage("missing", 1)); err != nil {
		t.Fatalf("HandleExportMessage: %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Upsert(context.Context, string, core.Subscription) (string, error) {
	return "", errors.New("sheet unavailable")
}

func TestExportFailureMarksErrorAndLeavesSweep(t *testing.T) {
	_, repo, _ := newWorkerFixture(t)
	w := NewExportWorker(repo, failingWriter{}, 10)
	ctx := context.Background()

	if _, err := repo.CreateSubscription(ctx, "user-1", exportSub("sub-1")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if err := repo.SetUserPlan(ctx, "user-1", services.PlanPremium); err != nil {
		t.Fatalf("SetUserPlan: %v", err)
	}

	if err := w.HandleExportMessage(ctx, amqp.NewSubscriptionExportMessage("sub-1", 1)); err == nil {
		t.Fatal("expected upsert error")
	}

	// Errored rows are excluded from the sweep until the next update
	pending, err := repo.GetPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExports: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after error: got %d, want 0", len(pending))
	}
}

func TestProcessPendingExportsSweep(t *testing.T) {
	w, repo, store := newWorkerFixture(t)
	ctx := context.Background()

	for _, id := range []string{"sub-1", "sub-2"} {
		if _, err := repo.CreateSubscription(ctx, "user-1", exportSub(id)); err != nil {
			t.Fatalf("CreateSubscription: %v", err)
		}
	}
	if err := repo.SetUserPlan(ctx, "user-1", services.PlanPremium); err != nil {
		t.Fatalf("SetUserPlan: %v", err)
	}

	if err := w.ProcessPendingExports(ctx); err != nil {
		t.Fatalf("ProcessPendingExports: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("sheet rows: got %d, want 2", store.Len())
	}
}

func TestStartupExportCheck(t *testing.T) {
	w, repo, store := newWorkerFixture(t)
	ctx := context.Background()

	if _, err := repo.CreateSubscription(ctx, "user-1", exportSub("sub-1")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if err := repo.SetUserPlan(ctx, "user-1", services.PlanPremium); err != nil {
		t.Fatalf("SetUserPlan: %v", err)
	}

	if err := w.StartupExportCheck(ctx); err != nil {
		t.Fatalf("StartupExportCheck: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("sheet rows: got %d, want 1", store.Len())
	}
}
