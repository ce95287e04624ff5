package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"subtracker/internal/core"
	"subtracker/internal/storage"
)

func newTestService(t *testing.T, freeLimit int) (*SubscriptionService, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewSubscriptionService(repo, nil, NewEntitlements(freeLimit)), repo
}

func serviceSub(name string, cycle core.BillingCycle) core.Subscription {
	return core.Subscription{
		Name:            name,
		Amount:          core.Money{Cents: 1599},
		Cycle:           cycle,
		Category:        "Entertainment",
		Status:          core.StatusActive,
		NextPaymentDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestServiceCreateAssignsID(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()

	created, err := svc.Create(ctx, "user-1", serviceSub("Netflix", core.Monthly))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create should assign an ID")
	}

	got, err := svc.Get(ctx, "user-1", created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Netflix" {
		t.Fatalf("round trip: %+v", got)
	}
}

func TestServiceCreateDefaultsToActive(t *testing.T) {
	svc, _ := newTestService(t, 10)

	sub := serviceSub("Netflix", core.Monthly)
	sub.Status = ""
	created, err := svc.Create(context.Background(), "user-1", sub)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != core.StatusActive {
		t.Fatalf("status: got %s, want active", created.Status)
	}
}

func TestServiceCreateValidates(t *testing.T) {
	svc, _ := newTestService(t, 10)

	bad := serviceSub("", core.Monthly)
	if _, err := svc.Create(context.Background(), "user-1", bad); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}

	badCycle := serviceSub("Netflix", core.BillingCycle("lunar"))
	if _, err := svc.Create(context.Background(), "user-1", badCycle); !errors.Is(err, core.ErrInvalidBillingCycle) {
		t.Fatalf("expected ErrInvalidBillingCycle, got %v", err)
	}
}

func TestServiceCreateEnforcesFreeLimit(t *testing.T) {
	svc, _ := newTestService(t, 2)
	ctx := context.Background()

	for i, name := range []string{"Netflix", "Spotify"} {
		if _, err := svc.Create(ctx, "user-1", serviceSub(name, core.Monthly)); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	_, err := svc.Create(ctx, "user-1", serviceSub("Hulu", core.Monthly))
	if !errors.Is(err, ErrSubscriptionLimit) {
		t.Fatalf("expected ErrSubscriptionLimit, got %v", err)
	}

	// Paused subscriptions don't count against the limit
	paused := serviceSub("Disney", core.Monthly)
	paused.Status = core.StatusPaused
	if _, err := svc.Create(ctx, "user-1", paused); err != nil {
		t.Fatalf("paused create should pass: %v", err)
	}
}

func TestServicePremiumBypassesLimit(t *testing.T) {
	svc, repo := newTestService(t, 1)
	ctx := context.Background()

	if err := repo.SetUserPlan(ctx, "user-1", PlanPremium); err != nil {
		t.Fatalf("SetUserPlan: %v", err)
	}

	for i, name := range []string{"Netflix", "Spotify", "Hulu"} {
		if _, err := svc.Create(ctx, "user-1", serviceSub(name, core.Monthly)); err != nil {
			t.Fatalf("premium create %d: %v", i, err)
		}
	}
}

func TestServiceCreateRegistersCategory(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "user-1", serviceSub("Netflix", core.Monthly)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	cats, err := svc.Categories(ctx, "user-1")
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 1 || cats[0] != "Entertainment" {
		t.Fatalf("categories: got %v", cats)
	}
}

func TestServiceUpdate(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()

	created, err := svc.Create(ctx, "user-1", serviceSub("Netflix", core.Monthly))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	created.Name = "Netflix Premium"
	created.Amount = core.Money{Cents: 2299}
	updated, err := svc.Update(ctx, "user-1", created)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Netflix Premium" || updated.Amount.Cents != 2299 {
		t.Fatalf("update not applied: %+v", updated)
	}

	missing := serviceSub("Ghost", core.Monthly)
	missing.ID = "does-not-exist"
	if _, err := svc.Update(ctx, "user-1", missing); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceUpdateDefaultsEmptyStatus(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()

	created, err := svc.Create(ctx, "user-1", serviceSub("Netflix", core.Monthly))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Clients that omit status on update get the same default as on create
	created.Status = ""
	updated, err := svc.Update(ctx, "user-1", created)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != core.StatusActive {
		t.Fatalf("status: got %q, want %q", updated.Status, core.StatusActive)
	}
}

func TestServiceDelete(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()

	created, err := svc.Create(ctx, "user-1", serviceSub("Netflix", core.Monthly))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, "user-1", created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, "user-1", created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestServiceAnalytics(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	if _, err := svc.Create(ctx, "user-1", serviceSub("Netflix", core.Monthly)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := svc.Analytics(ctx, "user-1", core.AggregationRequest{
		Granularity: core.GranularityMonthly,
		Scale:       core.Scale6Months,
	}, now)
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if len(res.TimeSeries) != 6 {
		t.Fatalf("series length: got %d, want 6", len(res.TimeSeries))
	}
	if res.Summary.TotalMonthly != 15.99 {
		t.Fatalf("totalMonthly: got %v, want 15.99", res.Summary.TotalMonthly)
	}
}

func TestServiceAnalyticsGatesScaleByPlan(t *testing.T) {
	svc, repo := newTestService(t, 10)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	req := core.AggregationRequest{
		Granularity: core.GranularityMonthly,
		Scale:       core.Scale5Years,
	}

	if _, err := svc.Analytics(ctx, "user-1", req, now); !errors.Is(err, ErrScaleNotAllowed) {
		t.Fatalf("expected ErrScaleNotAllowed, got %v", err)
	}

	if err := repo.SetUserPlan(ctx, "user-1", PlanPremium); err != nil {
		t.Fatalf("SetUserPlan: %v", err)
	}
	if _, err := svc.Analytics(ctx, "user-1", req, now); err != nil {
		t.Fatalf("premium 5years: %v", err)
	}
}

func TestServiceAnalyticsInvalidEnums(t *testing.T) {
	svc, _ := newTestService(t, 10)
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	_, err := svc.Analytics(context.Background(), "user-1", core.AggregationRequest{
		Granularity: core.PeriodGranularity("hourly"),
		Scale:       core.Scale6Months,
	}, now)
	if err == nil {
		t.Fatal("expected error for invalid granularity")
	}
}

func TestServiceStats(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	trial := serviceSub("Disney", core.Monthly)
	trial.IsTrial = true
	for _, sub := range []core.Subscription{serviceSub("Netflix", core.Monthly), trial} {
		if _, err := svc.Create(ctx, "user-1", sub); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	res, err := svc.Stats(ctx, "user-1", now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if res.TotalSubscriptions != 2 || res.ActiveTrials != 1 {
		t.Fatalf("stats: %+v", res)
	}
}

func TestServiceCategoryManagement(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()

	if err := svc.CreateCategory(ctx, "user-1", "Music"); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if err := svc.CreateCategory(ctx, "user-1", ""); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}

	if _, err := svc.Create(ctx, "user-1", serviceSub("Netflix", core.Monthly)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.DeleteCategory(ctx, "user-1", "Entertainment"); !errors.Is(err, storage.ErrCategoryInUse) {
		t.Fatalf("expected ErrCategoryInUse, got %v", err)
	}
	if err := svc.DeleteCategory(ctx, "user-1", "Music"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
}
