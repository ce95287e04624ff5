package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"subtracker/internal/core"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrCategoryInUse = errors.New("category has subscriptions attached")
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func toCore(s Subscription) core.Subscription {
	sub := core.Subscription{
		ID:       s.ID,
		Name:     s.Name,
		Amount:   core.Money{Cents: s.AmountCents},
		Cycle:    core.BillingCycle(s.BillingCycle),
		Category: s.Category,
		Status:   core.Status(s.Status),
		IsTrial:  s.IsTrial,
	}
	if s.NextPaymentDate.Valid {
		sub.NextPaymentDate = s.NextPaymentDate.Time
	}
	return sub
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// CreateSubscription stores a new subscription for the given user. The
// subscription's ID must already be set.
func (r *SQLiteRepository) CreateSubscription(ctx context.Context, userID string, sub core.Subscription) (core.Subscription, error) {
	if err := r.queries.EnsureUser(ctx, userID); err != nil {
		return core.Subscription{}, fmt.Errorf("ensure user: %w", err)
	}

	row, err := r.queries.CreateSubscription(ctx, CreateSubscriptionParams{
		ID:              sub.ID,
		UserID:          userID,
		Name:            sub.Name,
		AmountCents:     sub.Amount.Cents,
		BillingCycle:    string(sub.Cycle),
		Category:        sub.Category,
		Status:          string(sub.Status),
		NextPaymentDate: nullTime(sub.NextPaymentDate),
		IsTrial:         sub.IsTrial,
	})
	if err != nil {
		return core.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}

	slog.InfoContext(ctx, "Subscription saved",
		"id", row.ID,
		"user_id", userID,
		"name", row.Name,
		"amount_cents", row.AmountCents,
		"billing_cycle", row.BillingCycle)

	return toCore(row), nil
}

func (r *SQLiteRepository) GetSubscription(ctx context.Context, userID, id string) (core.Subscription, error) {
	row, err := r.queries.GetSubscription(ctx, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, ErrNotFound
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return toCore(row), nil
}

func (r *SQLiteRepository) ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	rows, err := r.queries.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	subs := make([]core.Subscription, len(rows))
	for i, row := range rows {
		subs[i] = toCore(row)
	}
	return subs, nil
}

// UpdateSubscription overwrites the stored subscription and returns the new
// version number.
func (r *SQLiteRepository) UpdateSubscription(ctx context.Context, userID string, sub core.Subscription) (int64, error) {
	version, err := r.queries.UpdateSubscription(ctx, UpdateSubscriptionParams{
		ID:              sub.ID,
		UserID:          userID,
		Name:            sub.Name,
		AmountCents:     sub.Amount.Cents,
		BillingCycle:    string(sub.Cycle),
		Category:        sub.Category,
		Status:          string(sub.Status),
		NextPaymentDate: nullTime(sub.NextPaymentDate),
		IsTrial:         sub.IsTrial,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("update subscription: %w", err)
	}
	return version, nil
}

func (r *SQLiteRepository) DeleteSubscription(ctx context.Context, userID, id string) error {
	affected, err := r.queries.SoftDeleteSubscription(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Subscription deleted", "id", id, "user_id", userID)
	return nil
}

func (r *SQLiteRepository) CountActiveSubscriptions(ctx context.Context, userID string) (int64, error) {
	n, err := r.queries.CountActiveSubscriptions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count active subscriptions: %w", err)
	}
	return n, nil
}

// DueSubscription carries what the renewal processor needs for one row.
type DueSubscription struct {
	ID              string
	UserID          string
	Name            string
	Cycle           core.BillingCycle
	NextPaymentDate time.Time
}

func (r *SQLiteRepository) ListDueSubscriptions(ctx context.Context, dueBy time.Time, limit int) ([]DueSubscription, error) {
	rows, err := r.queries.ListDueSubscriptions(ctx, dueBy, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}

	due := make([]DueSubscription, len(rows))
	for i, row := range rows {
		due[i] = DueSubscription{
			ID:              row.ID,
			UserID:          row.UserID,
			Name:            row.Name,
			Cycle:           core.BillingCycle(row.BillingCycle),
			NextPaymentDate: row.NextPaymentDate.Time,
		}
	}
	return due, nil
}

func (r *SQLiteRepository) ListUpcomingRenewals(ctx context.Context, from, to time.Time) ([]DueSubscription, error) {
	rows, err := r.queries.ListUpcomingRenewals(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list upcoming renewals: %w", err)
	}

	upcoming := make([]DueSubscription, len(rows))
	for i, row := range rows {
		upcoming[i] = DueSubscription{
			ID:              row.ID,
			UserID:          row.UserID,
			Name:            row.Name,
			Cycle:           core.BillingCycle(row.BillingCycle),
			NextPaymentDate: row.NextPaymentDate.Time,
		}
	}
	return upcoming, nil
}

// AdvanceRenewal moves a subscription to its next renewal date. A zero next
// clears the date, which is how one-off charges retire.
func (r *SQLiteRepository) AdvanceRenewal(ctx context.Context, id string, status core.Status, next time.Time) error {
	err := r.queries.AdvanceRenewal(ctx, AdvanceRenewalParams{
		ID:              id,
		Status:          string(status),
		NextPaymentDate: nullTime(next),
	})
	if err != nil {
		return fmt.Errorf("advance renewal: %w", err)
	}
	return nil
}

// PendingExport represents minimal data needed for export queue messages.
type PendingExport struct {
	ID      string
	UserID  string
	Version int64
}

func (r *SQLiteRepository) GetPendingExports(ctx context.Context, limit int) ([]PendingExport, error) {
	rows, err := r.queries.GetPendingExportSubscriptions(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending exports: %w", err)
	}

	pending := make([]PendingExport, len(rows))
	for i, row := range rows {
		pending[i] = PendingExport{
			ID:      row.ID,
			UserID:  row.UserID,
			Version: row.Version,
		}
	}
	return pending, nil
}

// GetSubscriptionForExport looks a subscription up without user scoping, for
// the export worker which only has the queued ID.
func (r *SQLiteRepository) GetSubscriptionForExport(ctx context.Context, id string) (core.Subscription, string, error) {
	row, err := r.queries.GetSubscriptionByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, "", ErrNotFound
	}
	if err != nil {
		return core.Subscription{}, "", fmt.Errorf("get subscription for export: %w", err)
	}
	return toCore(row), row.UserID, nil
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id string) error {
	if err := r.queries.MarkSubscriptionExported(ctx, id); err != nil {
		return fmt.Errorf("mark subscription exported: %w", err)
	}
	slog.InfoContext(ctx, "Subscription marked as exported", "id", id)
	return nil
}

func (r *SQLiteRepository) MarkExportError(ctx context.Context, id string) error {
	if err := r.queries.MarkSubscriptionExportError(ctx, id); err != nil {
		return fmt.Errorf("mark subscription export error: %w", err)
	}
	slog.WarnContext(ctx, "Subscription marked with export error", "id", id)
	return nil
}

func (r *SQLiteRepository) EnsureUser(ctx context.Context, userID string) error {
	if err := r.queries.EnsureUser(ctx, userID); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// GetUserPlan returns the user's plan, creating the user on the free plan if
// they don't exist yet.
func (r *SQLiteRepository) GetUserPlan(ctx context.Context, userID string) (string, error) {
	plan, err := r.queries.GetUserPlan(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		if err := r.queries.EnsureUser(ctx, userID); err != nil {
			return "", fmt.Errorf("ensure user: %w", err)
		}
		return "free", nil
	}
	if err != nil {
		return "", fmt.Errorf("get user plan: %w", err)
	}
	return plan, nil
}

func (r *SQLiteRepository) SetUserPlan(ctx context.Context, userID, plan string) error {
	if err := r.queries.EnsureUser(ctx, userID); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	if err := r.queries.SetUserPlan(ctx, userID, plan); err != nil {
		return fmt.Errorf("set user plan: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]string, error) {
	names, err := r.queries.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return names, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, userID, name string) error {
	if err := r.queries.EnsureUser(ctx, userID); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	if err := r.queries.CreateCategory(ctx, userID, name); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// DeleteCategory removes a category. It refuses when live subscriptions still
// reference it.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, name string) error {
	inUse, err := r.queries.CountSubscriptionsInCategory(ctx, userID, name)
	if err != nil {
		return fmt.Errorf("count subscriptions in category: %w", err)
	}
	if inUse > 0 {
		return ErrCategoryInUse
	}

	affected, err := r.queries.DeleteCategory(ctx, userID, name)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
