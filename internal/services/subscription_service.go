package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"subtracker/internal/amqp"
	"subtracker/internal/core"
	"subtracker/internal/storage"
)

// SubscriptionService orchestrates subscription operations across SQLite and AMQP
type SubscriptionService struct {
	storage      *storage.SQLiteRepository
	amqpClient   *amqp.Client
	entitlements *Entitlements
}

func NewSubscriptionService(storage *storage.SQLiteRepository, amqpClient *amqp.Client, entitlements *Entitlements) *SubscriptionService {
	return &SubscriptionService{
		storage:      storage,
		amqpClient:   amqpClient,
		entitlements: entitlements,
	}
}

// Create validates and saves a new subscription, then publishes an export
// message for premium users.
func (s *SubscriptionService) Create(ctx context.Context, userID string, sub core.Subscription) (core.Subscription, error) {
	if sub.Status == "" {
		sub.Status = core.StatusActive
	}
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}

	plan, err := s.storage.GetUserPlan(ctx, userID)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get user plan: %w", err)
	}

	if sub.Status == core.StatusActive {
		count, err := s.storage.CountActiveSubscriptions(ctx, userID)
		if err != nil {
			return core.Subscription{}, fmt.Errorf("count active subscriptions: %w", err)
		}
		if err := s.entitlements.CheckCanCreate(plan, count); err != nil {
			return core.Subscription{}, err
		}
	}

	sub.ID = uuid.NewString()

	// Make sure the category exists so it shows up in the category list
	if err := s.storage.CreateCategory(ctx, userID, sub.Category); err != nil {
		return core.Subscription{}, fmt.Errorf("ensure category: %w", err)
	}

	created, err := s.storage.CreateSubscription(ctx, userID, sub)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("save subscription: %w", err)
	}

	// Publish async export message (non-blocking, version 1 for new rows)
	if s.entitlements.CheckExport(plan) == nil {
		if err := s.publishExportMessage(ctx, created.ID, 1); err != nil {
			slog.ErrorContext(ctx, "Failed to publish export message",
				"id", created.ID, "error", err)
			// Don't fail the request - the subscription is saved locally
		}
	}

	return created, nil
}

// Update overwrites a subscription's fields and re-queues it for export.
func (s *SubscriptionService) Update(ctx context.Context, userID string, sub core.Subscription) (core.Subscription, error) {
	if sub.Status == "" {
		sub.Status = core.StatusActive
	}
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}

	if err := s.storage.CreateCategory(ctx, userID, sub.Category); err != nil {
		return core.Subscription{}, fmt.Errorf("ensure category: %w", err)
	}

	version, err := s.storage.UpdateSubscription(ctx, userID, sub)
	if err != nil {
		return core.Subscription{}, err
	}

	plan, err := s.storage.GetUserPlan(ctx, userID)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get user plan: %w", err)
	}
	if s.entitlements.CheckExport(plan) == nil {
		if err := s.publishExportMessage(ctx, sub.ID, version); err != nil {
			slog.ErrorContext(ctx, "Failed to publish export message",
				"id", sub.ID, "version", version, "error", err)
		}
	}

	return s.storage.GetSubscription(ctx, userID, sub.ID)
}

// Delete soft deletes a subscription. The sheet keeps its last exported row.
func (s *SubscriptionService) Delete(ctx context.Context, userID, id string) error {
	return s.storage.DeleteSubscription(ctx, userID, id)
}

func (s *SubscriptionService) Get(ctx context.Context, userID, id string) (core.Subscription, error) {
	return s.storage.GetSubscription(ctx, userID, id)
}

func (s *SubscriptionService) List(ctx context.Context, userID string) ([]core.Subscription, error) {
	return s.storage.ListSubscriptions(ctx, userID)
}

// Analytics aggregates the user's subscriptions into a time series, after
// checking the requested window against the user's plan.
func (s *SubscriptionService) Analytics(ctx context.Context, userID string, req core.AggregationRequest, now time.Time) (core.AggregationResult, error) {
	if err := req.Granularity.Validate(); err != nil {
		return core.AggregationResult{}, err
	}
	if err := req.Scale.Validate(); err != nil {
		return core.AggregationResult{}, err
	}

	plan, err := s.storage.GetUserPlan(ctx, userID)
	if err != nil {
		return core.AggregationResult{}, fmt.Errorf("get user plan: %w", err)
	}
	if err := s.entitlements.CheckScale(plan, req.Scale); err != nil {
		return core.AggregationResult{}, err
	}

	subs, err := s.storage.ListSubscriptions(ctx, userID)
	if err != nil {
		return core.AggregationResult{}, err
	}

	return core.Aggregate(subs, req, now)
}

// Stats computes the dashboard stats over the user's subscriptions.
func (s *SubscriptionService) Stats(ctx context.Context, userID string, now time.Time) (core.StatsResult, error) {
	subs, err := s.storage.ListSubscriptions(ctx, userID)
	if err != nil {
		return core.StatsResult{}, err
	}
	return core.Stats(subs, now)
}

func (s *SubscriptionService) Categories(ctx context.Context, userID string) ([]string, error) {
	return s.storage.ListCategories(ctx, userID)
}

func (s *SubscriptionService) CreateCategory(ctx context.Context, userID, name string) error {
	if name == "" {
		return core.ErrEmptyCategory
	}
	return s.storage.CreateCategory(ctx, userID, name)
}

func (s *SubscriptionService) DeleteCategory(ctx context.Context, userID, name string) error {
	return s.storage.DeleteCategory(ctx, userID, name)
}

func (s *SubscriptionService) publishExportMessage(ctx context.Context, id string, version int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping export message")
		return nil
	}

	return s.amqpClient.PublishSubscriptionExport(ctx, id, version)
}

// Close closes both storage and AMQP connections
func (s *SubscriptionService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close subscription service: %v", errs)
	}

	return nil
}
