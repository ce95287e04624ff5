package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"subtracker/internal/amqp"
	"subtracker/internal/core"
	"subtracker/internal/storage"
)

// batchSize bounds how many due rows one processing pass picks up.
const renewalBatchSize = 500

// RenewalProcessor advances past-due subscription renewals and publishes
// reminders for the ones coming up.
type RenewalProcessor struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

// NewRenewalProcessor creates a new renewal processor
func NewRenewalProcessor(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *RenewalProcessor {
	return &RenewalProcessor{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// ProcessDueRenewals advances every active subscription whose payment date has
// passed to its next cycle. One-off charges expire instead of advancing.
func (p *RenewalProcessor) ProcessDueRenewals(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	due, err := p.storage.ListDueSubscriptions(ctx, now, renewalBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get due subscriptions: %w", err)
	}

	slog.InfoContext(ctx, "Processing due renewals",
		"total_due", len(due),
		"processing_date", now.Format("2006-01-02"))

	processedCount := 0

	for _, sub := range due {
		scheduler, err := GetRenewalScheduler(sub.Cycle)
		if err != nil {
			slog.ErrorContext(ctx, "No scheduler for billing cycle",
				"id", sub.ID,
				"billing_cycle", sub.Cycle,
				"error", err)
			continue
		}

		// Advance repeatedly in case the worker was down for several cycles
		next := sub.NextPaymentDate
		var status core.Status
		for {
			next, status = scheduler.Next(next)
			if next.IsZero() || next.After(now) {
				break
			}
		}

		if err := p.storage.AdvanceRenewal(ctx, sub.ID, status, next); err != nil {
			slog.ErrorContext(ctx, "Failed to advance renewal",
				"id", sub.ID,
				"error", err)
			continue
		}

		processedCount++
		slog.InfoContext(ctx, "Renewal advanced",
			"id", sub.ID,
			"name", sub.Name,
			"billing_cycle", sub.Cycle,
			"next_payment_date", next,
			"status", status)
	}

	slog.InfoContext(ctx, "Renewal processing complete",
		"processed", processedCount,
		"total_checked", len(due))

	return processedCount, nil
}

// PublishUpcomingReminders emits a reminder message for every active
// subscription renewing strictly inside (now, now+window).
func (p *RenewalProcessor) PublishUpcomingReminders(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	if p.storage == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	if p.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping reminders")
		return 0, nil
	}

	upcoming, err := p.storage.ListUpcomingRenewals(ctx, now, now.Add(window))
	if err != nil {
		return 0, fmt.Errorf("failed to get upcoming renewals: %w", err)
	}

	published := 0
	for _, sub := range upcoming {
		err := p.amqpClient.PublishRenewalReminder(ctx, sub.ID, sub.UserID, sub.Name, sub.NextPaymentDate)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to publish renewal reminder",
				"id", sub.ID,
				"error", err)
			continue
		}
		published++
	}

	slog.InfoContext(ctx, "Renewal reminders published",
		"published", published,
		"upcoming", len(upcoming))

	return published, nil
}
