package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"subtracker/internal/amqp"
	"subtracker/internal/services"
	"subtracker/internal/sheets"
	"subtracker/internal/storage"
)

// ExportWorker mirrors premium subscriptions from SQLite into a sheet.
type ExportWorker struct {
	storage   *storage.SQLiteRepository
	sheets    sheets.SubscriptionWriter
	batchSize int
}

func NewExportWorker(storage *storage.SQLiteRepository, sheets sheets.SubscriptionWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		sheets:    sheets,
		batchSize: batchSize,
	}
}

// HandleExportMessage processes a single subscription export message from AMQP.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.SubscriptionExportMessage) error {
	slog.InfoContext(ctx, "Processing export message",
		"id", msg.ID,
		"version", msg.Version)

	if err := w.exportSubscription(ctx, msg.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted before the message was consumed. Ack and move on,
			// the sheet keeps its last exported row.
			slog.InfoContext(ctx, "Subscription gone, skipping export", "id", msg.ID)
			return nil
		}
		return err
	}
	return nil
}

// ProcessPendingExports sweeps rows that never made it to the sheet.
// This is a backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPendingExports(ctx context.Context) error {
	pending, err := w.storage.GetPendingExports(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending exports: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for _, p := range pending {
		if err := w.exportSubscription(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export subscription", "id", p.ID, "error", err)
		}
	}

	return nil
}

// StartupExportCheck drains pending exports accumulated while the worker was
// down, using a larger batch than the periodic sweep.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingExports(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending exports for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, p := range pending {
		if err := w.exportSubscription(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export subscription during startup",
				"id", p.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export check completed",
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)

	return nil
}

func (w *ExportWorker) exportSubscription(ctx context.Context, id string) error {
	sub, userID, err := w.storage.GetSubscriptionForExport(ctx, id)
	if err != nil {
		return fmt.Errorf("get subscription from storage: %w", err)
	}

	plan, err := w.storage.GetUserPlan(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user plan: %w", err)
	}
	if plan != services.PlanPremium {
		// Export is a premium feature. Mark the row done so the sweep
		// does not pick it up again.
		if err := w.storage.MarkExported(ctx, id); err != nil {
			return fmt.Errorf("mark non-premium export done: %w", err)
		}
		slog.InfoContext(ctx, "Skipping export for non-premium user",
			"id", id, "plan", plan)
		return nil
	}

	ref, err := w.sheets.Upsert(ctx, userID, sub)
	if err != nil {
		if markErr := w.storage.MarkExportError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "id", id, "error", markErr)
		}
		return fmt.Errorf("upsert to sheets: %w", err)
	}

	if err := w.storage.MarkExported(ctx, id); err != nil {
		// The write itself succeeded, so don't bubble this up.
		slog.ErrorContext(ctx, "Failed to mark as exported", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully exported subscription",
		"id", id,
		"sheets_ref", ref,
		"name", sub.Name,
		"amount_cents", sub.Amount.Cents)

	return nil
}
