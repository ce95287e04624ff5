package sheets

import (
	"context"

	"subtracker/internal/core"
)

// Ports for outbound adapters.
type (
	// SubscriptionWriter mirrors a subscription into an external sheet. Upsert
	// updates the row holding the same subscription ID, or appends a new one.
	SubscriptionWriter interface {
		Upsert(ctx context.Context, userID string, sub core.Subscription) (rowRef string, err error)
	}
)
