package services

import (
	"errors"
	"fmt"

	"subtracker/internal/core"
)

// Plan names as stored on the users table.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

var (
	ErrSubscriptionLimit = errors.New("active subscription limit reached for plan")
	ErrScaleNotAllowed   = errors.New("time scale not available on plan")
	ErrExportNotAllowed  = errors.New("sheet export not available on plan")
)

// Entitlements gates features by user plan.
type Entitlements struct {
	freeSubscriptionLimit int64
}

func NewEntitlements(freeSubscriptionLimit int) *Entitlements {
	return &Entitlements{freeSubscriptionLimit: int64(freeSubscriptionLimit)}
}

// CheckCanCreate reports whether a user on the given plan may add another
// active subscription.
func (e *Entitlements) CheckCanCreate(plan string, activeCount int64) error {
	if plan == PlanPremium {
		return nil
	}
	if activeCount >= e.freeSubscriptionLimit {
		return fmt.Errorf("%w: %d of %d used", ErrSubscriptionLimit, activeCount, e.freeSubscriptionLimit)
	}
	return nil
}

// freeScales are the analytics windows available without a premium plan.
var freeScales = map[core.TimeScale]bool{
	core.Scale3Months: true,
	core.Scale6Months: true,
	core.ScaleYTD:     true,
}

// CheckScale reports whether the plan may query the given analytics window.
func (e *Entitlements) CheckScale(plan string, scale core.TimeScale) error {
	if plan == PlanPremium {
		return nil
	}
	if !freeScales[scale] {
		return fmt.Errorf("%w: %s", ErrScaleNotAllowed, scale)
	}
	return nil
}

// CheckExport reports whether the plan includes Google Sheets export.
func (e *Entitlements) CheckExport(plan string) error {
	if plan != PlanPremium {
		return fmt.Errorf("%w: %s", ErrExportNotAllowed, plan)
	}
	return nil
}
