// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for advancing subscription
// renewals. Each billing cycle has its own scheduler that encapsulates how
// the next payment date moves when a renewal comes due.

package services

import (
	"fmt"
	"time"

	"subtracker/internal/core"
)

// RenewalScheduler is the strategy interface for advancing a due renewal.
// Next returns the date the following payment lands on and the status the
// subscription should carry afterwards.
type RenewalScheduler interface {
	Next(current time.Time) (time.Time, core.Status)
}

// WeeklyScheduler advances weekly subscriptions by seven days.
type WeeklyScheduler struct{}

func (WeeklyScheduler) Next(current time.Time) (time.Time, core.Status) {
	return current.AddDate(0, 0, 7), core.StatusActive
}

// MonthlyScheduler advances monthly subscriptions by one calendar month.
type MonthlyScheduler struct{}

func (MonthlyScheduler) Next(current time.Time) (time.Time, core.Status) {
	return current.AddDate(0, 1, 0), core.StatusActive
}

// QuarterlyScheduler advances quarterly subscriptions by three months.
type QuarterlyScheduler struct{}

func (QuarterlyScheduler) Next(current time.Time) (time.Time, core.Status) {
	return current.AddDate(0, 3, 0), core.StatusActive
}

// YearlyScheduler advances yearly subscriptions by one year.
type YearlyScheduler struct{}

func (YearlyScheduler) Next(current time.Time) (time.Time, core.Status) {
	return current.AddDate(1, 0, 0), core.StatusActive
}

// OneOffScheduler retires one-off charges once they come due. The returned
// zero time clears the payment date.
type OneOffScheduler struct{}

func (OneOffScheduler) Next(current time.Time) (time.Time, core.Status) {
	return time.Time{}, core.StatusExpired
}

// renewalStrategies maps billing cycles to their corresponding schedulers.
// This registry enables O(1) lookup and easy extension for new cycles.
var renewalStrategies = map[core.BillingCycle]RenewalScheduler{
	core.Weekly:    WeeklyScheduler{},
	core.Monthly:   MonthlyScheduler{},
	core.Quarterly: QuarterlyScheduler{},
	core.Yearly:    YearlyScheduler{},
	core.OneOff:    OneOffScheduler{},
}

// GetRenewalScheduler returns the appropriate scheduler for a billing cycle.
// Returns an error if the cycle is not supported.
func GetRenewalScheduler(cycle core.BillingCycle) (RenewalScheduler, error) {
	scheduler, ok := renewalStrategies[cycle]
	if !ok {
		return nil, fmt.Errorf("unknown billing cycle: %s", cycle)
	}
	return scheduler, nil
}

// RegisterRenewalScheduler allows registering custom schedulers for new
// billing cycles without touching the registry.
func RegisterRenewalScheduler(cycle core.BillingCycle, scheduler RenewalScheduler) {
	renewalStrategies[cycle] = scheduler
}
