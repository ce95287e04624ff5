package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// UpcomingRenewalWindow is how far ahead the stats view looks for renewals.
const UpcomingRenewalWindow = 30 * 24 * time.Hour

// StatsResult is the payload of the stats endpoint. The first five fields
// are the contract the existing frontend reads; the per-cycle counts are
// additive.
type StatsResult struct {
	MonthlyTotal       float64 `json:"monthlyTotal"`
	YearlyTotal        float64 `json:"yearlyTotal"`
	UpcomingRenewals   int     `json:"upcomingRenewals"`
	ActiveTrials       int     `json:"activeTrials"`
	TotalSubscriptions int     `json:"totalSubscriptions"`

	MonthlyCount   int `json:"monthlyCount"`
	YearlyCount    int `json:"yearlyCount"`
	WeeklyCount    int `json:"weeklyCount"`
	QuarterlyCount int `json:"quarterlyCount"`
}

// Stats computes summary figures over the active subscription set: monthly
// and yearly totals, counts per billing cycle, active trials, and renewals
// falling strictly between now and now plus the renewal window.
func Stats(subs []Subscription, now time.Time) (StatsResult, error) {
	var res StatsResult
	total := decimal.Zero
	horizon := now.Add(UpcomingRenewalWindow)

	for _, s := range subs {
		if s.Status != StatusActive {
			continue
		}
		monthly, err := MonthlyAmount(s.Amount, s.Cycle)
		if err != nil {
			return StatsResult{}, fmt.Errorf("subscription %s: %w", s.ID, err)
		}
		total = total.Add(monthly)
		res.TotalSubscriptions++

		switch s.Cycle {
		case Monthly:
			res.MonthlyCount++
		case Yearly:
			res.YearlyCount++
		case Weekly:
			res.WeeklyCount++
		case Quarterly:
			res.QuarterlyCount++
		}
		if s.IsTrial {
			res.ActiveTrials++
		}
		if s.NextPaymentDate.After(now) && s.NextPaymentDate.Before(horizon) {
			res.UpcomingRenewals++
		}
	}

	res.MonthlyTotal = roundCents(total)
	res.YearlyTotal = roundCents(total.Mul(twelve))
	return res, nil
}
