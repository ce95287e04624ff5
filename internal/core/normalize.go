package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidBillingCycle is returned when a billing cycle is outside the
// known set. The charting frontend this API predates treated unknown cycles
// as a silent zero contribution; that masked data errors, so unknown cycles
// are now an explicit failure.
var ErrInvalidBillingCycle = errors.New("invalid billing cycle")

// weeksPerMonth is the average-weeks-per-month constant the frontend charts
// were built against. It is deliberately 4.33, not 52/12.
var weeksPerMonth = decimal.NewFromInt(433).Shift(-2)

var (
	three  = decimal.NewFromInt(3)
	twelve = decimal.NewFromInt(12)
	thirty = decimal.NewFromInt(30)
)

// MonthlyAmount normalizes a periodic amount to its monthly equivalent:
// the figure a subscription contributes to an average month. One-off charges
// have no recurring contribution and normalize to zero.
func MonthlyAmount(amount Money, cycle BillingCycle) (decimal.Decimal, error) {
	d := amount.Decimal()
	switch cycle {
	case Monthly:
		return d, nil
	case Yearly:
		return d.Div(twelve), nil
	case Weekly:
		return d.Mul(weeksPerMonth), nil
	case Quarterly:
		return d.Div(three), nil
	case OneOff:
		return decimal.Zero, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidBillingCycle, cycle)
	}
}

// PeriodAmount scales a monthly-equivalent figure to one bucket of the
// requested granularity.
func PeriodAmount(monthly decimal.Decimal, granularity PeriodGranularity) decimal.Decimal {
	switch granularity {
	case GranularityDaily:
		return monthly.Div(thirty)
	case GranularityQuarterly:
		return monthly.Mul(three)
	case GranularityYearly:
		return monthly.Mul(twelve)
	default:
		return monthly
	}
}

// roundCents rounds to 2 decimal places, half away from zero, and returns
// the float64 the JSON layer serializes.
func roundCents(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
