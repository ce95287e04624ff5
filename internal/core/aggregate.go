package core

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	GranularityDaily     PeriodGranularity = "daily"
	GranularityMonthly   PeriodGranularity = "monthly"
	GranularityQuarterly PeriodGranularity = "quarterly"
	GranularityYearly    PeriodGranularity = "yearly"
)

const (
	Scale3Months TimeScale = "3months"
	Scale6Months TimeScale = "6months"
	ScaleYTD     TimeScale = "ytd"
	Scale1Year   TimeScale = "1year"
	Scale5Years  TimeScale = "5years"
)

type (
	// PeriodGranularity is the width of one bucket in the time series.
	PeriodGranularity string

	// TimeScale is the total historical window an aggregation covers.
	// It drives the bucket count on its own; granularity only affects bucket
	// width and labels.
	TimeScale string

	// AggregationRequest describes one aggregation call. Categories, when
	// non-empty, restricts the time series and category breakdown (never the
	// summary) to exact-match category labels.
	AggregationRequest struct {
		Granularity PeriodGranularity
		Scale       TimeScale
		Categories  []string
	}

	TimePoint struct {
		Period string  `json:"period"`
		Amount float64 `json:"amount"`
	}

	CategoryTotal struct {
		Category string  `json:"category"`
		Amount   float64 `json:"amount"`
	}

	Summary struct {
		TotalMonthly        float64 `json:"totalMonthly"`
		TotalYearly         float64 `json:"totalYearly"`
		ActiveSubscriptions int     `json:"activeSubscriptions"`
	}

	// AggregationResult is the wire shape consumed by the charting frontend;
	// field names must not change.
	AggregationResult struct {
		TimeSeries []TimePoint     `json:"timeSeries"`
		Categories []CategoryTotal `json:"categories"`
		Summary    Summary         `json:"summary"`
	}
)

func (g PeriodGranularity) Validate() error {
	switch g {
	case GranularityDaily, GranularityMonthly, GranularityQuarterly, GranularityYearly:
		return nil
	default:
		return fmt.Errorf("invalid period granularity: %q", g)
	}
}

func (ts TimeScale) Validate() error {
	switch ts {
	case Scale3Months, Scale6Months, ScaleYTD, Scale1Year, Scale5Years:
		return nil
	default:
		return fmt.Errorf("invalid time scale: %q", ts)
	}
}

// BucketCount returns the number of buckets a time scale produces. For ytd
// that is the number of months elapsed in the current year, current month
// included; the other scales are fixed regardless of granularity.
func (ts TimeScale) BucketCount(now time.Time) int {
	switch ts {
	case Scale3Months:
		return 3
	case Scale6Months:
		return 6
	case Scale1Year:
		return 12
	case Scale5Years:
		return 60
	case ScaleYTD:
		return int(now.Month())
	default:
		return 0
	}
}

// Aggregate computes the spend time series, per-category monthly breakdown
// and summary totals for the given subscriptions.
//
// The time series is a present-state projection: the current active set is
// summed into every bucket. It does not reconstruct what was active at each
// historical bucket date.
//
// Aggregate is a pure function of its inputs; the subscription slice is
// never mutated.
func Aggregate(subs []Subscription, req AggregationRequest, now time.Time) (AggregationResult, error) {
	if err := req.Granularity.Validate(); err != nil {
		return AggregationResult{}, err
	}
	if err := req.Scale.Validate(); err != nil {
		return AggregationResult{}, err
	}

	var filter map[string]bool
	if len(req.Categories) > 0 {
		filter = make(map[string]bool, len(req.Categories))
		for _, c := range req.Categories {
			filter[c] = true
		}
	}

	var (
		periodTotal  = decimal.Zero // one bucket's worth, filtered set
		summaryTotal = decimal.Zero // monthly total, full active set
		activeCount  int
		catTotals    = make(map[string]decimal.Decimal)
		catOrder     []string
	)

	for _, s := range subs {
		if s.Status != StatusActive {
			continue
		}
		monthly, err := MonthlyAmount(s.Amount, s.Cycle)
		if err != nil {
			return AggregationResult{}, fmt.Errorf("subscription %s: %w", s.ID, err)
		}

		// The summary is always global: it ignores the category filter.
		activeCount++
		summaryTotal = summaryTotal.Add(monthly)

		if filter != nil && !filter[s.Category] {
			continue
		}
		periodTotal = periodTotal.Add(PeriodAmount(monthly, req.Granularity))
		if _, seen := catTotals[s.Category]; !seen {
			catOrder = append(catOrder, s.Category)
		}
		catTotals[s.Category] = catTotals[s.Category].Add(monthly)
	}

	count := req.Scale.BucketCount(now)
	series := make([]TimePoint, 0, count)
	bucketAmount := roundCents(periodTotal)
	for i := count - 1; i >= 0; i-- {
		series = append(series, TimePoint{
			Period: periodLabel(bucketDate(now, req.Granularity, i), req.Granularity),
			Amount: bucketAmount,
		})
	}

	categories := make([]CategoryTotal, 0, len(catOrder))
	for _, name := range catOrder {
		categories = append(categories, CategoryTotal{
			Category: name,
			Amount:   roundCents(catTotals[name]),
		})
	}
	// Descending by amount; ties keep input-encounter order.
	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].Amount > categories[j].Amount
	})

	return AggregationResult{
		TimeSeries: series,
		Categories: categories,
		Summary: Summary{
			TotalMonthly:        roundCents(summaryTotal),
			TotalYearly:         roundCents(summaryTotal.Mul(twelve)),
			ActiveSubscriptions: activeCount,
		},
	}, nil
}

// bucketDate is the anchor date of the bucket i granularity-units before now.
func bucketDate(now time.Time, g PeriodGranularity, i int) time.Time {
	switch g {
	case GranularityDaily:
		return now.AddDate(0, 0, -i)
	case GranularityQuarterly:
		return now.AddDate(0, -i*3, 0)
	case GranularityYearly:
		return now.AddDate(-i, 0, 0)
	default:
		return now.AddDate(0, -i, 0)
	}
}

func periodLabel(t time.Time, g PeriodGranularity) string {
	switch g {
	case GranularityDaily:
		return t.Format("Jan 2")
	case GranularityQuarterly:
		return fmt.Sprintf("Q%d %d", (int(t.Month())-1)/3+1, t.Year())
	case GranularityYearly:
		return strconv.Itoa(t.Year())
	default:
		return t.Format("Jan 2006")
	}
}
