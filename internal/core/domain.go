package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Weekly    BillingCycle = "weekly"
	Monthly   BillingCycle = "monthly"
	Quarterly BillingCycle = "quarterly"
	Yearly    BillingCycle = "yearly"
	OneOff    BillingCycle = "one-off"
)

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusPaused    Status = "paused"
	StatusExpired   Status = "expired"
)

type (
	// BillingCycle is the recurrence period of a subscription charge.
	BillingCycle string

	// Status is the lifecycle state of a subscription. Only active
	// subscriptions participate in aggregation.
	Status string

	Money struct {
		Cents int64
	}

	// Subscription is a single tracked recurring payment. Category is an
	// opaque, user-extensible label; grouping is case-sensitive exact match.
	Subscription struct {
		ID              string
		Name            string
		Amount          Money
		Cycle           BillingCycle
		Category        string
		Status          Status
		NextPaymentDate time.Time
		IsTrial         bool
	}
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrEmptyName      = errors.New("empty name")
	ErrEmptyCategory  = errors.New("empty category")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrMissingPayDate = errors.New("missing next payment date")
)

// Validate reports whether the cycle is one of the known billing cycles.
func (c BillingCycle) Validate() error {
	switch c {
	case Weekly, Monthly, Quarterly, Yearly, OneOff:
		return nil
	default:
		return ErrInvalidBillingCycle
	}
}

func (s Status) Validate() error {
	switch s {
	case StatusActive, StatusCancelled, StatusPaused, StatusExpired:
		return nil
	default:
		return ErrInvalidStatus
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (s Subscription) Validate() error {
	if len(strings.TrimSpace(s.Name)) == 0 {
		return ErrEmptyName
	}
	if len(s.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	if err := s.Cycle.Validate(); err != nil {
		return err
	}
	if err := s.Status.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.Category) == "" {
		return ErrEmptyCategory
	}
	// One-off charges have no future renewal, every recurring cycle does.
	if s.Cycle != OneOff && s.NextPaymentDate.IsZero() {
		return ErrMissingPayDate
	}
	return nil
}
