package memory

import (
	"context"
	"fmt"
	"sync"

	"subtracker/internal/core"

	ports "subtracker/internal/sheets"
)

// Store is an in-memory SubscriptionWriter used in tests and when no
// Google Sheets credentials are configured.
type Store struct {
	mu    sync.Mutex
	rows  map[string]row
	order []string
}

type row struct {
	userID string
	sub    core.Subscription
}

var _ ports.SubscriptionWriter = (*Store)(nil)

func New() *Store {
	return &Store{rows: map[string]row{}}
}

// Upsert stores the subscription keyed by ID and returns a synthetic row
// reference that is stable across updates of the same subscription.
func (s *Store) Upsert(_ context.Context, userID string, sub core.Subscription) (string, error) {
	if err := sub.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[sub.ID]; !ok {
		s.order = append(s.order, sub.ID)
	}
	s.rows[sub.ID] = row{userID: userID, sub: sub}
	for i, id := range s.order {
		if id == sub.ID {
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	return "", fmt.Errorf("row %s lost", sub.ID)
}

// Get returns the stored subscription and its owner, if present.
func (s *Store) Get(id string) (core.Subscription, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	return r.sub, r.userID, ok
}

// Len reports the number of distinct subscriptions stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
