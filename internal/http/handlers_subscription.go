package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"subtracker/internal/core"
	applog "subtracker/internal/log"
)

// subscriptionPayload is the request body for create and update.
type subscriptionPayload struct {
	Name            string      `json:"name"`
	Amount          json.Number `json:"amount"`
	BillingCycle    string      `json:"billingCycle"`
	Category        string      `json:"category"`
	Status          string      `json:"status"`
	NextPaymentDate string      `json:"nextPaymentDate"`
	IsTrial         bool        `json:"isTrial"`
}

// subscriptionJSON is the wire shape of a subscription.
type subscriptionJSON struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Amount          float64 `json:"amount"`
	BillingCycle    string  `json:"billingCycle"`
	Category        string  `json:"category"`
	Status          string  `json:"status"`
	NextPaymentDate string  `json:"nextPaymentDate,omitempty"`
	IsTrial         bool    `json:"isTrial"`
}

func toJSON(sub core.Subscription) subscriptionJSON {
	out := subscriptionJSON{
		ID:           sub.ID,
		Name:         sub.Name,
		Amount:       sub.Amount.Float(),
		BillingCycle: string(sub.Cycle),
		Category:     sub.Category,
		Status:       string(sub.Status),
		IsTrial:      sub.IsTrial,
	}
	if !sub.NextPaymentDate.IsZero() {
		out.NextPaymentDate = sub.NextPaymentDate.Format("2006-01-02")
	}
	return out
}

// toSubscription converts the payload to a domain subscription. Amounts come
// in as decimal numbers; cents are derived with half-up rounding.
func (p subscriptionPayload) toSubscription() (core.Subscription, error) {
	cents, err := core.ParseDecimalToCents(p.Amount.String())
	if err != nil {
		return core.Subscription{}, err
	}

	date, err := parsePaymentDate(p.NextPaymentDate)
	if err != nil {
		return core.Subscription{}, err
	}

	return core.Subscription{
		Name:            sanitizeInput(p.Name),
		Amount:          core.Money{Cents: cents},
		Cycle:           core.BillingCycle(sanitizeInput(p.BillingCycle)),
		Category:        sanitizeInput(p.Category),
		Status:          core.Status(sanitizeInput(p.Status)),
		NextPaymentDate: date,
		IsTrial:         p.IsTrial,
	}, nil
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	subs, err := s.svc.List(r.Context(), userID)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	out := make([]subscriptionJSON, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toJSON(sub))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	var payload subscriptionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sub, err := payload.toSubscription()
	if err != nil {
		payloadError(w, err)
		return
	}

	created, err := s.svc.Create(r.Context(), userID, sub)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	s.invalidateUser(userID)

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Subscription created",
		"id", created.ID,
		applog.FieldUserID, userID,
		applog.FieldAmountCents, created.Amount.Cents,
		applog.FieldBillingCycle, string(created.Cycle))

	writeJSON(w, http.StatusCreated, toJSON(created))
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	sub, err := s.svc.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(sub))
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	var payload subscriptionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sub, err := payload.toSubscription()
	if err != nil {
		payloadError(w, err)
		return
	}
	sub.ID = r.PathValue("id")

	updated, err := s.svc.Update(r.Context(), userID, sub)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	s.invalidateUser(userID)
	writeJSON(w, http.StatusOK, toJSON(updated))
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	if err := s.svc.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		serviceError(w, r, err)
		return
	}

	s.invalidateUser(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	req := core.AggregationRequest{
		Granularity: core.GranularityMonthly,
		Scale:       core.Scale6Months,
	}
	if v := sanitizeInput(q.Get("granularity")); v != "" {
		req.Granularity = core.PeriodGranularity(v)
	}
	if v := sanitizeInput(q.Get("timeScale")); v != "" {
		req.Scale = core.TimeScale(v)
	}
	if v := sanitizeInput(q.Get("categories")); v != "" {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				req.Categories = append(req.Categories, c)
			}
		}
	}

	if err := req.Granularity.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Scale.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := userID + "|" + string(req.Granularity) + "|" + string(req.Scale) + "|" + strings.Join(req.Categories, ",")
	if cached, found := s.analyticsCache.Get(key); found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	result, err := s.svc.Analytics(r.Context(), userID, req, time.Now())
	if err != nil {
		serviceError(w, r, err)
		return
	}

	s.analyticsCache.Set(key, result)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	if cached, found := s.statsCache.Get(userID); found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	stats, err := s.svc.Stats(r.Context(), userID, time.Now())
	if err != nil {
		serviceError(w, r, err)
		return
	}

	s.statsCache.Set(userID, stats)
	writeJSON(w, http.StatusOK, stats)
}
