package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

// Subscription is the database row for a tracked subscription.
type Subscription struct {
	ID              string
	UserID          string
	Name            string
	AmountCents     int64
	BillingCycle    string
	Category        string
	Status          string
	NextPaymentDate sql.NullTime
	IsTrial         bool
	Exported        bool
	ExportError     bool
	Version         int64
	DeletedAt       sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const subscriptionColumns = `id, user_id, name, amount_cents, billing_cycle, category, status,
	next_payment_date, is_trial, exported, export_error, version, deleted_at, created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (Subscription, error) {
	var s Subscription
	err := row.Scan(
		&s.ID, &s.UserID, &s.Name, &s.AmountCents, &s.BillingCycle, &s.Category, &s.Status,
		&s.NextPaymentDate, &s.IsTrial, &s.Exported, &s.ExportError, &s.Version,
		&s.DeletedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

type CreateSubscriptionParams struct {
	ID              string
	UserID          string
	Name            string
	AmountCents     int64
	BillingCycle    string
	Category        string
	Status          string
	NextPaymentDate sql.NullTime
	IsTrial         bool
}

const createSubscription = `INSERT INTO subscriptions
	(id, user_id, name, amount_cents, billing_cycle, category, status, next_payment_date, is_trial)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING ` + subscriptionColumns

func (q *Queries) CreateSubscription(ctx context.Context, arg CreateSubscriptionParams) (Subscription, error) {
	row := q.db.QueryRowContext(ctx, createSubscription,
		arg.ID, arg.UserID, arg.Name, arg.AmountCents, arg.BillingCycle,
		arg.Category, arg.Status, arg.NextPaymentDate, arg.IsTrial,
	)
	return scanSubscription(row)
}

const getSubscription = `SELECT ` + subscriptionColumns + `
	FROM subscriptions WHERE id = ? AND user_id = ? AND deleted_at IS NULL`

func (q *Queries) GetSubscription(ctx context.Context, id, userID string) (Subscription, error) {
	row := q.db.QueryRowContext(ctx, getSubscription, id, userID)
	return scanSubscription(row)
}

const getSubscriptionByID = `SELECT ` + subscriptionColumns + `
	FROM subscriptions WHERE id = ? AND deleted_at IS NULL`

func (q *Queries) GetSubscriptionByID(ctx context.Context, id string) (Subscription, error) {
	row := q.db.QueryRowContext(ctx, getSubscriptionByID, id)
	return scanSubscription(row)
}

const listSubscriptions = `SELECT ` + subscriptionColumns + `
	FROM subscriptions WHERE user_id = ? AND deleted_at IS NULL
	ORDER BY created_at, id`

func (q *Queries) ListSubscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	rows, err := q.db.QueryContext(ctx, listSubscriptions, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

type UpdateSubscriptionParams struct {
	ID              string
	UserID          string
	Name            string
	AmountCents     int64
	BillingCycle    string
	Category        string
	Status          string
	NextPaymentDate sql.NullTime
	IsTrial         bool
}

const updateSubscription = `UPDATE subscriptions SET
	name = ?, amount_cents = ?, billing_cycle = ?, category = ?, status = ?,
	next_payment_date = ?, is_trial = ?, exported = 0, export_error = 0,
	version = version + 1, updated_at = CURRENT_TIMESTAMP
	WHERE id = ? AND user_id = ? AND deleted_at IS NULL
	RETURNING version`

// UpdateSubscription applies the new field values and returns the bumped
// version. sql.ErrNoRows means no live row matched.
func (q *Queries) UpdateSubscription(ctx context.Context, arg UpdateSubscriptionParams) (int64, error) {
	var version int64
	err := q.db.QueryRowContext(ctx, updateSubscription,
		arg.Name, arg.AmountCents, arg.BillingCycle, arg.Category, arg.Status,
		arg.NextPaymentDate, arg.IsTrial, arg.ID, arg.UserID,
	).Scan(&version)
	return version, err
}

const softDeleteSubscription = `UPDATE subscriptions SET
	deleted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
	WHERE id = ? AND user_id = ? AND deleted_at IS NULL`

func (q *Queries) SoftDeleteSubscription(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, softDeleteSubscription, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countActiveSubscriptions = `SELECT COUNT(*) FROM subscriptions
	WHERE user_id = ? AND status = 'active' AND deleted_at IS NULL`

func (q *Queries) CountActiveSubscriptions(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countActiveSubscriptions, userID).Scan(&n)
	return n, err
}

const listDueSubscriptions = `SELECT ` + subscriptionColumns + `
	FROM subscriptions
	WHERE status = 'active' AND deleted_at IS NULL
	AND next_payment_date IS NOT NULL AND next_payment_date <= ?
	ORDER BY next_payment_date
	LIMIT ?`

// ListDueSubscriptions returns active subscriptions whose renewal date has
// passed, across all users.
func (q *Queries) ListDueSubscriptions(ctx context.Context, dueBy time.Time, limit int64) ([]Subscription, error) {
	rows, err := q.db.QueryContext(ctx, listDueSubscriptions, dueBy, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

const listUpcomingRenewals = `SELECT ` + subscriptionColumns + `
	FROM subscriptions
	WHERE status = 'active' AND deleted_at IS NULL
	AND next_payment_date IS NOT NULL AND next_payment_date > ? AND next_payment_date < ?
	ORDER BY next_payment_date`

// ListUpcomingRenewals returns active subscriptions renewing strictly between
// from and to, across all users.
func (q *Queries) ListUpcomingRenewals(ctx context.Context, from, to time.Time) ([]Subscription, error) {
	rows, err := q.db.QueryContext(ctx, listUpcomingRenewals, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

type AdvanceRenewalParams struct {
	ID              string
	Status          string
	NextPaymentDate sql.NullTime
}

const advanceRenewal = `UPDATE subscriptions SET
	status = ?, next_payment_date = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
	WHERE id = ? AND deleted_at IS NULL`

func (q *Queries) AdvanceRenewal(ctx context.Context, arg AdvanceRenewalParams) error {
	_, err := q.db.ExecContext(ctx, advanceRenewal, arg.Status, arg.NextPaymentDate, arg.ID)
	return err
}

const getPendingExportSubscriptions = `SELECT ` + subscriptionColumns + `
	FROM subscriptions
	WHERE exported = 0 AND export_error = 0 AND deleted_at IS NULL
	ORDER BY updated_at
	LIMIT ?`

func (q *Queries) GetPendingExportSubscriptions(ctx context.Context, limit int64) ([]Subscription, error) {
	rows, err := q.db.QueryContext(ctx, getPendingExportSubscriptions, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

const markSubscriptionExported = `UPDATE subscriptions SET
	exported = 1, export_error = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

func (q *Queries) MarkSubscriptionExported(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markSubscriptionExported, id)
	return err
}

const markSubscriptionExportError = `UPDATE subscriptions SET
	export_error = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

func (q *Queries) MarkSubscriptionExportError(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markSubscriptionExportError, id)
	return err
}

const ensureUser = `INSERT INTO users (id) VALUES (?) ON CONFLICT (id) DO NOTHING`

func (q *Queries) EnsureUser(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, ensureUser, id)
	return err
}

const getUserPlan = `SELECT plan FROM users WHERE id = ?`

func (q *Queries) GetUserPlan(ctx context.Context, id string) (string, error) {
	var plan string
	err := q.db.QueryRowContext(ctx, getUserPlan, id).Scan(&plan)
	return plan, err
}

const setUserPlan = `UPDATE users SET plan = ? WHERE id = ?`

func (q *Queries) SetUserPlan(ctx context.Context, id, plan string) error {
	_, err := q.db.ExecContext(ctx, setUserPlan, plan, id)
	return err
}

const listCategories = `SELECT name FROM categories WHERE user_id = ? ORDER BY name`

func (q *Queries) ListCategories(ctx context.Context, userID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

const createCategory = `INSERT INTO categories (user_id, name) VALUES (?, ?) ON CONFLICT (user_id, name) DO NOTHING`

func (q *Queries) CreateCategory(ctx context.Context, userID, name string) error {
	_, err := q.db.ExecContext(ctx, createCategory, userID, name)
	return err
}

const deleteCategory = `DELETE FROM categories WHERE user_id = ? AND name = ?`

func (q *Queries) DeleteCategory(ctx context.Context, userID, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategory, userID, name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countSubscriptionsInCategory = `SELECT COUNT(*) FROM subscriptions
	WHERE user_id = ? AND category = ? AND deleted_at IS NULL`

func (q *Queries) CountSubscriptionsInCategory(ctx context.Context, userID, name string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countSubscriptionsInCategory, userID, name).Scan(&n)
	return n, err
}
