package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subColumns = `id, user_id, tier, start_date, end_date, created_at, source`

// latestPerUser keeps one row per user: the grant with the greatest end_date.
const latestPerUser = `
SELECT DISTINCT ON (user_id) ` + subColumns + `
  FROM subscriptions
 ORDER BY user_id, end_date DESC, created_at DESC`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  tier=$3, start_date=$4, end_date=$5, source=$7;`
	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, int(s.Tier), s.StartDate, s.EndDate, s.CreatedAt, s.Source)
	return mapErr("subscriptions.save", err)
}

func (r *subscriptionRepo) FindLatestByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE user_id=$1 ORDER BY end_date DESC, created_at DESC LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", userID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindLatestEndingBetween(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.Subscription, error) {
	const q = `SELECT ` + subColumns + ` FROM (` + latestPerUser + `) latest
 WHERE end_date >= $1 AND end_date <= $2
 ORDER BY end_date;`
	return r.list(ctx, tx, "subscriptions.ending_between", q, from, to)
}

func (r *subscriptionRepo) CountActiveByTier(ctx context.Context, tx repository.Tx, now time.Time) (map[model.Tier]int, error) {
	const q = `SELECT tier, COUNT(*) FROM (` + latestPerUser + `) latest
 WHERE end_date > $1
 GROUP BY tier;`
	rows, err := queryRows(ctx, r.pool, tx, q, now)
	if err != nil {
		return nil, mapErr("subscriptions.count_active", err)
	}
	defer rows.Close()

	out := map[model.Tier]int{model.TierChannel: 0, model.TierChannelChat: 0}
	for rows.Next() {
		var tier, n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, mapErr("subscriptions.count_active", err)
		}
		out[model.Tier(tier)] = n
	}
	return out, mapErr("subscriptions.count_active", rows.Err())
}

func (r *subscriptionRepo) list(ctx context.Context, tx repository.Tx, op, q string, args ...interface{}) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, mapErr(op, rows.Err())
}

func scanSubscription(row rowScanner) (*model.Subscription, error) {
	var (
		s    model.Subscription
		tier int
	)
	if err := row.Scan(&s.ID, &s.UserID, &tier, &s.StartDate, &s.EndDate, &s.CreatedAt, &s.Source); err != nil {
		return nil, mapErr("subscriptions.scan", err)
	}
	s.Tier = model.Tier(tier)
	return &s, nil
}
