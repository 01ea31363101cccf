package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/ports/repository"
)

var _ repository.NotificationLogRepository = (*notificationLogRepo)(nil)

type notificationLogRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationLogRepo(pool *pgxpool.Pool) repository.NotificationLogRepository {
	return &notificationLogRepo{pool: pool}
}

// Save leans on UNIQUE (subscription_id, kind, threshold_days); a second
// record of the same reminder reports domain.ErrAlreadyExists.
func (r *notificationLogRepo) Save(ctx context.Context, tx repository.Tx, subscriptionID, userID, kind string, thresholdDays int) error {
	const q = `
INSERT INTO subscription_notifications (id, subscription_id, user_id, kind, threshold_days)
VALUES ($1, $2, $3, $4, $5)`
	_, err := execSQL(ctx, r.pool, tx, q, uuid.NewString(), subscriptionID, userID, kind, thresholdDays)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return mapErr("notifications.save", err)
}

func (r *notificationLogRepo) Exists(ctx context.Context, tx repository.Tx, subscriptionID, kind string, thresholdDays int) (bool, error) {
	const q = `
SELECT EXISTS(
    SELECT 1 FROM subscription_notifications
    WHERE subscription_id = $1 AND kind = $2 AND threshold_days = $3
)`
	row, err := pickRow(ctx, r.pool, tx, q, subscriptionID, kind, thresholdDays)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, mapErr("notifications.exists", err)
	}
	return exists, nil
}
