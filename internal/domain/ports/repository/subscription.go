package repository

import (
	"context"
	"time"

	"community-subscription-bot/internal/domain/model"
)

// SubscriptionRepository is the port for entitlement grants.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	// FindLatestByUser returns the row with the greatest end_date, or domain.ErrNotFound.
	FindLatestByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	// FindLatestEndingBetween returns, per user, the latest grant when its end_date falls in [from, to].
	FindLatestEndingBetween(ctx context.Context, tx Tx, from, to time.Time) ([]*model.Subscription, error)
	// CountActiveByTier counts users whose latest grant is still running at now.
	CountActiveByTier(ctx context.Context, tx Tx, now time.Time) (map[model.Tier]int, error)
}
