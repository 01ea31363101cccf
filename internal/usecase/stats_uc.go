package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/repository"
	"community-subscription-bot/internal/infra/logging"
	"community-subscription-bot/internal/infra/metrics"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// Totals is the admin dashboard snapshot.
type Totals struct {
	Users        int
	ActiveByTier map[model.Tier]int
}

type StatsUseCase interface {
	Totals(ctx context.Context, now time.Time) (*Totals, error)
}

type statsUC struct {
	users repository.UserRepository
	subs  repository.SubscriptionRepository

	log *zerolog.Logger
}

func NewStatsUseCase(users repository.UserRepository, subs repository.SubscriptionRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{users: users, subs: subs, log: logger}
}

// Totals also refreshes the active-subscription gauge.
func (s *statsUC) Totals(ctx context.Context, now time.Time) (*Totals, error) {
	defer logging.TraceDuration(s.log, "StatsUC.Totals")()
	users, err := s.users.CountUsers(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	active, err := s.subs.CountActiveByTier(ctx, repository.NoTX, now)
	if err != nil {
		return nil, err
	}
	metrics.SetSubscriptionsActive(active)
	return &Totals{Users: users, ActiveByTier: active}, nil
}
