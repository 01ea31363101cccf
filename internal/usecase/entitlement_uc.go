package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/repository"
	"community-subscription-bot/internal/infra/logging"
	"community-subscription-bot/internal/infra/metrics"
)

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

// SubscriptionStatus is the read model served to the bot and the REST API.
type SubscriptionStatus struct {
	Subscription  *model.Subscription
	Active        bool
	DaysRemaining int
}

// EntitlementUseCase owns subscription state. Reads and writes take an
// optional repository.Tx so callers can fold a grant into a larger transaction.
type EntitlementUseCase interface {
	// CurrentSubscription returns the grant with the latest end date or domain.ErrNotFound.
	CurrentSubscription(ctx context.Context, userID string) (*model.Subscription, error)
	// Extend adds months on top of max(current end, now) and records a new grant.
	Extend(ctx context.Context, tx repository.Tx, userID string, tier model.Tier, months int, now time.Time, source string) (*model.Subscription, error)
	// Subscribe records a fresh grant starting now for a known user.
	Subscribe(ctx context.Context, userID string, tier model.Tier, months int, now time.Time) (*model.Subscription, error)
	// ExtendByPlan maps planID onto a duration and extends, keeping the current tier.
	ExtendByPlan(ctx context.Context, userID string, planID int, now time.Time) (*model.Subscription, error)
	Status(ctx context.Context, userID string, now time.Time) (*SubscriptionStatus, error)
}

type entitlementUC struct {
	subs  repository.SubscriptionRepository
	users repository.UserRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewEntitlementUseCase(subs repository.SubscriptionRepository, users repository.UserRepository, tm repository.TransactionManager, logger *zerolog.Logger) *entitlementUC {
	l := logger.With().Str("component", "EntitlementUC").Logger()
	return &entitlementUC{subs: subs, users: users, tm: tm, log: &l}
}

func (e *entitlementUC) CurrentSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.CurrentSubscription")()
	return e.subs.FindLatestByUser(ctx, repository.NoTX, userID)
}

func (e *entitlementUC) Extend(ctx context.Context, tx repository.Tx, userID string, tier model.Tier, months int, now time.Time, source string) (*model.Subscription, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.Extend")()
	if months <= 0 || !tier.Valid() {
		return nil, domain.ErrInvalidArgument
	}

	var current time.Time
	cur, err := e.subs.FindLatestByUser(ctx, tx, userID)
	switch {
	case err == nil:
		current = cur.EndDate
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, err
	}

	sub, err := model.NewSubscription(userID, tier, now, model.ExtensionEnd(current, now, months), source)
	if err != nil {
		return nil, err
	}
	if err := e.subs.Save(ctx, tx, sub); err != nil {
		return nil, err
	}
	metrics.IncEntitlementGrant(tier, source)
	logging.With(ctx, e.log).Info().
		Str("user_id", userID).
		Int("months", months).
		Time("end_date", sub.EndDate).
		Str("source", source).
		Msg("entitlement extended")
	return sub, nil
}

func (e *entitlementUC) Subscribe(ctx context.Context, userID string, tier model.Tier, months int, now time.Time) (*model.Subscription, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.Subscribe")()
	if months <= 0 || !tier.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := e.users.FindByID(ctx, repository.NoTX, userID); err != nil {
		return nil, err
	}
	sub, err := model.NewSubscription(userID, tier, now, model.AddMonths(now, months), "api")
	if err != nil {
		return nil, err
	}
	if err := e.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}
	metrics.IncEntitlementGrant(tier, "api")
	return sub, nil
}

func (e *entitlementUC) ExtendByPlan(ctx context.Context, userID string, planID int, now time.Time) (*model.Subscription, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.ExtendByPlan")()
	if _, err := e.users.FindByID(ctx, repository.NoTX, userID); err != nil {
		return nil, err
	}
	months := model.PlanMonths(planID)

	var out *model.Subscription
	err := e.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		tier := model.TierChannel
		cur, err := e.subs.FindLatestByUser(ctx, tx, userID)
		if err == nil {
			tier = cur.Tier
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		out, err = e.Extend(ctx, tx, userID, tier, months, now, "api")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("extend by plan %d: %w", planID, err)
	}
	return out, nil
}

func (e *entitlementUC) Status(ctx context.Context, userID string, now time.Time) (*SubscriptionStatus, error) {
	defer logging.TraceDuration(e.log, "EntitlementUC.Status")()
	sub, err := e.subs.FindLatestByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	return &SubscriptionStatus{
		Subscription:  sub,
		Active:        sub.IsActive(now),
		DaysRemaining: sub.DaysRemaining(now),
	}, nil
}
