package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"community-subscription-bot/internal/domain/ports/adapter"
	"community-subscription-bot/internal/domain/ports/repository"
	"community-subscription-bot/internal/infra/i18n"
	"community-subscription-bot/internal/infra/logging"
	"community-subscription-bot/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

const notificationKindExpiry = "expiry"

type NotificationUseCase interface {
	// NotifyExpiring reminds every user whose latest grant ends within the
	// reminder window starting at now. It returns how many reminders went out.
	NotifyExpiring(ctx context.Context, now time.Time) (int, error)
}

type notificationUC struct {
	subs   repository.SubscriptionRepository
	notifs repository.NotificationLogRepository
	users  repository.UserRepository
	bot    adapter.TelegramBotAdapter
	tr     *i18n.Translator
	window time.Duration
	log    *zerolog.Logger
}

func NewNotificationUseCase(
	subs repository.SubscriptionRepository,
	notifs repository.NotificationLogRepository,
	users repository.UserRepository,
	bot adapter.TelegramBotAdapter,
	tr *i18n.Translator,
	window time.Duration,
	logger *zerolog.Logger,
) *notificationUC {
	if window <= 0 {
		window = 72 * time.Hour
	}
	l := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{subs: subs, notifs: notifs, users: users, bot: bot, tr: tr, window: window, log: &l}
}

func (n *notificationUC) NotifyExpiring(ctx context.Context, now time.Time) (int, error) {
	defer logging.TraceDuration(n.log, "NotificationUC.NotifyExpiring")()

	items, err := n.subs.FindLatestEndingBetween(ctx, repository.NoTX, now, now.Add(n.window))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, sub := range items {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		days := sub.DaysRemaining(now)
		if days <= 0 {
			continue
		}
		log := n.log.With().Str("subscription_id", sub.ID).Str("user_id", sub.UserID).Int("days", days).Logger()

		already, err := n.notifs.Exists(ctx, repository.NoTX, sub.ID, notificationKindExpiry, days)
		if err != nil {
			log.Error().Err(err).Msg("notification log lookup failed")
			metrics.IncExpiryReminder("error")
			continue
		}
		if already {
			metrics.IncExpiryReminder("skipped")
			continue
		}

		user, err := n.users.FindByID(ctx, repository.NoTX, sub.UserID)
		if err != nil {
			log.Error().Err(err).Msg("user lookup failed")
			metrics.IncExpiryReminder("error")
			continue
		}

		if err := n.bot.SendMessage(ctx, user.TelegramID, n.tr.T("expiry_reminder", days)); err != nil {
			log.Warn().Err(err).Int64("tg_id", user.TelegramID).Msg("expiry reminder not delivered")
			metrics.IncExpiryReminder("error")
			continue
		}
		if err := n.notifs.Save(ctx, repository.NoTX, sub.ID, sub.UserID, notificationKindExpiry, days); err != nil {
			log.Warn().Err(err).Msg("could not record reminder")
		}
		metrics.IncExpiryReminder("sent")
		sent++
	}
	return sent, nil
}
