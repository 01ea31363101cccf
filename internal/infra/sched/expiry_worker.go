package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"community-subscription-bot/internal/infra/logging"
	"community-subscription-bot/internal/usecase"
)

// ExpiryWorker sends the "subscription ends soon" reminders. It is driven by
// the cron scheduler through RunOnce.
type ExpiryWorker struct {
	notifUC usecase.NotificationUseCase
	clock   func() time.Time
	log     *zerolog.Logger
}

func NewExpiryWorker(notifUC usecase.NotificationUseCase, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{notifUC: notifUC, clock: time.Now, log: &l}
}

// WithClock pins the time source; tests only.
func (w *ExpiryWorker) WithClock(clock func() time.Time) *ExpiryWorker {
	w.clock = clock
	return w
}

// RunOnce matches scheduler.JobFunc.
func (w *ExpiryWorker) RunOnce(ctx context.Context) error {
	log := logging.With(ctx, w.log)
	sent, err := w.notifUC.NotifyExpiring(ctx, w.clock())
	if sent > 0 {
		log.Info().Int("count", sent).Msg("expiry reminders sent")
	}
	if err != nil {
		log.Error().Err(err).Int("sent", sent).Msg("expiry reminder run failed")
		return err
	}
	return nil
}
