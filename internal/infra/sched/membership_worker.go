package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"community-subscription-bot/internal/infra/logging"
	"community-subscription-bot/internal/usecase"
)

const minMembershipInterval = time.Minute

// MembershipWorker sweeps the community group on a fixed interval and removes
// members without an active seat.
type MembershipWorker struct {
	interval     time.Duration
	sweepTimeout time.Duration
	uc           usecase.MembershipUseCase
	log          *zerolog.Logger
}

// NewMembershipWorker clamps interval to at least one minute. sweepTimeout <= 0
// defaults to the interval.
func NewMembershipWorker(interval, sweepTimeout time.Duration, uc usecase.MembershipUseCase, logger *zerolog.Logger) *MembershipWorker {
	if interval < minMembershipInterval {
		interval = minMembershipInterval
	}
	if sweepTimeout <= 0 {
		sweepTimeout = interval
	}
	l := logger.With().Str("component", "MembershipWorker").Logger()
	return &MembershipWorker{interval: interval, sweepTimeout: sweepTimeout, uc: uc, log: &l}
}

// Run sweeps once on startup and then on every tick until ctx is done.
func (w *MembershipWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting membership worker")
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping membership worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *MembershipWorker) sweep(parent context.Context) {
	ctx, cancel := context.WithTimeout(logging.WithTraceID(parent, logging.NewTraceID()), w.sweepTimeout)
	defer cancel()

	rep, err := w.uc.Sweep(ctx)
	if err != nil {
		logging.With(ctx, w.log).Error().Err(err).
			Int("checked", rep.Checked).
			Int("banned", rep.Banned).
			Msg("membership sweep aborted")
	}
}
