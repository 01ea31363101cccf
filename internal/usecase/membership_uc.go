package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/adapter"
	"community-subscription-bot/internal/domain/ports/repository"
	"community-subscription-bot/internal/infra/logging"
	"community-subscription-bot/internal/infra/metrics"
)

// Compile-time check
var _ MembershipUseCase = (*membershipUC)(nil)

const sweepPageSize = 100

// SweepReport summarises one pass over the user base.
type SweepReport struct {
	Checked int
	Skipped int
	Banned  int
	Errors  int
}

// MembershipUseCase removes members of the community group who no longer pay.
type MembershipUseCase interface {
	Sweep(ctx context.Context) (SweepReport, error)
	// EnforceMember checks a single member who just joined the group.
	// It returns true when the member was banned.
	EnforceMember(ctx context.Context, telegramID int64) (bool, error)
}

type membershipUC struct {
	users       repository.UserRepository
	subs        repository.SubscriptionRepository
	group       adapter.GroupAdmin
	groupID     int64
	callTimeout time.Duration
	clock       func() time.Time
	log         *zerolog.Logger
}

func NewMembershipUseCase(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	group adapter.GroupAdmin,
	groupID int64,
	callTimeout time.Duration,
	logger *zerolog.Logger,
) *membershipUC {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	l := logger.With().Str("component", "MembershipUC").Logger()
	return &membershipUC{
		users:       users,
		subs:        subs,
		group:       group,
		groupID:     groupID,
		callTimeout: callTimeout,
		clock:       time.Now,
		log:         &l,
	}
}

// WithClock overrides the time source; tests pin it.
func (m *membershipUC) WithClock(clock func() time.Time) *membershipUC {
	m.clock = clock
	return m
}

func (m *membershipUC) Sweep(ctx context.Context) (SweepReport, error) {
	defer logging.TraceDuration(m.log, "MembershipUC.Sweep")()
	start := time.Now()
	defer func() { metrics.ObserveMembershipSweep(time.Since(start).Seconds()) }()

	var rep SweepReport
	for offset := 0; ; offset += sweepPageSize {
		page, err := m.users.ListPage(ctx, repository.NoTX, offset, sweepPageSize)
		if err != nil {
			return rep, err
		}
		for _, u := range page {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			rep.Checked++
			banned, skipped, err := m.check(ctx, u)
			switch {
			case err != nil:
				rep.Errors++
				metrics.IncMembershipCheck("error")
				m.log.Warn().Err(err).Str("user_id", u.ID).Int64("tg_id", u.TelegramID).Msg("membership check failed")
			case banned:
				rep.Banned++
				metrics.IncMembershipCheck("banned")
			case skipped:
				rep.Skipped++
				metrics.IncMembershipCheck("skipped")
			default:
				metrics.IncMembershipCheck("kept")
			}
		}
		if len(page) < sweepPageSize {
			break
		}
	}

	m.log.Info().
		Int("checked", rep.Checked).
		Int("banned", rep.Banned).
		Int("skipped", rep.Skipped).
		Int("errors", rep.Errors).
		Msg("membership sweep finished")
	return rep, nil
}

// check inspects one known user. skipped means the user holds no seat or is staff.
func (m *membershipUC) check(ctx context.Context, u *model.User) (banned, skipped bool, err error) {
	status, err := m.memberStatus(ctx, u.TelegramID)
	if err != nil {
		return false, false, err
	}
	if adapter.IsStaffStatus(status) || !adapter.IsLiveStatus(status) {
		return false, true, nil
	}
	entitled, err := m.entitled(ctx, u.ID)
	if err != nil {
		return false, false, err
	}
	if entitled {
		return false, false, nil
	}
	if err := m.ban(ctx, u.TelegramID); err != nil {
		return false, false, err
	}
	return true, false, nil
}

func (m *membershipUC) EnforceMember(ctx context.Context, telegramID int64) (bool, error) {
	defer logging.TraceDuration(m.log, "MembershipUC.EnforceMember")()
	log := logging.With(logging.WithTgID(ctx, telegramID), m.log)

	status, err := m.memberStatus(ctx, telegramID)
	if err != nil {
		return false, err
	}
	if adapter.IsStaffStatus(status) {
		return false, nil
	}

	user, err := m.users.FindByTelegramID(ctx, repository.NoTX, telegramID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		log.Info().Msg("unregistered member joined, removing")
	case err != nil:
		return false, err
	default:
		entitled, err := m.entitled(ctx, user.ID)
		if err != nil {
			return false, err
		}
		if entitled {
			metrics.IncMembershipCheck("kept")
			return false, nil
		}
		log.Info().Str("user_id", user.ID).Msg("member without active subscription joined, removing")
	}

	if err := m.ban(ctx, telegramID); err != nil {
		metrics.IncMembershipCheck("error")
		return false, err
	}
	metrics.IncMembershipCheck("banned")
	return true, nil
}

func (m *membershipUC) entitled(ctx context.Context, userID string) (bool, error) {
	sub, err := m.subs.FindLatestByUser(ctx, repository.NoTX, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sub.IsActive(m.clock()), nil
}

func (m *membershipUC) memberStatus(ctx context.Context, tgID int64) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()
	return m.group.GetMemberStatus(cctx, m.groupID, tgID)
}

func (m *membershipUC) ban(ctx context.Context, tgID int64) error {
	cctx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()
	if err := m.group.BanMember(cctx, m.groupID, tgID); err != nil {
		return err
	}
	m.log.Info().Int64("tg_id", tgID).Msg("member banned")
	return nil
}
