package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/infra/i18n"
	"community-subscription-bot/internal/usecase"
)

// BotFacade composes usecases into high-level bot commands.
// Methods return display strings so the Telegram adapter just forwards them to the chat.
type BotFacade struct {
	UserUC   UserUseCaseIface
	EntUC    EntitlementUseCaseIface
	PayUC    PaymentUseCaseIface
	MemberUC MembershipUseCaseIface

	tr       *i18n.Translator
	provider string // checkout provider for bot purchases
	email    string // receipt address when the user has none
	now      func() time.Time
}

func NewBotFacade(
	userUC UserUseCaseIface,
	entUC EntitlementUseCaseIface,
	payUC PaymentUseCaseIface,
	memberUC MembershipUseCaseIface,
	tr *i18n.Translator,
	provider, receiptEmail string,
) *BotFacade {
	return &BotFacade{
		UserUC:   userUC,
		EntUC:    entUC,
		PayUC:    payUC,
		MemberUC: memberUC,
		tr:       tr,
		provider: provider,
		email:    receiptEmail,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock; tests only.
func (b *BotFacade) WithClock(now func() time.Time) *BotFacade {
	b.now = now
	return b
}

// HandleStart registers or refreshes the user and returns the welcome text.
func (b *BotFacade) HandleStart(ctx context.Context, p usecase.TelegramProfile) (string, error) {
	if b.UserUC == nil {
		return "", fmt.Errorf("user usecase not available")
	}
	if _, err := b.UserUC.RegisterOrFetch(ctx, p); err != nil {
		return "", fmt.Errorf("register/fetch user: %w", err)
	}
	return b.tr.T("welcome"), nil
}

// HandleStatus describes the latest subscription of the user.
func (b *BotFacade) HandleStatus(ctx context.Context, tgID int64) (string, error) {
	st, err := b.status(ctx, tgID)
	if errors.Is(err, domain.ErrNotFound) {
		return b.tr.T("no_active_subscription"), nil
	}
	if err != nil {
		return "", err
	}
	if !st.Active {
		return b.tr.T("no_active_subscription"), nil
	}
	sub := st.Subscription
	return b.tr.T("status_active", int(sub.Tier), sub.EndDate.Format("02.01.2006"), st.DaysRemaining), nil
}

// HasActiveSubscription gates the mini-app button.
func (b *BotFacade) HasActiveSubscription(ctx context.Context, tgID int64) (bool, error) {
	st, err := b.status(ctx, tgID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return st.Active, nil
}

// HandleCheckout asks the configured provider for a payment URL for tier/months.
func (b *BotFacade) HandleCheckout(ctx context.Context, tgID int64, tier model.Tier, months int) (string, error) {
	if b.UserUC == nil || b.PayUC == nil {
		return "", fmt.Errorf("some usecases are not available")
	}
	if _, ok := model.Price(tier, months); !ok {
		return "", domain.ErrInvalidArgument
	}
	user, err := b.UserUC.GetByTelegramID(ctx, tgID)
	if err != nil {
		return "", fmt.Errorf("user not found: %w", err)
	}
	return b.PayUC.Checkout(ctx, b.provider, user.ID, tier, months, b.email)
}

// HandleNewMember is called for every user that joins the community group.
// It returns true when the member was removed.
func (b *BotFacade) HandleNewMember(ctx context.Context, tgID int64) (bool, error) {
	if b.MemberUC == nil {
		return false, nil
	}
	return b.MemberUC.EnforceMember(ctx, tgID)
}

func (b *BotFacade) status(ctx context.Context, tgID int64) (*usecase.SubscriptionStatus, error) {
	if b.UserUC == nil || b.EntUC == nil {
		return nil, fmt.Errorf("some usecases are not available")
	}
	user, err := b.UserUC.GetByTelegramID(ctx, tgID)
	if err != nil {
		return nil, err
	}
	return b.EntUC.Status(ctx, user.ID, b.now())
}
