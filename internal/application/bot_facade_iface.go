package application

import (
	"context"
	"time"

	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/usecase"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----
// These describe the minimal surface that the facade needs.

type UserUseCaseIface interface {
	RegisterOrFetch(ctx context.Context, p usecase.TelegramProfile) (*model.User, error)
	GetByTelegramID(ctx context.Context, tgID int64) (*model.User, error)
}

type EntitlementUseCaseIface interface {
	Status(ctx context.Context, userID string, now time.Time) (*usecase.SubscriptionStatus, error)
}

type PaymentUseCaseIface interface {
	Checkout(ctx context.Context, provider, userID string, tier model.Tier, months int, email string) (string, error)
}

type MembershipUseCaseIface interface {
	EnforceMember(ctx context.Context, telegramID int64) (bool, error)
}
