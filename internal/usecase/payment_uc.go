package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/adapter"
	"community-subscription-bot/internal/domain/ports/repository"
	"community-subscription-bot/internal/infra/logging"
	"community-subscription-bot/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// TaskSubmitter runs work in the background; the worker pool satisfies it.
type TaskSubmitter interface {
	Submit(task func(ctx context.Context) error) error
}

type PaymentUseCase interface {
	// Checkout prices (tier, months) from the catalogue and returns a payment URL
	// whose correlation string points back at userID.
	Checkout(ctx context.Context, provider, userID string, tier model.Tier, months int, email string) (string, error)
	// CreateLink asks the provider for a payment URL for an arbitrary request.
	CreateLink(ctx context.Context, provider string, req adapter.CheckoutRequest) (string, error)
	// Reconcile turns one provider callback into at most one entitlement grant.
	Reconcile(ctx context.Context, provider string, in adapter.InboundNotification) (adapter.Ack, error)
	Providers() []string
}

type paymentUC struct {
	providers map[string]adapter.PaymentProvider
	users     repository.UserRepository
	ledger    repository.PaymentLedgerRepository
	ents      EntitlementUseCase
	tm        repository.TransactionManager
	locker    adapter.Locker
	hooks     []PostCommitHook
	runner    TaskSubmitter
	lockTTL   time.Duration
	clock     func() time.Time
	log       *zerolog.Logger
}

func NewPaymentUseCase(
	providers []adapter.PaymentProvider,
	users repository.UserRepository,
	ledger repository.PaymentLedgerRepository,
	ents EntitlementUseCase,
	tm repository.TransactionManager,
	locker adapter.Locker,
	hooks []PostCommitHook,
	runner TaskSubmitter,
	logger *zerolog.Logger,
) *paymentUC {
	byName := make(map[string]adapter.PaymentProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		providers: byName,
		users:     users,
		ledger:    ledger,
		ents:      ents,
		tm:        tm,
		locker:    locker,
		hooks:     hooks,
		runner:    runner,
		lockTTL:   30 * time.Second,
		clock:     time.Now,
		log:       &l,
	}
}

// WithClock overrides the time source; tests pin it.
func (p *paymentUC) WithClock(clock func() time.Time) *paymentUC {
	p.clock = clock
	return p
}

func (p *paymentUC) Providers() []string {
	out := make([]string, 0, len(p.providers))
	for name := range p.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (p *paymentUC) provider(name string) (adapter.PaymentProvider, error) {
	pr, ok := p.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, name)
	}
	return pr, nil
}

func (p *paymentUC) Checkout(ctx context.Context, provider, userID string, tier model.Tier, months int, email string) (string, error) {
	defer logging.TraceDuration(p.log, "PaymentUC.Checkout")()
	price, ok := model.Price(tier, months)
	if !ok {
		return "", fmt.Errorf("%w: no price for tier %d / %d months", domain.ErrInvalidArgument, tier, months)
	}
	corr := model.Correlation{UserID: userID, Tier: tier, Months: months}
	return p.CreateLink(ctx, provider, adapter.CheckoutRequest{
		Amount:      price,
		Currency:    model.Currency,
		Description: corr.String(),
		Email:       email,
	})
}

func (p *paymentUC) CreateLink(ctx context.Context, provider string, req adapter.CheckoutRequest) (string, error) {
	defer logging.TraceDuration(p.log, "PaymentUC.CreateLink")()
	pr, err := p.provider(provider)
	if err != nil {
		return "", err
	}
	if req.Amount <= 0 || req.Currency == "" {
		return "", domain.ErrInvalidArgument
	}
	url, err := pr.CreatePayment(ctx, req)
	if err != nil {
		metrics.IncCheckout(provider, "error")
		logging.With(ctx, p.log).Error().Err(err).Str("provider", provider).Msg("create payment failed")
		return "", err
	}
	metrics.IncCheckout(provider, "ok")
	return url, nil
}

func (p *paymentUC) Reconcile(ctx context.Context, provider string, in adapter.InboundNotification) (adapter.Ack, error) {
	defer logging.TraceDuration(p.log, "PaymentUC.Reconcile")()
	pr, err := p.provider(provider)
	if err != nil {
		return adapter.Ack{}, err
	}
	log := logging.With(ctx, p.log).With().Str("provider", provider).Logger()

	// 1. authenticate
	n, err := pr.VerifyNotification(in)
	if err != nil {
		metrics.IncPayment(provider, "auth_failed")
		log.Warn().Err(err).Msg("payment notification rejected")
		return adapter.Ack{}, err
	}
	// the ledger is keyed by transaction id; an empty one would dedupe unrelated payments
	if n.TransactionID == "" {
		metrics.IncPayment(provider, "malformed")
		log.Warn().Msg("payment notification without transaction id")
		return adapter.Ack{}, fmt.Errorf("%w: missing transaction id", domain.ErrInvalidArgument)
	}
	ctx = logging.WithTransactionID(ctx, n.TransactionID)
	log = log.With().Str("transaction_id", n.TransactionID).Logger()

	// 2. non-success statuses are acknowledged and dropped
	if !n.Succeeded {
		metrics.IncPayment(provider, "ignored")
		log.Info().Str("status", n.Status).Msg("payment not successful, nothing to apply")
		return pr.Ack(), nil
	}

	// 3. decode the correlation string
	corr, err := model.ParseCorrelation(n.Description)
	if err != nil {
		metrics.IncPayment(provider, "malformed")
		log.Warn().Err(err).Str("description", n.Description).Msg("payment correlation rejected")
		return adapter.Ack{}, err
	}

	// 4. resolve the user; payments never create one
	user, err := p.users.FindByID(ctx, repository.NoTX, corr.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncPayment(provider, "unknown_user")
			log.Warn().Str("user_id", corr.UserID).Msg("payment for unknown user")
			return adapter.Ack{}, fmt.Errorf("%w: %s", domain.ErrUnknownUser, corr.UserID)
		}
		metrics.IncPayment(provider, "transient")
		return adapter.Ack{}, err
	}
	ctx = logging.WithUserID(ctx, user.ID)

	p.checkAmount(log, provider, corr, n)

	// 5 + 6. idempotent apply
	sub, err := p.apply(ctx, provider, n, corr)
	if errors.Is(err, domain.ErrDuplicateTransaction) {
		metrics.IncPayment(provider, "duplicate")
		log.Info().Msg("payment already applied")
		return pr.Ack(), nil
	}
	if err != nil {
		metrics.IncPayment(provider, "transient")
		log.Error().Err(err).Msg("payment apply failed")
		return adapter.Ack{}, err
	}
	metrics.IncPayment(provider, "applied")
	metrics.AddPaymentRevenue(n.Currency, n.Amount)
	log.Info().
		Str("user_id", user.ID).
		Int("tier", int(corr.Tier)).
		Int("months", corr.Months).
		Time("end_date", sub.EndDate).
		Msg("payment applied")

	// 7. side effects after commit
	p.dispatchHooks(ctx, PaymentEvent{
		Provider:      provider,
		TransactionID: n.TransactionID,
		User:          user,
		Subscription:  sub,
		Correlation:   corr,
		Amount:        n.Amount,
		Currency:      n.Currency,
	})

	// 8. provider ack
	return pr.Ack(), nil
}

// apply serializes deliveries of one transaction with a lock, then writes the
// grant and the ledger row in one database transaction. A ledger conflict
// rolls the grant back and surfaces as domain.ErrDuplicateTransaction.
func (p *paymentUC) apply(ctx context.Context, provider string, n *model.PaymentNotification, corr model.Correlation) (*model.Subscription, error) {
	key := paymentLockKey(provider, n.TransactionID)
	token, err := p.locker.TryLock(ctx, key, p.lockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := p.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			p.log.Warn().Err(err).Str("key", key).Msg("payment unlock failed")
		}
	}()

	var sub *model.Subscription
	err = p.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := p.ledger.Find(ctx, tx, provider, n.TransactionID); err == nil {
			return domain.ErrDuplicateTransaction
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		s, err := p.ents.Extend(ctx, tx, corr.UserID, corr.Tier, corr.Months, p.clock(), "payment:"+provider)
		if err != nil {
			return err
		}
		if err := p.ledger.Insert(ctx, tx, &model.ProcessedPayment{
			Provider:       provider,
			TransactionID:  n.TransactionID,
			UserID:         corr.UserID,
			Tier:           corr.Tier,
			Months:         corr.Months,
			Amount:         n.Amount,
			Currency:       n.Currency,
			SubscriptionID: s.ID,
			ProcessedAt:    p.clock(),
		}); err != nil {
			return err
		}
		sub = s
		return nil
	})
	return sub, err
}

// paymentLockKey scopes a lock to one provider transaction.
func paymentLockKey(provider, transactionID string) string {
	return fmt.Sprintf("payment:lock:%s:%s", provider, transactionID)
}

// checkAmount only reports: the money has already moved.
func (p *paymentUC) checkAmount(log zerolog.Logger, provider string, corr model.Correlation, n *model.PaymentNotification) {
	price, ok := model.Price(corr.Tier, corr.Months)
	if ok && float64(price) == n.Amount && (n.Currency == "" || n.Currency == model.Currency) {
		return
	}
	metrics.IncPaymentAmountMismatch(provider)
	log.Warn().
		Float64("amount", n.Amount).
		Str("currency", n.Currency).
		Int64("catalogue_price", price).
		Bool("catalogued", ok).
		Msg("payment amount differs from catalogue")
}
