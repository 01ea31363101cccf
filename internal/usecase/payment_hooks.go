package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/adapter"
	"community-subscription-bot/internal/infra/i18n"
	"community-subscription-bot/internal/infra/logging"
	"community-subscription-bot/internal/infra/metrics"
)

// PaymentEvent describes a committed grant.
type PaymentEvent struct {
	Provider      string
	TransactionID string
	User          *model.User
	Subscription  *model.Subscription
	Correlation   model.Correlation
	Amount        float64
	Currency      string
}

// PostCommitHook is a side effect of an applied payment. Hooks run after the
// grant is committed, so a failing hook never undoes it.
type PostCommitHook interface {
	Name() string
	Run(ctx context.Context, ev PaymentEvent) error
}

// dispatchHooks runs the hooks in order on a single background task.
func (p *paymentUC) dispatchHooks(ctx context.Context, ev PaymentEvent) {
	if len(p.hooks) == 0 {
		return
	}
	bg := context.WithoutCancel(ctx)
	task := func(_ context.Context) error {
		p.runHooks(bg, ev)
		return nil
	}
	if p.runner == nil {
		go task(bg)
		return
	}
	if err := p.runner.Submit(task); err != nil {
		logging.With(ctx, p.log).Warn().Err(err).Msg("hook queue rejected task, running inline goroutine")
		go task(bg)
	}
}

func (p *paymentUC) runHooks(ctx context.Context, ev PaymentEvent) {
	log := logging.With(ctx, p.log)
	for _, h := range p.hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					metrics.IncPaymentHook(h.Name(), "panic")
					log.Error().Interface("panic", r).Str("hook", h.Name()).Msg("post-commit hook panicked")
				}
			}()
			if err := h.Run(ctx, ev); err != nil {
				metrics.IncPaymentHook(h.Name(), "error")
				log.Error().Err(err).Str("hook", h.Name()).Msg("post-commit hook failed")
				return
			}
			metrics.IncPaymentHook(h.Name(), "ok")
		}()
	}
}

// InviteHook sends single-use invite links for the purchased tier:
// the channel for every tier, the chat for tier 2.
type InviteHook struct {
	bot       adapter.Messenger
	tr        *i18n.Translator
	channelID int64
	chatID    int64
	ttl       time.Duration
	log       *zerolog.Logger
}

func NewInviteHook(bot adapter.Messenger, tr *i18n.Translator, channelID, chatID int64, ttl time.Duration, logger *zerolog.Logger) *InviteHook {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &InviteHook{bot: bot, tr: tr, channelID: channelID, chatID: chatID, ttl: ttl, log: logger}
}

func (h *InviteHook) Name() string { return "invite" }

func (h *InviteHook) Run(ctx context.Context, ev PaymentEvent) error {
	targets := []int64{h.channelID, h.chatID}[:ev.Correlation.Tier.InviteCount()]
	if len(targets) == 0 {
		return nil
	}
	links := make([]string, 0, len(targets))
	for _, chatID := range targets {
		link, err := h.bot.CreateInviteLink(ctx, chatID, h.ttl)
		if err != nil {
			return fmt.Errorf("invite for chat %d: %w", chatID, err)
		}
		links = append(links, link)
	}

	var b strings.Builder
	b.WriteString(h.tr.T("invite_channel", links[0]))
	if len(links) > 1 {
		b.WriteString(h.tr.T("invite_chat", links[1]))
	}
	h.log.Debug().Str("links", logging.Redact(strings.Join(links, ","), false)).Msg("invites issued")
	return h.bot.SendMessage(ctx, ev.User.TelegramID, b.String())
}

// ConfirmationHook tells the buyer the payment went through.
type ConfirmationHook struct {
	bot adapter.TelegramBotAdapter
	tr  *i18n.Translator
}

func NewConfirmationHook(bot adapter.TelegramBotAdapter, tr *i18n.Translator) *ConfirmationHook {
	return &ConfirmationHook{bot: bot, tr: tr}
}

func (h *ConfirmationHook) Name() string { return "confirmation" }

func (h *ConfirmationHook) Run(ctx context.Context, ev PaymentEvent) error {
	return h.bot.SendMessage(ctx, ev.User.TelegramID, h.tr.T("payment_success"))
}
