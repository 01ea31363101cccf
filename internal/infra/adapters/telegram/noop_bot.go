package telegram

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"community-subscription-bot/internal/domain/ports/adapter"
)

var _ adapter.Messenger = (*NoopBotAdapter)(nil)

// NoopBotAdapter implements adapter.Messenger for local/dev runs without a bot token.
// It logs messages instead of sending them; every member looks like a plain member.
type NoopBotAdapter struct {
	log *zerolog.Logger
	seq atomic.Int64
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	l := logger.With().Str("component", "NoopBot").Logger()
	return &NoopBotAdapter{log: &l}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("tg_id", tgID).Str("text", text).Msg("send message")
	return nil
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, tgID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("tg_id", tgID).Str("text", text).Interface("buttons", rows).Msg("send buttons")
	return nil
}

func (b *NoopBotAdapter) CreateInviteLink(ctx context.Context, chatID int64, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	link := fmt.Sprintf("https://t.me/+noop%d_%d", -chatID, b.seq.Add(1))
	b.log.Info().Int64("chat_id", chatID).Dur("ttl", ttl).Str("link", link).Msg("invite link")
	return link, nil
}

func (b *NoopBotAdapter) GetMemberStatus(_ context.Context, _, _ int64) (string, error) {
	return adapter.MemberMember, nil
}

func (b *NoopBotAdapter) BanMember(_ context.Context, chatID, tgID int64) error {
	b.log.Info().Int64("chat_id", chatID).Int64("tg_id", tgID).Msg("ban member")
	return nil
}

// StartPolling blocks until ctx is done; there is nothing to poll.
func (b *NoopBotAdapter) StartPolling(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (b *NoopBotAdapter) StopPolling() {}
