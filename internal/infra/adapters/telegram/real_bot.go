package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"community-subscription-bot/internal/application"
	"community-subscription-bot/internal/config"
	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/ports/adapter"
	"community-subscription-bot/internal/infra/i18n"
	"community-subscription-bot/internal/infra/logging"
	"community-subscription-bot/internal/infra/metrics"
	red "community-subscription-bot/internal/infra/redis"
)

var _ adapter.Messenger = (*RealTelegramBotAdapter)(nil)

// botAPI is the part of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(c tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetUpdatesChan(c tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// RealTelegramBotAdapter uses tgbotapi to poll updates and delegates to BotFacade.
// It is also the Messenger the core uses for invites, member lookups and bans.
type RealTelegramBotAdapter struct {
	bot         botAPI
	cfg         *config.BotConfig
	community   *config.CommunityConfig
	facade      *application.BotFacade
	rateLimiter *red.RateLimiter
	translator  *i18n.Translator
	log         *zerolog.Logger

	limiter       *rate.Limiter
	callTimeout   time.Duration
	adminIDsMap   map[int64]struct{}
	updateWorkers int
	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(
	cfg *config.BotConfig,
	community *config.CommunityConfig,
	rateLimiter *red.RateLimiter,
	translator *i18n.Translator,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if cfg == nil || community == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newAdapter(bot, cfg, community, rateLimiter, translator, logger)
}

func newAdapter(
	bot botAPI,
	cfg *config.BotConfig,
	community *config.CommunityConfig,
	rateLimiter *red.RateLimiter,
	translator *i18n.Translator,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if translator == nil {
		return nil, errors.New("translator is nil")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 25
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	adminMap := map[int64]struct{}{}
	for _, id := range cfg.AdminIDs {
		adminMap[id] = struct{}{}
	}

	l := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		community:     community,
		rateLimiter:   rateLimiter,
		translator:    translator,
		log:           &l,
		limiter:       rate.NewLimiter(rate.Limit(perSec), int(perSec)+1),
		callTimeout:   timeout,
		adminIDsMap:   adminMap,
		updateWorkers: workers,
	}, nil
}

// SetFacade attaches the command handlers. The adapter is built first because
// the use cases behind the facade send messages through it.
func (r *RealTelegramBotAdapter) SetFacade(f *application.BotFacade) {
	r.facade = f
}

func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if r.facade == nil {
		return errors.New("bot facade is not set")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up, ok := <-updateChan:
					if !ok {
						return
					}
					r.dispatch(ctx, id, up)
				}
			}
		}(i)
	}

	r.log.Info().Int("workers", r.updateWorkers).Msg("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			updateChan <- up
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealTelegramBotAdapter) dispatch(ctx context.Context, worker int, up tgbotapi.Update) {
	ctx = logging.WithTraceID(ctx, logging.NewTraceID())
	defer func() {
		if rec := recover(); rec != nil {
			logging.With(ctx, r.log).Error().Interface("panic", rec).Int("worker", worker).Msg("update handler panicked")
		}
	}()
	if err := r.handleUpdate(ctx, up); err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Int("worker", worker).Int("update_id", up.UpdateID).Msg("update failed")
	}
}

// SendMessage sends plain text to a private chat.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	msg := tgbotapi.NewMessage(tgID, text)
	return r.call(ctx, "sendMessage", func() error {
		_, err := r.bot.Send(msg)
		return err
	})
}

// SendButtons sends a message with inline buttons.
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, telegramID int64, text string, rows [][]adapter.InlineButton) error {
	msg := tgbotapi.NewMessage(telegramID, text)
	if kb := keyboard(rows); len(kb.InlineKeyboard) > 0 {
		msg.ReplyMarkup = kb
	}
	return r.call(ctx, "sendMessage", func() error {
		_, err := r.bot.Send(msg)
		return err
	})
}

// CreateInviteLink issues a single-member link that expires after ttl.
func (r *RealTelegramBotAdapter) CreateInviteLink(ctx context.Context, chatID int64, ttl time.Duration) (string, error) {
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: chatID},
		ExpireDate:  int(time.Now().Add(ttl).Unix()),
		MemberLimit: 1,
	}
	var link tgbotapi.ChatInviteLink
	err := r.call(ctx, "createChatInviteLink", func() error {
		resp, err := r.bot.Request(cfg)
		if err != nil {
			return err
		}
		return json.Unmarshal(resp.Result, &link)
	})
	if err != nil {
		return "", err
	}
	if link.InviteLink == "" {
		return "", fmt.Errorf("telegram createChatInviteLink: empty link for chat %d", chatID)
	}
	return link.InviteLink, nil
}

func (r *RealTelegramBotAdapter) GetMemberStatus(ctx context.Context, chatID, telegramID int64) (string, error) {
	cfg := tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: telegramID},
	}
	var status string
	err := r.call(ctx, "getChatMember", func() error {
		m, err := r.bot.GetChatMember(cfg)
		if err != nil {
			return err
		}
		status = m.Status
		return nil
	})
	return status, err
}

func (r *RealTelegramBotAdapter) BanMember(ctx context.Context, chatID, telegramID int64) error {
	cfg := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: telegramID},
	}
	return r.call(ctx, "banChatMember", func() error {
		_, err := r.bot.Request(cfg)
		return err
	})
}

// call throttles fn through the outbound limiter and bounds it by callTimeout.
// tgbotapi has no context support, so a timed-out call keeps running in the background.
func (r *RealTelegramBotAdapter) call(ctx context.Context, method string, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	if err := r.limiter.Wait(ctx); err != nil {
		metrics.IncTelegramAPIError(method)
		return fmt.Errorf("%w: telegram %s throttled: %v", domain.ErrTransientIO, method, err)
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		if err != nil {
			metrics.IncTelegramAPIError(method)
			return fmt.Errorf("telegram %s: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		metrics.IncTelegramAPIError(method)
		return fmt.Errorf("%w: telegram %s: %v", domain.ErrTransientIO, method, ctx.Err())
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	if len(msg.NewChatMembers) > 0 {
		return r.handleNewMembers(ctx, msg)
	}
	if !msg.Chat.IsPrivate() || !msg.IsCommand() {
		return nil
	}

	ctx = logging.WithTgID(ctx, msg.From.ID)
	command := msg.Command()
	if !r.allow(ctx, msg.From.ID, "/"+command, 20) {
		return r.SendMessage(ctx, msg.Chat.ID, r.translator.T("rate_limited"))
	}
	metrics.IncTelegramCommand("/" + command)

	handler, ok := r.commandRoutes()[command]
	if !ok {
		return r.SendMessage(ctx, msg.Chat.ID, r.translator.T("unknown_command"))
	}
	return handler(ctx, msg)
}

// handleNewMembers runs every human that joins the community group through the entitlement check.
func (r *RealTelegramBotAdapter) handleNewMembers(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Chat.ID != r.community.GroupID {
		return nil
	}
	var errs []error
	for _, m := range msg.NewChatMembers {
		if m.IsBot {
			continue
		}
		banned, err := r.facade.HandleNewMember(logging.WithTgID(ctx, m.ID), m.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if banned {
			r.log.Info().Int64("tg_id", m.ID).Msg("removed new member without subscription")
		}
	}
	return errors.Join(errs...)
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}

	// Stop telegram spinner when we return
	defer func() {
		_ = r.call(context.WithoutCancel(ctx), "answerCallbackQuery", func() error {
			_, err := r.bot.Request(tgbotapi.NewCallback(query.ID, ""))
			return err
		})
	}()

	var chatID int64
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	} else {
		chatID = query.From.ID
	}
	if chatID == 0 {
		return nil
	}
	ctx = logging.WithTgID(ctx, query.From.ID)

	data := strings.TrimSpace(query.Data)
	if !r.allow(ctx, query.From.ID, "cb:"+data, 30) {
		return r.SendMessage(ctx, chatID, r.translator.T("rate_limited"))
	}

	if fn, ok := r.cbRoutes()[data]; ok {
		return fn(ctx, cbRequest{chatID: chatID, userID: query.From.ID, data: data})
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(data, pr.Prefix) {
			return pr.Fn(ctx, cbRequest{chatID: chatID, userID: query.From.ID, data: data})
		}
	}
	return fmt.Errorf("unknown callback data %q", data)
}

// allow applies the per-user fixed window. A limiter outage lets the request through.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, tgID int64, key string, limit int) bool {
	if r.rateLimiter == nil {
		return true
	}
	ok, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(tgID, key), limit, time.Minute)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
	}
	return ok
}

func (r *RealTelegramBotAdapter) isAdmin(tgID int64) bool {
	_, ok := r.adminIDsMap[tgID]
	return ok
}

// keyboard converts port buttons into an inline keyboard.
// URL buttons open a link, data buttons send a callback, anything else falls back to its label.
func keyboard(rows [][]adapter.InlineButton) tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, out)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: kbRows}
}
