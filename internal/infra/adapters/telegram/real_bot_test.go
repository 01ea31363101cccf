//go:build !integration

package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-subscription-bot/internal/application"
	"community-subscription-bot/internal/config"
	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/adapter"
	"community-subscription-bot/internal/infra/i18n"
	"community-subscription-bot/internal/usecase"
)

const (
	testAdminID = int64(1)
	testUserID  = int64(42)
	testGroupID = int64(-1003)
)

// --- fakes ---

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	status   string
	link     string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	if _, ok := c.(tgbotapi.CreateChatInviteLinkConfig); ok {
		raw, _ := json.Marshal(tgbotapi.ChatInviteLink{InviteLink: f.link})
		return &tgbotapi.APIResponse{Ok: true, Result: raw}, nil
	}
	return &tgbotapi.APIResponse{Ok: true, Result: json.RawMessage("true")}, nil
}

func (f *fakeAPI) GetChatMember(c tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	if c.ChatConfigWithUser.UserID == 0 {
		return tgbotapi.ChatMember{}, errors.New("Bad Request: user not found")
	}
	return tgbotapi.ChatMember{Status: f.status}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type stubUsers struct{ users map[int64]*model.User }

func (s *stubUsers) RegisterOrFetch(_ context.Context, p usecase.TelegramProfile) (*model.User, error) {
	u := &model.User{ID: "u-new", TelegramID: p.TelegramID, Username: p.Username}
	s.users[p.TelegramID] = u
	return u, nil
}

func (s *stubUsers) GetByTelegramID(_ context.Context, tgID int64) (*model.User, error) {
	if u, ok := s.users[tgID]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

type stubEnts struct{ active bool }

func (s *stubEnts) Status(_ context.Context, _ string, now time.Time) (*usecase.SubscriptionStatus, error) {
	return &usecase.SubscriptionStatus{
		Subscription: &model.Subscription{Tier: model.TierChannel, EndDate: now.AddDate(0, 1, 0)},
		Active:       s.active,
	}, nil
}

type stubPay struct {
	tier   model.Tier
	months int
	err    error
}

func (s *stubPay) Checkout(_ context.Context, _, _ string, tier model.Tier, months int, _ string) (string, error) {
	s.tier, s.months = tier, months
	if s.err != nil {
		return "", s.err
	}
	return "https://pay.example.com/checkout", nil
}

type stubMembers struct{ enforced []int64 }

func (s *stubMembers) EnforceMember(_ context.Context, tgID int64) (bool, error) {
	s.enforced = append(s.enforced, tgID)
	return true, nil
}

type botFixture struct {
	api     *fakeAPI
	ents    *stubEnts
	pay     *stubPay
	members *stubMembers
	tr      *i18n.Translator
	bot     *RealTelegramBotAdapter
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "ru")
	require.NoError(t, err)

	f := &botFixture{
		api:     &fakeAPI{status: adapter.MemberMember, link: "https://t.me/+abc"},
		ents:    &stubEnts{},
		pay:     &stubPay{},
		members: &stubMembers{},
		tr:      tr,
	}
	users := &stubUsers{users: map[int64]*model.User{
		testUserID:  {ID: "u-42", TelegramID: testUserID},
		testAdminID: {ID: "u-1", TelegramID: testAdminID},
	}}
	facade := application.NewBotFacade(users, f.ents, f.pay, f.members, tr, "noop", "receipt@example.com")
	logger := zerolog.New(io.Discard)

	f.bot, err = newAdapter(f.api,
		&config.BotConfig{AdminIDs: []int64{testAdminID}, RatePerSec: 1000, CallTimeout: time.Second},
		&config.CommunityConfig{GroupID: testGroupID, AboutURL: "https://t.me/community", MiniAppURL: "https://app.example.com", AdminAppURL: "https://app.example.com/admin"},
		nil, tr, &logger)
	require.NoError(t, err)
	f.bot.SetFacade(facade)
	return f
}

func commandUpdate(from int64, cmd string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: from, UserName: "neo"},
		Chat:     &tgbotapi.Chat{ID: from, Type: "private"},
		Text:     cmd,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func callbackUpdate(from int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "q1",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: from, Type: "private"}},
		Data:    data,
	}}
}

func markup(t *testing.T, m tgbotapi.MessageConfig) [][]tgbotapi.InlineKeyboardButton {
	t.Helper()
	kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok, "expected an inline keyboard")
	return kb.InlineKeyboard
}

func callbackData(rows [][]tgbotapi.InlineKeyboardButton) []string {
	var out []string
	for _, row := range rows {
		for _, b := range row {
			if b.CallbackData != nil {
				out = append(out, *b.CallbackData)
			}
		}
	}
	return out
}

// --- tests ---

func TestKeyboard(t *testing.T) {
	kb := keyboard([][]adapter.InlineButton{
		{{Text: "go", URL: "https://example.com"}},
		{},
		{{Text: "cb", Data: "level_1"}, {Text: " "}},
	})

	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "https://example.com", *kb.InlineKeyboard[0][0].URL)
	assert.Equal(t, "level_1", *kb.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, "•", kb.InlineKeyboard[1][1].Text)
}

func TestParsePair(t *testing.T) {
	a, b, err := parsePair("3_2")
	require.NoError(t, err)
	assert.Equal(t, 3, a)
	assert.Equal(t, 2, b)

	for _, bad := range []string{"", "3", "x_2", "3_", "0_1", "-1_2"} {
		_, _, err := parsePair(bad)
		assert.Error(t, err, bad)
	}
}

func TestStartCommand(t *testing.T) {
	t.Run("regular user gets no admin button", func(t *testing.T) {
		f := newBotFixture(t)

		require.NoError(t, f.bot.handleUpdate(context.Background(), commandUpdate(testUserID, "/start")))

		msg := f.api.last(t)
		assert.Equal(t, f.tr.T("welcome"), msg.Text)
		data := callbackData(markup(t, msg))
		assert.Equal(t, []string{cbLevel1, cbLevel2, cbOpenApp}, data)
	})

	t.Run("admin gets the admin panel", func(t *testing.T) {
		f := newBotFixture(t)

		require.NoError(t, f.bot.handleUpdate(context.Background(), commandUpdate(testAdminID, "/start")))

		assert.Contains(t, callbackData(markup(t, f.api.last(t))), cbAdminPanel)
	})
}

func TestUnknownCommand(t *testing.T) {
	f := newBotFixture(t)

	require.NoError(t, f.bot.handleUpdate(context.Background(), commandUpdate(testUserID, "/plans")))

	assert.Equal(t, f.tr.T("unknown_command"), f.api.last(t).Text)
}

func TestStatusCommand(t *testing.T) {
	f := newBotFixture(t)

	require.NoError(t, f.bot.handleUpdate(context.Background(), commandUpdate(testUserID, "/status")))

	assert.Equal(t, f.tr.T("no_active_subscription"), f.api.last(t).Text)
}

func TestLevelCallback(t *testing.T) {
	f := newBotFixture(t)

	require.NoError(t, f.bot.handleUpdate(context.Background(), callbackUpdate(testUserID, "level_2")))

	msg := f.api.last(t)
	assert.Equal(t, f.tr.T("level_2_description"), msg.Text)
	rows := markup(t, msg)
	assert.Equal(t, []string{"duration_1_2", "duration_3_2", "duration_6_2", "duration_12_2", cbBack}, callbackData(rows))
	assert.Equal(t, f.tr.T("duration_1", 4990), rows[0][0].Text)

	// spinner answered
	_, answered := f.api.requests[len(f.api.requests)-1].(tgbotapi.CallbackConfig)
	assert.True(t, answered)
}

func TestDurationCallback(t *testing.T) {
	f := newBotFixture(t)

	require.NoError(t, f.bot.handleUpdate(context.Background(), callbackUpdate(testUserID, "duration_6_1")))

	msg := f.api.last(t)
	assert.Equal(t, f.tr.T("duration_selected", "1", "6"), msg.Text)
	assert.Equal(t, []string{"pay_1_6", "level_1"}, callbackData(markup(t, msg)))

	assert.Error(t, f.bot.handleUpdate(context.Background(), callbackUpdate(testUserID, "duration_2_1")))
}

func TestPayCallback(t *testing.T) {
	t.Run("sends the checkout link", func(t *testing.T) {
		f := newBotFixture(t)

		require.NoError(t, f.bot.handleUpdate(context.Background(), callbackUpdate(testUserID, "pay_2_3")))

		assert.Equal(t, model.TierChannelChat, f.pay.tier)
		assert.Equal(t, 3, f.pay.months)
		msg := f.api.last(t)
		assert.Equal(t, f.tr.T("payment_prompt"), msg.Text)
		assert.Equal(t, "https://pay.example.com/checkout", *markup(t, msg)[0][0].URL)
	})

	t.Run("provider failure", func(t *testing.T) {
		f := newBotFixture(t)
		f.pay.err = domain.ErrTransientIO

		require.NoError(t, f.bot.handleUpdate(context.Background(), callbackUpdate(testUserID, "pay_1_1")))

		assert.Equal(t, f.tr.T("payment_error"), f.api.last(t).Text)
	})
}

func TestOpenAppCallback(t *testing.T) {
	t.Run("inactive", func(t *testing.T) {
		f := newBotFixture(t)

		require.NoError(t, f.bot.handleUpdate(context.Background(), callbackUpdate(testUserID, cbOpenApp)))

		assert.Equal(t, f.tr.T("no_active_subscription"), f.api.last(t).Text)
	})

	t.Run("active", func(t *testing.T) {
		f := newBotFixture(t)
		f.ents.active = true

		require.NoError(t, f.bot.handleUpdate(context.Background(), callbackUpdate(testUserID, cbOpenApp)))

		assert.Equal(t, "https://app.example.com", *markup(t, f.api.last(t))[0][0].URL)
	})
}

func TestAdminPanelCallback(t *testing.T) {
	f := newBotFixture(t)

	require.NoError(t, f.bot.handleUpdate(context.Background(), callbackUpdate(testUserID, cbAdminPanel)))
	assert.Equal(t, f.tr.T("admin_only"), f.api.last(t).Text)

	require.NoError(t, f.bot.handleUpdate(context.Background(), callbackUpdate(testAdminID, cbAdminPanel)))
	assert.Equal(t, "https://app.example.com/admin", *markup(t, f.api.last(t))[0][0].URL)
}

func TestNewMembers(t *testing.T) {
	f := newBotFixture(t)
	up := tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: testGroupID, Type: "supergroup"},
		NewChatMembers: []tgbotapi.User{
			{ID: 7},
			{ID: 8, IsBot: true},
		},
	}}

	require.NoError(t, f.bot.handleUpdate(context.Background(), up))
	assert.Equal(t, []int64{7}, f.members.enforced)

	// joins elsewhere are ignored
	up.Message.Chat = &tgbotapi.Chat{ID: -999, Type: "supergroup"}
	require.NoError(t, f.bot.handleUpdate(context.Background(), up))
	assert.Equal(t, []int64{7}, f.members.enforced)
}

func TestMessengerCalls(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	link, err := f.bot.CreateInviteLink(ctx, -1001, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/+abc", link)
	cfg, ok := f.api.requests[0].(tgbotapi.CreateChatInviteLinkConfig)
	require.True(t, ok)
	assert.Equal(t, 1, cfg.MemberLimit)
	assert.Equal(t, int64(-1001), cfg.ChatConfig.ChatID)
	assert.InDelta(t, time.Now().Add(time.Hour).Unix(), cfg.ExpireDate, 5)

	status, err := f.bot.GetMemberStatus(ctx, testGroupID, testUserID)
	require.NoError(t, err)
	assert.Equal(t, adapter.MemberMember, status)

	_, err = f.bot.GetMemberStatus(ctx, testGroupID, 0)
	assert.Error(t, err)

	require.NoError(t, f.bot.BanMember(ctx, testGroupID, testUserID))
	ban, ok := f.api.requests[len(f.api.requests)-1].(tgbotapi.BanChatMemberConfig)
	require.True(t, ok)
	assert.Equal(t, testUserID, ban.ChatMemberConfig.UserID)
}

func TestNoopBot(t *testing.T) {
	logger := zerolog.New(io.Discard)
	b := NewNoopBotAdapter(&logger)
	ctx := context.Background()

	l1, err := b.CreateInviteLink(ctx, -1001, time.Hour)
	require.NoError(t, err)
	l2, _ := b.CreateInviteLink(ctx, -1001, time.Hour)
	assert.NotEqual(t, l1, l2)

	status, err := b.GetMemberStatus(ctx, -1, 1)
	require.NoError(t, err)
	assert.Equal(t, adapter.MemberMember, status)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, b.SendMessage(cctx, 1, "x"), context.Canceled)
}

func TestStartPollingRequiresFacade(t *testing.T) {
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "ru")
	require.NoError(t, err)
	logger := zerolog.New(io.Discard)
	bot, err := newAdapter(&fakeAPI{}, &config.BotConfig{}, &config.CommunityConfig{}, nil, tr, &logger)
	require.NoError(t, err)

	err = bot.StartPolling(context.Background())
	assert.Error(t, err)
}
