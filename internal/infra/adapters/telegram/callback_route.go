package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/adapter"
	"community-subscription-bot/internal/infra/logging"
	"community-subscription-bot/internal/infra/metrics"
)

const (
	cbLevel1     = "level_1"
	cbLevel2     = "level_2"
	cbOpenApp    = "open_app"
	cbAdminPanel = "admin_panel"
	cbBack       = "back"

	cbDurationPrefix = "duration_" // duration_{months}_{tier}
	cbPayPrefix      = "pay_"      // pay_{tier}_{months}
)

type cbRequest struct {
	chatID int64
	userID int64
	data   string
}

type cbHandler func(ctx context.Context, req cbRequest) error

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

// Exact-match callbacks
func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		cbLevel1:     r.levelCBRoute(model.TierChannel),
		cbLevel2:     r.levelCBRoute(model.TierChannelChat),
		cbOpenApp:    r.openAppCBRoute,
		cbAdminPanel: r.adminPanelCBRoute,
		cbBack:       r.backCBRoute,
	}
}

// Prefix-match callbacks
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: cbDurationPrefix, Fn: r.durationPrefixCBRoute},
		{Prefix: cbPayPrefix, Fn: r.payPrefixCBRoute},
	}
}

// levelCBRoute lists the durations of a tier with their prices.
func (r *RealTelegramBotAdapter) levelCBRoute(tier model.Tier) cbHandler {
	return func(ctx context.Context, req cbRequest) error {
		durations := model.Durations(tier)
		rows := make([][]adapter.InlineButton, 0, len(durations)+1)
		for _, m := range durations {
			price, _ := model.Price(tier, m)
			rows = append(rows, []adapter.InlineButton{{
				Text: r.translator.T(fmt.Sprintf("duration_%d", m), price),
				Data: fmt.Sprintf("%s%d_%d", cbDurationPrefix, m, tier),
			}})
		}
		rows = append(rows, []adapter.InlineButton{{Text: r.translator.T("btn_back"), Data: cbBack}})
		return r.SendButtons(ctx, req.chatID, r.translator.T(fmt.Sprintf("level_%d_description", tier)), rows)
	}
}

func (r *RealTelegramBotAdapter) durationPrefixCBRoute(ctx context.Context, req cbRequest) error {
	months, tier, err := parsePair(strings.TrimPrefix(req.data, cbDurationPrefix))
	if err != nil {
		return err
	}
	if _, ok := model.Price(model.Tier(tier), months); !ok {
		return fmt.Errorf("no price for tier %d, %d months", tier, months)
	}
	text := r.translator.T("duration_selected", strconv.Itoa(tier), strconv.Itoa(months))
	rows := [][]adapter.InlineButton{
		{{Text: r.translator.T("btn_pay"), Data: fmt.Sprintf("%s%d_%d", cbPayPrefix, tier, months)}},
		{{Text: r.translator.T("btn_back"), Data: fmt.Sprintf("level_%d", tier)}},
	}
	return r.SendButtons(ctx, req.chatID, text, rows)
}

// payPrefixCBRoute creates the checkout and answers with a URL button.
func (r *RealTelegramBotAdapter) payPrefixCBRoute(ctx context.Context, req cbRequest) error {
	tier, months, err := parsePair(strings.TrimPrefix(req.data, cbPayPrefix))
	if err != nil {
		return err
	}
	link, err := r.facade.HandleCheckout(ctx, req.userID, model.Tier(tier), months)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Int("tier", tier).Int("months", months).Msg("checkout failed")
		return r.SendMessage(ctx, req.chatID, r.translator.T("payment_error"))
	}
	rows := [][]adapter.InlineButton{{{Text: r.translator.T("btn_pay"), URL: link}}}
	return r.SendButtons(ctx, req.chatID, r.translator.T("payment_prompt"), rows)
}

// openAppCBRoute hands out the mini-app link to subscribers only.
func (r *RealTelegramBotAdapter) openAppCBRoute(ctx context.Context, req cbRequest) error {
	active, err := r.facade.HasActiveSubscription(ctx, req.userID)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("open app: status lookup")
		return r.SendMessage(ctx, req.chatID, r.translator.T("user_lookup_error"))
	}
	if !active || r.community.MiniAppURL == "" {
		return r.SendMessage(ctx, req.chatID, r.translator.T("no_active_subscription"))
	}
	rows := [][]adapter.InlineButton{{{Text: r.translator.T("btn_open_app"), URL: r.community.MiniAppURL}}}
	return r.SendButtons(ctx, req.chatID, r.translator.T("open_app_prompt"), rows)
}

func (r *RealTelegramBotAdapter) adminPanelCBRoute(ctx context.Context, req cbRequest) error {
	if !r.isAdmin(req.userID) {
		metrics.IncAdminRequest("bot:admin_panel", "unauthorized")
		return r.SendMessage(ctx, req.chatID, r.translator.T("admin_only"))
	}
	metrics.IncAdminRequest("bot:admin_panel", "authorized")
	rows := [][]adapter.InlineButton{{{Text: r.translator.T("btn_open_admin"), URL: r.community.AdminAppURL}}}
	return r.SendButtons(ctx, req.chatID, r.translator.T("open_admin_prompt"), rows)
}

func (r *RealTelegramBotAdapter) backCBRoute(ctx context.Context, req cbRequest) error {
	return r.SendButtons(ctx, req.chatID, r.translator.T("welcome"), r.mainMenu(req.userID))
}

// parsePair splits "a_b" into two positive integers.
func parsePair(s string) (int, int, error) {
	left, right, ok := strings.Cut(s, "_")
	if !ok {
		return 0, 0, errors.New("malformed callback data")
	}
	a, err := strconv.Atoi(left)
	if err != nil || a <= 0 {
		return 0, 0, fmt.Errorf("malformed callback data %q", s)
	}
	b, err := strconv.Atoi(right)
	if err != nil || b <= 0 {
		return 0, 0, fmt.Errorf("malformed callback data %q", s)
	}
	return a, b, nil
}
