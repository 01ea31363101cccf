package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"community-subscription-bot/internal/domain/ports/adapter"
	"community-subscription-bot/internal/infra/logging"
	"community-subscription-bot/internal/usecase"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":  r.handleStartCommand,
		"status": r.handleStatusCommand,
		"help":   r.handleHelpCommand,
	}
}

// handleStartCommand registers the user and shows the main menu.
func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	from := message.From
	text, err := r.facade.HandleStart(ctx, usecase.TelegramProfile{
		TelegramID: from.ID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
	})
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("start: register user")
		return r.SendMessage(ctx, message.Chat.ID, r.translator.T("user_lookup_error"))
	}
	return r.SendButtons(ctx, message.Chat.ID, text, r.mainMenu(from.ID))
}

func (r *RealTelegramBotAdapter) handleStatusCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleStatus(ctx, message.From.ID)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("status")
		text = r.translator.T("generic_error")
	}
	return r.SendMessage(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.SendMessage(ctx, message.Chat.ID, r.translator.T("help"))
}

// mainMenu is the welcome keyboard. The admin row is only built for allow-listed ids.
func (r *RealTelegramBotAdapter) mainMenu(tgID int64) [][]adapter.InlineButton {
	rows := [][]adapter.InlineButton{
		{{Text: r.translator.T("btn_level_1"), Data: cbLevel1}},
		{{Text: r.translator.T("btn_level_2"), Data: cbLevel2}},
	}
	if r.community.AboutURL != "" {
		rows = append(rows, []adapter.InlineButton{{Text: r.translator.T("btn_community"), URL: r.community.AboutURL}})
	}
	rows = append(rows, []adapter.InlineButton{{Text: r.translator.T("btn_open_app"), Data: cbOpenApp}})
	if r.isAdmin(tgID) {
		rows = append(rows, []adapter.InlineButton{{Text: r.translator.T("btn_admin_panel"), Data: cbAdminPanel}})
	}
	return rows
}
