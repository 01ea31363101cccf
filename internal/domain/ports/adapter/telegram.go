package adapter

import (
	"context"
	"time"
)

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// Chat member statuses as reported by Telegram.
const (
	MemberCreator       = "creator"
	MemberAdministrator = "administrator"
	MemberMember        = "member"
	MemberRestricted    = "restricted"
	MemberLeft          = "left"
	MemberKicked        = "kicked"
)

// IsStaffStatus reports whether a member holds an elevated role in the group.
func IsStaffStatus(status string) bool {
	return status == MemberCreator || status == MemberAdministrator
}

// IsLiveStatus reports whether a member currently occupies a seat in the group.
func IsLiveStatus(status string) bool {
	return status == MemberMember || status == MemberRestricted || IsStaffStatus(status)
}

type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, telegramID int64, text string) error
	SendButtons(ctx context.Context, telegramID int64, text string, rows [][]InlineButton) error
}

// GroupAdmin covers the group-management calls the core needs.
// All of them are remote and may fail transiently.
type GroupAdmin interface {
	// CreateInviteLink issues a single-use link that expires after ttl.
	CreateInviteLink(ctx context.Context, chatID int64, ttl time.Duration) (string, error)
	GetMemberStatus(ctx context.Context, chatID, telegramID int64) (string, error)
	BanMember(ctx context.Context, chatID, telegramID int64) error
}

// Messenger is the full chat collaborator.
type Messenger interface {
	TelegramBotAdapter
	GroupAdmin
}
