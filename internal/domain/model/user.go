package model

import (
	"strings"
	"time"

	"community-subscription-bot/internal/domain"

	"github.com/google/uuid"
)

// User is a Telegram identity known to the community.
// TelegramID is unique; ID is assigned at first contact and never reused.
type User struct {
	ID           string
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	RegisteredAt time.Time
	LastActiveAt time.Time
}

func NewUser(id string, tgID int64, username, firstName, lastName string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:           id,
		TelegramID:   tgID,
		Username:     strings.TrimPrefix(strings.TrimSpace(username), "@"),
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		RegisteredAt: now,
		LastActiveAt: now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
func (u *User) Touch()       { u.LastActiveAt = time.Now() }

// DisplayName prefers the first name, then the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}
