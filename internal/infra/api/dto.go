package api

import (
	"time"

	"community-subscription-bot/internal/domain/model"
)

type userDTO struct {
	ID           string    `json:"id"`
	TelegramID   int64     `json:"telegram_id"`
	Username     string    `json:"username,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

func toUserDTO(u *model.User) userDTO {
	return userDTO{
		ID:           u.ID,
		TelegramID:   u.TelegramID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		RegisteredAt: u.RegisteredAt,
	}
}

type subscriptionDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Level     int       `json:"subscription_level"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

func toSubscriptionDTO(s *model.Subscription) subscriptionDTO {
	return subscriptionDTO{
		ID:        s.ID,
		UserID:    s.UserID,
		Level:     int(s.Tier),
		StartDate: s.StartDate,
		EndDate:   s.EndDate,
	}
}

type statusDTO struct {
	Subscription  subscriptionDTO `json:"subscription"`
	Active        bool            `json:"active"`
	DaysRemaining int             `json:"days_remaining"`
}

type statsDTO struct {
	Users        int            `json:"users"`
	ActiveByTier map[string]int `json:"active_by_level"`
}
