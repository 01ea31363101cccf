//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/repository"
	"community-subscription-bot/internal/usecase"
)

func TestStatsUseCase_Totals(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)

	users := NewMockUserRepo()
	subs := NewMockSubscriptionRepo()
	for i, tc := range []struct {
		tier model.Tier
		end  time.Time
	}{
		{model.TierChannel, now.AddDate(0, 1, 0)},
		{model.TierChannel, now.AddDate(0, 0, -1)},
		{model.TierChannelChat, now.AddDate(0, 0, 3)},
	} {
		u := users.seedUser(int64(i + 1))
		s, err := model.NewSubscription(u.ID, tc.tier, now.AddDate(0, -1, 0), tc.end, "api")
		require.NoError(t, err)
		require.NoError(t, subs.Save(ctx, repository.NoTX, s))
	}
	users.seedUser(99)

	uc := usecase.NewStatsUseCase(users, subs, newTestLogger())

	got, err := uc.Totals(ctx, now)

	require.NoError(t, err)
	assert.Equal(t, 4, got.Users)
	assert.Equal(t, map[model.Tier]int{model.TierChannel: 1, model.TierChannelChat: 1}, got.ActiveByTier)
}
