//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
)

func TestNotificationLogRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewNotificationLogRepo(testPool)
	userRepo := NewUserRepo(testPool)
	subRepo := NewSubscriptionRepo(testPool)

	user, _ := model.NewUser("", 111, "notif_user", "", "")
	sub, _ := model.NewSubscription(user.ID, model.TierChannel, time.Now(), time.Now().Add(48*time.Hour), "test")
	setup := func(t *testing.T) {
		cleanup(t)
		require.NoError(t, userRepo.Save(ctx, nil, user))
		require.NoError(t, subRepo.Save(ctx, nil, sub))
	}

	t.Run("should save and check for notification existence", func(t *testing.T) {
		setup(t)

		exists, err := repo.Exists(ctx, nil, sub.ID, "expiry", 3)
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, repo.Save(ctx, nil, sub.ID, user.ID, "expiry", 3))

		exists, err = repo.Exists(ctx, nil, sub.ID, "expiry", 3)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.Exists(ctx, nil, sub.ID, "expiry", 7)
		require.NoError(t, err)
		assert.False(t, exists, "found notification for wrong threshold")
	})

	t.Run("duplicate notification reports ErrAlreadyExists", func(t *testing.T) {
		setup(t)
		require.NoError(t, repo.Save(ctx, nil, sub.ID, user.ID, "expiry", 1))
		assert.ErrorIs(t, repo.Save(ctx, nil, sub.ID, user.ID, "expiry", 1), domain.ErrAlreadyExists)
	})
}
