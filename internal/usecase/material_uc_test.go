//go:build !integration

package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/repository"
	"community-subscription-bot/internal/usecase"
)

func TestMaterialUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("create, update and delete", func(t *testing.T) {
		repo := NewMockMaterialRepo()
		uc := usecase.NewMaterialUseCase(repo, newTestLogger())

		m, err := uc.Create(ctx, &model.Material{Title: "Intro", Format: "video", Category: "basics"})
		require.NoError(t, err)
		require.NotZero(t, m.ID)

		m.Title = "Intro, part 1"
		_, err = uc.Update(ctx, m)
		require.NoError(t, err)

		got, err := uc.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "Intro, part 1", got.Title)

		require.NoError(t, uc.Delete(ctx, m.ID))
		_, err = uc.Get(ctx, m.ID)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("title is required", func(t *testing.T) {
		uc := usecase.NewMaterialUseCase(NewMockMaterialRepo(), newTestLogger())

		_, err := uc.Create(ctx, &model.Material{Title: "  "})

		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("unknown sort column is rejected", func(t *testing.T) {
		uc := usecase.NewMaterialUseCase(NewMockMaterialRepo(), newTestLogger())

		_, err := uc.List(ctx, model.MaterialFilter{Sort: "password"})

		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("list normalises the filter", func(t *testing.T) {
		repo := NewMockMaterialRepo()
		var seen model.MaterialFilter
		repo.ListFunc = func(ctx context.Context, tx repository.Tx, f model.MaterialFilter) ([]*model.Material, error) {
			seen = f
			return nil, nil
		}
		uc := usecase.NewMaterialUseCase(repo, newTestLogger())

		_, err := uc.List(ctx, model.MaterialFilter{Search: "  yoga ", Limit: 10000, Offset: -5, Sort: "title"})

		require.NoError(t, err)
		assert.Equal(t, "yoga", seen.Search)
		assert.Equal(t, 200, seen.Limit)
		assert.Zero(t, seen.Offset)
		assert.Equal(t, "title", seen.Sort)
	})

	t.Run("delete of a missing material", func(t *testing.T) {
		uc := usecase.NewMaterialUseCase(NewMockMaterialRepo(), newTestLogger())

		err := uc.Delete(ctx, 42)

		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}
