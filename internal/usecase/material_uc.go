package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/repository"
	"community-subscription-bot/internal/infra/logging"
)

// Compile-time check
var _ MaterialUseCase = (*materialUC)(nil)

const maxMaterialPage = 200

type MaterialUseCase interface {
	List(ctx context.Context, f model.MaterialFilter) ([]*model.Material, error)
	Get(ctx context.Context, id int64) (*model.Material, error)
	Create(ctx context.Context, m *model.Material) (*model.Material, error)
	Update(ctx context.Context, m *model.Material) (*model.Material, error)
	Delete(ctx context.Context, id int64) error
}

type materialUC struct {
	repo repository.MaterialRepository
	log  *zerolog.Logger
}

func NewMaterialUseCase(repo repository.MaterialRepository, logger *zerolog.Logger) *materialUC {
	l := logger.With().Str("component", "MaterialUC").Logger()
	return &materialUC{repo: repo, log: &l}
}

func (u *materialUC) List(ctx context.Context, f model.MaterialFilter) ([]*model.Material, error) {
	defer logging.TraceDuration(u.log, "MaterialUC.List")()
	f.Search = strings.TrimSpace(f.Search)
	if f.Sort != "" {
		if _, ok := model.MaterialSortFields[f.Sort]; !ok {
			return nil, domain.ErrInvalidArgument
		}
	}
	if f.Limit <= 0 || f.Limit > maxMaterialPage {
		f.Limit = maxMaterialPage
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return u.repo.List(ctx, repository.NoTX, f)
}

func (u *materialUC) Get(ctx context.Context, id int64) (*model.Material, error) {
	defer logging.TraceDuration(u.log, "MaterialUC.Get")()
	if id <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return u.repo.FindByID(ctx, repository.NoTX, id)
}

func (u *materialUC) Create(ctx context.Context, m *model.Material) (*model.Material, error) {
	defer logging.TraceDuration(u.log, "MaterialUC.Create")()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := u.repo.Create(ctx, repository.NoTX, m); err != nil {
		return nil, err
	}
	logging.With(ctx, u.log).Info().Int64("material_id", m.ID).Msg("material created")
	return m, nil
}

func (u *materialUC) Update(ctx context.Context, m *model.Material) (*model.Material, error) {
	defer logging.TraceDuration(u.log, "MaterialUC.Update")()
	if m == nil || m.ID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := u.repo.Update(ctx, repository.NoTX, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (u *materialUC) Delete(ctx context.Context, id int64) error {
	defer logging.TraceDuration(u.log, "MaterialUC.Delete")()
	if id <= 0 {
		return domain.ErrInvalidArgument
	}
	if err := u.repo.Delete(ctx, repository.NoTX, id); err != nil {
		return err
	}
	logging.With(ctx, u.log).Info().Int64("material_id", id).Msg("material deleted")
	return nil
}
