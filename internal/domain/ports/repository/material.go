package repository

import (
	"context"

	"community-subscription-bot/internal/domain/model"
)

// -----------------------------
// Materials
// -----------------------------

type MaterialRepository interface {
	List(ctx context.Context, tx Tx, f model.MaterialFilter) ([]*model.Material, error)
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Material, error)
	Create(ctx context.Context, tx Tx, m *model.Material) error
	Update(ctx context.Context, tx Tx, m *model.Material) error
	Delete(ctx context.Context, tx Tx, id int64) error
}
