package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/repository"
)

var _ repository.MaterialRepository = (*materialRepo)(nil)

type materialRepo struct{ pool *pgxpool.Pool }

func NewMaterialRepo(pool *pgxpool.Pool) *materialRepo {
	return &materialRepo{pool: pool}
}

const materialColumns = `id, title, description, content, format, category, video_url, created_at, updated_at`

func (r *materialRepo) List(ctx context.Context, tx repository.Tx, f model.MaterialFilter) ([]*model.Material, error) {
	q, args := buildMaterialQuery(f)
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr("materials.list", err)
	}
	defer rows.Close()

	out := []*model.Material{}
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, mapErr("materials.list", rows.Err())
}

// buildMaterialQuery renders the filter into SQL. Sort columns come from
// model.MaterialSortFields only; values always travel as parameters.
func buildMaterialQuery(f model.MaterialFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Format != "" {
		add("format = $%d", f.Format)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}

	var b strings.Builder
	b.WriteString("SELECT " + materialColumns + " FROM materials")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	sort := "id"
	if _, ok := model.MaterialSortFields[f.Sort]; ok {
		sort = f.Sort
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	b.WriteString(" ORDER BY " + sort + " " + dir)
	if sort != "id" {
		b.WriteString(", id ASC")
	}

	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

func (r *materialRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Material, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+materialColumns+` FROM materials WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanMaterial(row)
}

func (r *materialRepo) Create(ctx context.Context, tx repository.Tx, m *model.Material) error {
	const q = `
INSERT INTO materials (title, description, content, format, category, video_url)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id, created_at, updated_at;`
	row, err := pickRow(ctx, r.pool, tx, q, m.Title, m.Description, m.Content, m.Format, m.Category, m.VideoURL)
	if err != nil {
		return err
	}
	return mapErr("materials.create", row.Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt))
}

func (r *materialRepo) Update(ctx context.Context, tx repository.Tx, m *model.Material) error {
	const q = `
UPDATE materials SET title=$2, description=$3, content=$4, format=$5, category=$6, video_url=$7, updated_at=now()
 WHERE id=$1
RETURNING updated_at;`
	row, err := pickRow(ctx, r.pool, tx, q, m.ID, m.Title, m.Description, m.Content, m.Format, m.Category, m.VideoURL)
	if err != nil {
		return err
	}
	return mapErr("materials.update", row.Scan(&m.UpdatedAt))
}

func (r *materialRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM materials WHERE id=$1;`, id)
	if err != nil {
		return mapErr("materials.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanMaterial(row rowScanner) (*model.Material, error) {
	var m model.Material
	if err := row.Scan(&m.ID, &m.Title, &m.Description, &m.Content, &m.Format, &m.Category, &m.VideoURL, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, mapErr("materials.scan", err)
	}
	return &m, nil
}
