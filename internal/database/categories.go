package database

import (
	"context"

	"github.com/google/uuid"
)

const categoryColumns = `id, name, sort_order, is_active, created_at, updated_at`

func scanCategory(row interface{ Scan(dest ...any) error }) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (q *Queries) CreateCategory(ctx context.Context, name string, sortOrder int32) (Category, error) {
	const sql = `
		INSERT INTO categories (name, sort_order)
		VALUES ($1, $2)
		RETURNING` + categoryColumns
	return scanCategory(q.db.QueryRow(ctx, sql, name, sortOrder))
}

func (q *Queries) GetCategory(ctx context.Context, id uuid.UUID) (Category, error) {
	const sql = `SELECT` + categoryColumns + ` FROM categories WHERE id = $1`
	return scanCategory(q.db.QueryRow(ctx, sql, id))
}

func (q *Queries) ListCategories(ctx context.Context, onlyActive bool) ([]Category, error) {
	const sql = `
		SELECT` + categoryColumns + `
		FROM categories
		WHERE ($1::bool = false OR is_active = true)
		ORDER BY sort_order, name
	`
	rows, err := q.db.Query(ctx, sql, onlyActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

type UpdateCategoryParams struct {
	ID        uuid.UUID
	Name      string
	SortOrder int32
	IsActive  bool
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	const sql = `
		UPDATE categories
		SET name = $2, sort_order = $3, is_active = $4, updated_at = now()
		WHERE id = $1
		RETURNING` + categoryColumns
	return scanCategory(q.db.QueryRow(ctx, sql, arg.ID, arg.Name, arg.SortOrder, arg.IsActive))
}

// SoftDeleteCategory deactivates instead of deleting so products keep
// their FK.
func (q *Queries) SoftDeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const sql = `
		UPDATE categories SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING id
	`
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, sql, id).Scan(&deleted)
	return deleted, err
}
