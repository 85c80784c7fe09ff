package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `
	id, category_id, name, description, price, sizes, modifiers, station,
	image_url, is_available, created_at, updated_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price,
		&p.Sizes, &p.Modifiers, &p.Station, &p.ImageURL, &p.IsAvailable,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

type CreateProductParams struct {
	CategoryID  uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Sizes       []ProductOption
	Modifiers   []ProductOption
	Station     pgtype.Text
	ImageURL    pgtype.Text
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	const sql = `
		INSERT INTO products (category_id, name, description, price, sizes, modifiers, station, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING` + productColumns
	sizes := arg.Sizes
	if sizes == nil {
		sizes = []ProductOption{}
	}
	mods := arg.Modifiers
	if mods == nil {
		mods = []ProductOption{}
	}
	return scanProduct(q.db.QueryRow(ctx, sql,
		arg.CategoryID, arg.Name, arg.Description, arg.Price,
		sizes, mods, arg.Station, arg.ImageURL))
}

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	const sql = `SELECT` + productColumns + ` FROM products WHERE id = $1`
	return scanProduct(q.db.QueryRow(ctx, sql, id))
}

// GetProductForOrder only returns available products; used by the order
// lifecycle when pricing line items.
func (q *Queries) GetProductForOrder(ctx context.Context, id uuid.UUID) (Product, error) {
	const sql = `SELECT` + productColumns + ` FROM products WHERE id = $1 AND is_available = true`
	return scanProduct(q.db.QueryRow(ctx, sql, id))
}

type ListProductsParams struct {
	CategoryID    pgtype.UUID
	OnlyAvailable bool
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	const sql = `
		SELECT` + productColumns + `
		FROM products
		WHERE ($1::uuid IS NULL OR category_id = $1)
		  AND ($2::bool = false OR is_available = true)
		ORDER BY name
	`
	rows, err := q.db.Query(ctx, sql, arg.CategoryID, arg.OnlyAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type UpdateProductParams struct {
	ID          uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Sizes       []ProductOption
	Modifiers   []ProductOption
	Station     pgtype.Text
	ImageURL    pgtype.Text
	IsAvailable bool
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	const sql = `
		UPDATE products SET
			category_id = $2, name = $3, description = $4, price = $5,
			sizes = $6, modifiers = $7, station = $8, image_url = $9,
			is_available = $10, updated_at = now()
		WHERE id = $1
		RETURNING` + productColumns
	sizes := arg.Sizes
	if sizes == nil {
		sizes = []ProductOption{}
	}
	mods := arg.Modifiers
	if mods == nil {
		mods = []ProductOption{}
	}
	return scanProduct(q.db.QueryRow(ctx, sql,
		arg.ID, arg.CategoryID, arg.Name, arg.Description, arg.Price,
		sizes, mods, arg.Station, arg.ImageURL, arg.IsAvailable))
}

// SetProductAvailability flips the 86'd flag without touching the rest.
func (q *Queries) SetProductAvailability(ctx context.Context, id uuid.UUID, available bool) (Product, error) {
	const sql = `
		UPDATE products SET is_available = $2, updated_at = now()
		WHERE id = $1
		RETURNING` + productColumns
	return scanProduct(q.db.QueryRow(ctx, sql, id, available))
}

func (q *Queries) DeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const sql = `DELETE FROM products WHERE id = $1 RETURNING id`
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, sql, id).Scan(&deleted)
	return deleted, err
}
