package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const customerColumns = `
	id, name, phone, address, telegram_chat_id, notes, last_order_at,
	is_active, created_at, updated_at`

func scanCustomer(row interface{ Scan(dest ...any) error }) (Customer, error) {
	var c Customer
	err := row.Scan(
		&c.ID, &c.Name, &c.Phone, &c.Address, &c.TelegramChatID,
		&c.Notes, &c.LastOrderAt, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

type CreateCustomerParams struct {
	Name           string
	Phone          string
	Address        pgtype.Text
	TelegramChatID pgtype.Int8
	Notes          pgtype.Text
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	const sql = `
		INSERT INTO customers (name, phone, address, telegram_chat_id, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING` + customerColumns
	return scanCustomer(q.db.QueryRow(ctx, sql,
		arg.Name, arg.Phone, arg.Address, arg.TelegramChatID, arg.Notes))
}

func (q *Queries) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	const sql = `SELECT` + customerColumns + ` FROM customers WHERE id = $1`
	return scanCustomer(q.db.QueryRow(ctx, sql, id))
}

func (q *Queries) GetCustomerByTelegramChatID(ctx context.Context, chatID int64) (Customer, error) {
	const sql = `SELECT` + customerColumns + ` FROM customers WHERE telegram_chat_id = $1 AND is_active = true`
	return scanCustomer(q.db.QueryRow(ctx, sql, chatID))
}

type ListCustomersParams struct {
	Search pgtype.Text
	Limit  int32
	Offset int32
}

func (q *Queries) ListCustomers(ctx context.Context, arg ListCustomersParams) ([]Customer, error) {
	const sql = `
		SELECT` + customerColumns + `
		FROM customers
		WHERE is_active = true
		  AND ($1::text IS NULL OR name ILIKE '%' || $1 || '%' OR phone LIKE '%' || $1 || '%')
		ORDER BY name
		LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, sql, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

type UpdateCustomerParams struct {
	ID      uuid.UUID
	Name    string
	Phone   string
	Address pgtype.Text
	Notes   pgtype.Text
}

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	const sql = `
		UPDATE customers
		SET name = $2, phone = $3, address = $4, notes = $5, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING` + customerColumns
	return scanCustomer(q.db.QueryRow(ctx, sql,
		arg.ID, arg.Name, arg.Phone, arg.Address, arg.Notes))
}

func (q *Queries) SoftDeleteCustomer(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const sql = `
		UPDATE customers SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING id
	`
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, sql, id).Scan(&deleted)
	return deleted, err
}

// TouchCustomerLastOrder bumps last_order_at when a customer places an
// order.
func (q *Queries) TouchCustomerLastOrder(ctx context.Context, id uuid.UUID) error {
	const sql = `UPDATE customers SET last_order_at = now(), updated_at = now() WHERE id = $1`
	_, err := q.db.Exec(ctx, sql, id)
	return err
}
