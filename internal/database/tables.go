package database

import (
	"context"

	"github.com/google/uuid"
)

const tableColumns = `
	id, number, name, capacity, status, current_order_id, grid_x, grid_y,
	created_at, updated_at`

func scanTable(row interface{ Scan(dest ...any) error }) (Table, error) {
	var t Table
	err := row.Scan(
		&t.ID, &t.Number, &t.Name, &t.Capacity, &t.Status,
		&t.CurrentOrderID, &t.GridX, &t.GridY, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

type CreateTableParams struct {
	Number   int32
	Name     string
	Capacity int32
	GridX    int32
	GridY    int32
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	const sql = `
		INSERT INTO tables (number, name, capacity, grid_x, grid_y)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql,
		arg.Number, arg.Name, arg.Capacity, arg.GridX, arg.GridY))
}

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	const sql = `SELECT` + tableColumns + ` FROM tables WHERE id = $1`
	return scanTable(q.db.QueryRow(ctx, sql, id))
}

// GetTableForUpdate locks the table row so occupancy decisions are
// serialized with the transaction that makes them.
func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error) {
	const sql = `SELECT` + tableColumns + ` FROM tables WHERE id = $1 FOR UPDATE`
	return scanTable(q.db.QueryRow(ctx, sql, id))
}

func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	const sql = `SELECT` + tableColumns + ` FROM tables ORDER BY number`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

type UpdateTableParams struct {
	ID       uuid.UUID
	Number   int32
	Name     string
	Capacity int32
}

func (q *Queries) UpdateTable(ctx context.Context, arg UpdateTableParams) (Table, error) {
	const sql = `
		UPDATE tables
		SET number = $2, name = $3, capacity = $4, updated_at = now()
		WHERE id = $1
		RETURNING` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql, arg.ID, arg.Number, arg.Name, arg.Capacity))
}

type UpdateTablePositionParams struct {
	ID    uuid.UUID
	GridX int32
	GridY int32
}

func (q *Queries) UpdateTablePosition(ctx context.Context, arg UpdateTablePositionParams) (Table, error) {
	const sql = `
		UPDATE tables
		SET grid_x = $2, grid_y = $3, updated_at = now()
		WHERE id = $1
		RETURNING` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql, arg.ID, arg.GridX, arg.GridY))
}

func (q *Queries) SetTableStatus(ctx context.Context, id uuid.UUID, status string) (Table, error) {
	const sql = `
		UPDATE tables
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql, id, status))
}

// OccupyTable attaches an order to a table. The WHERE clause only
// matches tables without a live order, so a second concurrent order on
// the same table fails with pgx.ErrNoRows.
func (q *Queries) OccupyTable(ctx context.Context, id, orderID uuid.UUID) (Table, error) {
	const sql = `
		UPDATE tables
		SET status = 'occupied', current_order_id = $2, updated_at = now()
		WHERE id = $1 AND current_order_id IS NULL
		RETURNING` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql, id, orderID))
}

// ReleaseTable frees the table when its order reaches a terminal state.
func (q *Queries) ReleaseTable(ctx context.Context, id uuid.UUID) (Table, error) {
	const sql = `
		UPDATE tables
		SET status = 'available', current_order_id = NULL, updated_at = now()
		WHERE id = $1
		RETURNING` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql, id))
}

// CountBusyTables counts tables in any state other than available;
// non-zero blocks a cash-session close.
func (q *Queries) CountBusyTables(ctx context.Context) (int64, error) {
	const sql = `SELECT COUNT(*) FROM tables WHERE status != 'available'`
	var n int64
	err := q.db.QueryRow(ctx, sql).Scan(&n)
	return n, err
}

func (q *Queries) DeleteTable(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const sql = `DELETE FROM tables WHERE id = $1 AND current_order_id IS NULL RETURNING id`
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, sql, id).Scan(&deleted)
	return deleted, err
}
