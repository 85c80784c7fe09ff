package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// NextOrderNumber bumps and returns today's order counter. The upsert
// takes a row lock on the day row, so concurrent creators serialize and
// each gets a distinct sequential number.
func (q *Queries) NextOrderNumber(ctx context.Context) (int32, error) {
	const sql = `
		INSERT INTO order_counters (day, counter)
		VALUES (CURRENT_DATE, 1)
		ON CONFLICT (day) DO UPDATE SET counter = order_counters.counter + 1
		RETURNING counter
	`
	var n int32
	err := q.db.QueryRow(ctx, sql).Scan(&n)
	return n, err
}

type CreateOrderParams struct {
	OrderNumber string
	Channel     string
	Origin      string
	TableID     pgtype.UUID
	CustomerID  pgtype.UUID
	Subtotal    pgtype.Numeric
	Discount    pgtype.Numeric
	Tax         pgtype.Numeric
	Total       pgtype.Numeric
	Note        pgtype.Text
	CreatedBy   pgtype.UUID
}

const orderColumns = `
	id, order_number, order_day, channel, origin, table_id, customer_id,
	status, payment_status, payment_method, paid_amount, tendered_amount,
	change_amount, session_id, subtotal, discount, tax, total, note,
	created_by, created_at, confirmed_at, ready_at, completed_at,
	cancelled_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.OrderDay, &o.Channel, &o.Origin,
		&o.TableID, &o.CustomerID, &o.Status, &o.PaymentStatus,
		&o.PaymentMethod, &o.PaidAmount, &o.TenderedAmount,
		&o.ChangeAmount, &o.SessionID, &o.Subtotal, &o.Discount, &o.Tax,
		&o.Total, &o.Note, &o.CreatedBy, &o.CreatedAt, &o.ConfirmedAt,
		&o.ReadyAt, &o.CompletedAt, &o.CancelledAt, &o.UpdatedAt,
	)
	return o, err
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	const sql = `
		INSERT INTO orders (
			order_number, channel, origin, table_id, customer_id,
			subtotal, discount, tax, total, note, created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql,
		arg.OrderNumber, arg.Channel, arg.Origin, arg.TableID,
		arg.CustomerID, arg.Subtotal, arg.Discount, arg.Tax, arg.Total,
		arg.Note, arg.CreatedBy,
	))
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	const sql = `SELECT` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(q.db.QueryRow(ctx, sql, id))
}

// GetOrderForUpdate locks the order row for the rest of the transaction.
// Every status transition goes through this to serialize read-then-write
// decisions on the same order.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	const sql = `SELECT` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return scanOrder(q.db.QueryRow(ctx, sql, id))
}

type ListOrdersParams struct {
	Status    pgtype.Text
	Channel   pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	const sql = `
		SELECT` + orderColumns + `
		FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR channel = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at < $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6
	`
	rows, err := q.db.Query(ctx, sql,
		arg.Status, arg.Channel, arg.StartDate, arg.EndDate,
		arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListKitchenOrders returns the orders the kitchen display cares about,
// oldest first.
func (q *Queries) ListKitchenOrders(ctx context.Context) ([]Order, error) {
	const sql = `
		SELECT` + orderColumns + `
		FROM orders
		WHERE status IN ('confirmed', 'preparing', 'ready')
		ORDER BY created_at ASC
	`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type SetOrderStatusParams struct {
	ID          uuid.UUID
	Status      string
	ConfirmedAt pgtype.Timestamptz
	ReadyAt     pgtype.Timestamptz
	CompletedAt pgtype.Timestamptz
	CancelledAt pgtype.Timestamptz
}

// SetOrderStatus updates the status and stamps only the timestamps the
// caller provides (COALESCE keeps the rest untouched).
func (q *Queries) SetOrderStatus(ctx context.Context, arg SetOrderStatusParams) (Order, error) {
	const sql = `
		UPDATE orders SET
			status = $2,
			confirmed_at = COALESCE($3, confirmed_at),
			ready_at = COALESCE($4, ready_at),
			completed_at = COALESCE($5, completed_at),
			cancelled_at = COALESCE($6, cancelled_at),
			updated_at = now()
		WHERE id = $1
		RETURNING` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql,
		arg.ID, arg.Status, arg.ConfirmedAt, arg.ReadyAt,
		arg.CompletedAt, arg.CancelledAt))
}

type SetOrderPaymentParams struct {
	ID             uuid.UUID
	PaymentMethod  string
	PaidAmount     pgtype.Numeric
	TenderedAmount pgtype.Numeric
	ChangeAmount   pgtype.Numeric
	SessionID      uuid.UUID
}

// SetOrderPayment marks the order paid and records which session
// absorbed the sale.
func (q *Queries) SetOrderPayment(ctx context.Context, arg SetOrderPaymentParams) (Order, error) {
	const sql = `
		UPDATE orders SET
			payment_status = 'paid',
			payment_method = $2,
			paid_amount = $3,
			tendered_amount = $4,
			change_amount = $5,
			session_id = $6,
			updated_at = now()
		WHERE id = $1
		RETURNING` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql,
		arg.ID, arg.PaymentMethod, arg.PaidAmount, arg.TenderedAmount,
		arg.ChangeAmount, arg.SessionID))
}

// ClearOrderPayment reverts payment fields after a paid order is
// cancelled and its sale reversed.
func (q *Queries) ClearOrderPayment(ctx context.Context, id uuid.UUID) error {
	const sql = `
		UPDATE orders SET
			payment_status = 'pending',
			payment_method = NULL,
			paid_amount = NULL,
			tendered_amount = NULL,
			change_amount = NULL,
			updated_at = now()
		WHERE id = $1
	`
	_, err := q.db.Exec(ctx, sql, id)
	return err
}

type CreateOrderItemParams struct {
	OrderID        uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	UnitPrice      pgtype.Numeric
	SizeName       pgtype.Text
	SizeAdjustment pgtype.Numeric
	Modifiers      []OrderItemModifier
	Quantity       int32
	LineTotal      pgtype.Numeric
	Note           pgtype.Text
}

const orderItemColumns = `
	id, order_id, product_id, product_name, unit_price, size_name,
	size_adjustment, modifiers, quantity, line_total, note, status`

func scanOrderItem(row interface{ Scan(dest ...any) error }) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
		&it.UnitPrice, &it.SizeName, &it.SizeAdjustment, &it.Modifiers,
		&it.Quantity, &it.LineTotal, &it.Note, &it.Status,
	)
	return it, err
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	const sql = `
		INSERT INTO order_items (
			order_id, product_id, product_name, unit_price, size_name,
			size_adjustment, modifiers, quantity, line_total, note
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING` + orderItemColumns
	mods := arg.Modifiers
	if mods == nil {
		mods = []OrderItemModifier{}
	}
	return scanOrderItem(q.db.QueryRow(ctx, sql,
		arg.OrderID, arg.ProductID, arg.ProductName, arg.UnitPrice,
		arg.SizeName, arg.SizeAdjustment, mods, arg.Quantity,
		arg.LineTotal, arg.Note,
	))
}

func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	const sql = `SELECT` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SetOrderItemsStatus bulk-updates every line item of an order; used
// when the whole order moves to preparing or ready.
func (q *Queries) SetOrderItemsStatus(ctx context.Context, orderID uuid.UUID, status string) error {
	const sql = `UPDATE order_items SET status = $2 WHERE order_id = $1`
	_, err := q.db.Exec(ctx, sql, orderID, status)
	return err
}

// CountUnsettledOrders counts orders that block a cash-session close:
// anything still live, or finished but never paid.
func (q *Queries) CountUnsettledOrders(ctx context.Context) (int64, error) {
	const sql = `
		SELECT COUNT(*)
		FROM orders
		WHERE status NOT IN ('completed', 'delivered', 'cancelled')
		   OR (status != 'cancelled' AND payment_status = 'pending')
	`
	var n int64
	err := q.db.QueryRow(ctx, sql).Scan(&n)
	return n, err
}
