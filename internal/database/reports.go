package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Report queries are read-only rollups over settled orders, recomputed
// per request. "Settled" means paid and completed or delivered.

const settledFilter = `
	payment_status = 'paid'
	AND status IN ('completed', 'delivered')
	AND created_at >= $1 AND created_at < $2`

type DateRangeParams struct {
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

type DailySalesRow struct {
	SaleDate      pgtype.Date
	OrderCount    int64
	TotalRevenue  pgtype.Numeric
	TotalDiscount pgtype.Numeric
}

func (q *Queries) GetDailySales(ctx context.Context, arg DateRangeParams) ([]DailySalesRow, error) {
	const sql = `
		SELECT created_at::date AS sale_date,
		       COUNT(*),
		       COALESCE(SUM(total), 0),
		       COALESCE(SUM(discount), 0)
		FROM orders
		WHERE` + settledFilter + `
		GROUP BY sale_date
		ORDER BY sale_date
	`
	rows, err := q.db.Query(ctx, sql, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DailySalesRow
	for rows.Next() {
		var r DailySalesRow
		if err := rows.Scan(&r.SaleDate, &r.OrderCount, &r.TotalRevenue, &r.TotalDiscount); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

type HourlySalesRow struct {
	Hour         int32
	OrderCount   int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetHourlySales(ctx context.Context, arg DateRangeParams) ([]HourlySalesRow, error) {
	const sql = `
		SELECT EXTRACT(HOUR FROM created_at)::int AS hour,
		       COUNT(*),
		       COALESCE(SUM(total), 0)
		FROM orders
		WHERE` + settledFilter + `
		GROUP BY hour
		ORDER BY hour
	`
	rows, err := q.db.Query(ctx, sql, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []HourlySalesRow
	for rows.Next() {
		var r HourlySalesRow
		if err := rows.Scan(&r.Hour, &r.OrderCount, &r.TotalRevenue); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

type CategorySalesRow struct {
	CategoryID   uuid.UUID
	CategoryName string
	QuantitySold int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetCategorySales(ctx context.Context, arg DateRangeParams) ([]CategorySalesRow, error) {
	const sql = `
		SELECT c.id, c.name,
		       COALESCE(SUM(oi.quantity), 0),
		       COALESCE(SUM(oi.line_total), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE o.payment_status = 'paid'
		  AND o.status IN ('completed', 'delivered')
		  AND o.created_at >= $1 AND o.created_at < $2
		GROUP BY c.id, c.name
		ORDER BY 4 DESC
	`
	rows, err := q.db.Query(ctx, sql, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CategorySalesRow
	for rows.Next() {
		var r CategorySalesRow
		if err := rows.Scan(&r.CategoryID, &r.CategoryName, &r.QuantitySold, &r.TotalRevenue); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

type PaymentSummaryRow struct {
	PaymentMethod string
	OrderCount    int64
	TotalAmount   pgtype.Numeric
}

func (q *Queries) GetPaymentSummary(ctx context.Context, arg DateRangeParams) ([]PaymentSummaryRow, error) {
	const sql = `
		SELECT payment_method,
		       COUNT(*),
		       COALESCE(SUM(total), 0)
		FROM orders
		WHERE` + settledFilter + `
		GROUP BY payment_method
		ORDER BY 3 DESC
	`
	rows, err := q.db.Query(ctx, sql, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PaymentSummaryRow
	for rows.Next() {
		var r PaymentSummaryRow
		if err := rows.Scan(&r.PaymentMethod, &r.OrderCount, &r.TotalAmount); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

type TopProductRow struct {
	ProductID    uuid.UUID
	ProductName  string
	QuantitySold int64
	TotalRevenue pgtype.Numeric
}

type TopProductsParams struct {
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
}

func (q *Queries) GetTopProducts(ctx context.Context, arg TopProductsParams) ([]TopProductRow, error) {
	const sql = `
		SELECT oi.product_id, oi.product_name,
		       COALESCE(SUM(oi.quantity), 0),
		       COALESCE(SUM(oi.line_total), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.payment_status = 'paid'
		  AND o.status IN ('completed', 'delivered')
		  AND o.created_at >= $1 AND o.created_at < $2
		GROUP BY oi.product_id, oi.product_name
		ORDER BY 3 DESC
		LIMIT $3
	`
	rows, err := q.db.Query(ctx, sql, arg.StartDate, arg.EndDate, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TopProductRow
	for rows.Next() {
		var r TopProductRow
		if err := rows.Scan(&r.ProductID, &r.ProductName, &r.QuantitySold, &r.TotalRevenue); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
