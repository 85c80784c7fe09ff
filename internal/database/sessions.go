package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const sessionColumns = `
	id, opened_by, opening_amount, cash_sales, card_sales, transfer_sales,
	nequi_sales, daviplata_sales, total_sales, orders_count, status,
	actual_amount, expected_amount, difference, opened_at, closed_at,
	closed_by`

func scanSession(row interface{ Scan(dest ...any) error }) (CashSession, error) {
	var s CashSession
	err := row.Scan(
		&s.ID, &s.OpenedBy, &s.OpeningAmount, &s.CashSales, &s.CardSales,
		&s.TransferSales, &s.NequiSales, &s.DaviplataSales, &s.TotalSales,
		&s.OrdersCount, &s.Status, &s.ActualAmount, &s.ExpectedAmount,
		&s.Difference, &s.OpenedAt, &s.ClosedAt, &s.ClosedBy,
	)
	return s, err
}

// CreateSession opens a new cash session. A second open session hits
// the partial unique index and comes back as pgconn error 23505.
func (q *Queries) CreateSession(ctx context.Context, openedBy uuid.UUID, openingAmount pgtype.Numeric) (CashSession, error) {
	const sql = `
		INSERT INTO cash_sessions (opened_by, opening_amount)
		VALUES ($1, $2)
		RETURNING` + sessionColumns
	return scanSession(q.db.QueryRow(ctx, sql, openedBy, openingAmount))
}

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (CashSession, error) {
	const sql = `SELECT` + sessionColumns + ` FROM cash_sessions WHERE id = $1`
	return scanSession(q.db.QueryRow(ctx, sql, id))
}

func (q *Queries) GetActiveSession(ctx context.Context) (CashSession, error) {
	const sql = `SELECT` + sessionColumns + ` FROM cash_sessions WHERE status = 'open'`
	return scanSession(q.db.QueryRow(ctx, sql))
}

// GetActiveSessionForUpdate locks the open session row for the rest of
// the transaction. Every total-mutating operation goes through this.
func (q *Queries) GetActiveSessionForUpdate(ctx context.Context) (CashSession, error) {
	const sql = `SELECT` + sessionColumns + ` FROM cash_sessions WHERE status = 'open' FOR UPDATE`
	return scanSession(q.db.QueryRow(ctx, sql))
}

func (q *Queries) ListSessions(ctx context.Context, limit, offset int32) ([]CashSession, error) {
	const sql = `
		SELECT` + sessionColumns + `
		FROM cash_sessions
		ORDER BY opened_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := q.db.Query(ctx, sql, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []CashSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// RecordSale applies a sale to the open session as a single atomic
// increment. The method picks its bucket inside SQL so there is no
// read-modify-write window.
func (q *Queries) RecordSale(ctx context.Context, sessionID uuid.UUID, method string, amount pgtype.Numeric) (CashSession, error) {
	const sql = `
		UPDATE cash_sessions SET
			cash_sales      = cash_sales      + CASE WHEN $2 = 'cash'      THEN $3::numeric ELSE 0 END,
			card_sales      = card_sales      + CASE WHEN $2 = 'card'      THEN $3::numeric ELSE 0 END,
			transfer_sales  = transfer_sales  + CASE WHEN $2 = 'transfer'  THEN $3::numeric ELSE 0 END,
			nequi_sales     = nequi_sales     + CASE WHEN $2 = 'nequi'     THEN $3::numeric ELSE 0 END,
			daviplata_sales = daviplata_sales + CASE WHEN $2 = 'daviplata' THEN $3::numeric ELSE 0 END,
			total_sales = total_sales + $3::numeric,
			orders_count = orders_count + 1
		WHERE id = $1 AND status = 'open'
		RETURNING` + sessionColumns
	return scanSession(q.db.QueryRow(ctx, sql, sessionID, method, amount))
}

// ReverseSale backs out a previously recorded sale, e.g. when a paid
// order is cancelled.
func (q *Queries) ReverseSale(ctx context.Context, sessionID uuid.UUID, method string, amount pgtype.Numeric) (CashSession, error) {
	const sql = `
		UPDATE cash_sessions SET
			cash_sales      = cash_sales      - CASE WHEN $2 = 'cash'      THEN $3::numeric ELSE 0 END,
			card_sales      = card_sales      - CASE WHEN $2 = 'card'      THEN $3::numeric ELSE 0 END,
			transfer_sales  = transfer_sales  - CASE WHEN $2 = 'transfer'  THEN $3::numeric ELSE 0 END,
			nequi_sales     = nequi_sales     - CASE WHEN $2 = 'nequi'     THEN $3::numeric ELSE 0 END,
			daviplata_sales = daviplata_sales - CASE WHEN $2 = 'daviplata' THEN $3::numeric ELSE 0 END,
			total_sales = total_sales - $3::numeric,
			orders_count = orders_count - 1
		WHERE id = $1 AND status = 'open'
		RETURNING` + sessionColumns
	return scanSession(q.db.QueryRow(ctx, sql, sessionID, method, amount))
}

type CloseSessionParams struct {
	ID             uuid.UUID
	ActualAmount   pgtype.Numeric
	ExpectedAmount pgtype.Numeric
	Difference     pgtype.Numeric
	ClosedBy       uuid.UUID
}

func (q *Queries) CloseSession(ctx context.Context, arg CloseSessionParams) (CashSession, error) {
	const sql = `
		UPDATE cash_sessions SET
			status = 'closed',
			actual_amount = $2,
			expected_amount = $3,
			difference = $4,
			closed_by = $5,
			closed_at = now()
		WHERE id = $1 AND status = 'open'
		RETURNING` + sessionColumns
	return scanSession(q.db.QueryRow(ctx, sql,
		arg.ID, arg.ActualAmount, arg.ExpectedAmount, arg.Difference, arg.ClosedBy))
}

type CreateMovementParams struct {
	SessionID uuid.UUID
	Type      string
	Amount    pgtype.Numeric
	Reason    string
	UserID    uuid.UUID
}

const movementColumns = `id, session_id, type, amount, reason, user_id, created_at`

func scanMovement(row interface{ Scan(dest ...any) error }) (CashMovement, error) {
	var m CashMovement
	err := row.Scan(&m.ID, &m.SessionID, &m.Type, &m.Amount, &m.Reason, &m.UserID, &m.CreatedAt)
	return m, err
}

func (q *Queries) CreateMovement(ctx context.Context, arg CreateMovementParams) (CashMovement, error) {
	const sql = `
		INSERT INTO cash_movements (session_id, type, amount, reason, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING` + movementColumns
	return scanMovement(q.db.QueryRow(ctx, sql,
		arg.SessionID, arg.Type, arg.Amount, arg.Reason, arg.UserID))
}

func (q *Queries) ListMovementsBySession(ctx context.Context, sessionID uuid.UUID) ([]CashMovement, error) {
	const sql = `SELECT` + movementColumns + ` FROM cash_movements WHERE session_id = $1 ORDER BY created_at`
	rows, err := q.db.Query(ctx, sql, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []CashMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

type MovementSums struct {
	TotalIn  pgtype.Numeric
	TotalOut pgtype.Numeric
}

// SumMovements totals the manual in/out adjustments of a session; used
// for the expected-amount computation at close.
func (q *Queries) SumMovements(ctx context.Context, sessionID uuid.UUID) (MovementSums, error) {
	const sql = `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'in'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'out'), 0)
		FROM cash_movements
		WHERE session_id = $1
	`
	var s MovementSums
	err := q.db.QueryRow(ctx, sql, sessionID).Scan(&s.TotalIn, &s.TotalOut)
	return s, err
}
