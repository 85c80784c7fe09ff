package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/malulos-pos/api/internal/database"
	"github.com/malulos-pos/api/internal/enum"
)

var (
	ErrSessionAlreadyOpen = errors.New("a cash session is already open")
	ErrInvalidAmount      = errors.New("amount must be a non-negative number")
	ErrInvalidMovement    = errors.New("movement type must be 'in' or 'out'")
	ErrReasonRequired     = errors.New("reason is required")
	ErrUnsettledOrders    = errors.New("open or unpaid orders must be settled before closing")
	ErrTablesBusy         = errors.New("all tables must be available before closing")
)

// SessionStore defines the DB methods the cash session service needs.
// Satisfied by *database.Queries.
type SessionStore interface {
	CreateSession(ctx context.Context, openedBy uuid.UUID, openingAmount pgtype.Numeric) (database.CashSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (database.CashSession, error)
	GetActiveSession(ctx context.Context) (database.CashSession, error)
	GetActiveSessionForUpdate(ctx context.Context) (database.CashSession, error)
	ListSessions(ctx context.Context, limit, offset int32) ([]database.CashSession, error)
	CloseSession(ctx context.Context, arg database.CloseSessionParams) (database.CashSession, error)
	CreateMovement(ctx context.Context, arg database.CreateMovementParams) (database.CashMovement, error)
	ListMovementsBySession(ctx context.Context, sessionID uuid.UUID) ([]database.CashMovement, error)
	SumMovements(ctx context.Context, sessionID uuid.UUID) (database.MovementSums, error)
	CountUnsettledOrders(ctx context.Context) (int64, error)
	CountBusyTables(ctx context.Context) (int64, error)
}

// NewSessionStore creates a SessionStore from a DBTX (pool or tx).
type NewSessionStore func(db database.DBTX) SessionStore

// CashSessionService owns the open/adjust/close lifecycle of the cash
// drawer. At most one session is open at a time; the partial unique
// index on cash_sessions enforces that under concurrency.
type CashSessionService struct {
	pool     TxBeginner
	newStore NewSessionStore
}

func NewCashSessionService(pool TxBeginner, newStore NewSessionStore) *CashSessionService {
	return &CashSessionService{pool: pool, newStore: newStore}
}

// Open starts a new cash session with a counted opening float.
func (s *CashSessionService) Open(ctx context.Context, openedBy uuid.UUID, openingAmount string) (database.CashSession, error) {
	amount, err := parsePositiveAmount(openingAmount)
	if err != nil {
		return database.CashSession{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.CashSession{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	session, err := store.CreateSession(ctx, openedBy, decimalToNumeric(amount))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return database.CashSession{}, ErrSessionAlreadyOpen
		}
		return database.CashSession{}, fmt.Errorf("create session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.CashSession{}, fmt.Errorf("commit tx: %w", err)
	}
	return session, nil
}

// AddMovement records a manual cash in/out against the open session.
func (s *CashSessionService) AddMovement(ctx context.Context, movementType, amount, reason string, userID uuid.UUID) (database.CashMovement, error) {
	if movementType != enum.MovementIn && movementType != enum.MovementOut {
		return database.CashMovement{}, ErrInvalidMovement
	}
	if reason == "" {
		return database.CashMovement{}, ErrReasonRequired
	}
	amt, err := parsePositiveAmount(amount)
	if err != nil {
		return database.CashMovement{}, err
	}
	if amt.IsZero() {
		return database.CashMovement{}, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.CashMovement{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	session, err := store.GetActiveSessionForUpdate(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.CashMovement{}, ErrNoOpenSession
		}
		return database.CashMovement{}, fmt.Errorf("lock session: %w", err)
	}

	movement, err := store.CreateMovement(ctx, database.CreateMovementParams{
		SessionID: session.ID,
		Type:      movementType,
		Amount:    decimalToNumeric(amt),
		Reason:    reason,
		UserID:    userID,
	})
	if err != nil {
		return database.CashMovement{}, fmt.Errorf("create movement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.CashMovement{}, fmt.Errorf("commit tx: %w", err)
	}
	return movement, nil
}

// CloseResult is the closed session plus the breakdown the cashier sees.
type CloseResult struct {
	Session        database.CashSession
	TotalIn        decimal.Decimal
	TotalOut       decimal.Decimal
	ExpectedAmount decimal.Decimal
	Difference     decimal.Decimal
}

// Close reconciles and closes the open session. The close is refused
// while any order is still in flight or unpaid, or any table is still
// occupied or reserved, so the drawer count can never drift after the
// fact. Expected cash is
// opening + cash sales + manual ins - manual outs; card and digital
// methods never touch the drawer.
func (s *CashSessionService) Close(ctx context.Context, closedBy uuid.UUID, actualAmount string) (*CloseResult, error) {
	actual, err := parsePositiveAmount(actualAmount)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	session, err := store.GetActiveSessionForUpdate(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenSession
		}
		return nil, fmt.Errorf("lock session: %w", err)
	}

	unsettled, err := store.CountUnsettledOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("count unsettled: %w", err)
	}
	if unsettled > 0 {
		return nil, fmt.Errorf("%w: %d remaining", ErrUnsettledOrders, unsettled)
	}

	busy, err := store.CountBusyTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("count busy tables: %w", err)
	}
	if busy > 0 {
		return nil, fmt.Errorf("%w: %d busy", ErrTablesBusy, busy)
	}

	sums, err := store.SumMovements(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("sum movements: %w", err)
	}

	totalIn := numericToDecimal(sums.TotalIn)
	totalOut := numericToDecimal(sums.TotalOut)
	expected := numericToDecimal(session.OpeningAmount).
		Add(numericToDecimal(session.CashSales)).
		Add(totalIn).
		Sub(totalOut)
	difference := actual.Sub(expected)

	closed, err := store.CloseSession(ctx, database.CloseSessionParams{
		ID:             session.ID,
		ActualAmount:   decimalToNumeric(actual),
		ExpectedAmount: decimalToNumeric(expected),
		Difference:     decimalToNumeric(difference),
		ClosedBy:       closedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CloseResult{
		Session:        closed,
		TotalIn:        totalIn,
		TotalOut:       totalOut,
		ExpectedAmount: expected,
		Difference:     difference,
	}, nil
}

func parsePositiveAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
