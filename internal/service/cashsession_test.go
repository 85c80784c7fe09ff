package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/malulos-pos/api/internal/database"
	"github.com/malulos-pos/api/internal/enum"
)

// mockSessionStore implements SessionStore with configurable behavior.
type mockSessionStore struct {
	createSessionFn    func(ctx context.Context, openedBy uuid.UUID, openingAmount pgtype.Numeric) (database.CashSession, error)
	getSessionFn       func(ctx context.Context, id uuid.UUID) (database.CashSession, error)
	getActiveFn        func(ctx context.Context) (database.CashSession, error)
	getActiveForUpdFn  func(ctx context.Context) (database.CashSession, error)
	listSessionsFn     func(ctx context.Context, limit, offset int32) ([]database.CashSession, error)
	closeSessionFn     func(ctx context.Context, arg database.CloseSessionParams) (database.CashSession, error)
	createMovementFn   func(ctx context.Context, arg database.CreateMovementParams) (database.CashMovement, error)
	listMovementsFn    func(ctx context.Context, sessionID uuid.UUID) ([]database.CashMovement, error)
	sumMovementsFn     func(ctx context.Context, sessionID uuid.UUID) (database.MovementSums, error)
	countUnsettledFn   func(ctx context.Context) (int64, error)
	countBusyTablesFn  func(ctx context.Context) (int64, error)
}

func (m *mockSessionStore) CreateSession(ctx context.Context, openedBy uuid.UUID, openingAmount pgtype.Numeric) (database.CashSession, error) {
	return m.createSessionFn(ctx, openedBy, openingAmount)
}
func (m *mockSessionStore) GetSession(ctx context.Context, id uuid.UUID) (database.CashSession, error) {
	return m.getSessionFn(ctx, id)
}
func (m *mockSessionStore) GetActiveSession(ctx context.Context) (database.CashSession, error) {
	return m.getActiveFn(ctx)
}
func (m *mockSessionStore) GetActiveSessionForUpdate(ctx context.Context) (database.CashSession, error) {
	return m.getActiveForUpdFn(ctx)
}
func (m *mockSessionStore) ListSessions(ctx context.Context, limit, offset int32) ([]database.CashSession, error) {
	return m.listSessionsFn(ctx, limit, offset)
}
func (m *mockSessionStore) CloseSession(ctx context.Context, arg database.CloseSessionParams) (database.CashSession, error) {
	return m.closeSessionFn(ctx, arg)
}
func (m *mockSessionStore) CreateMovement(ctx context.Context, arg database.CreateMovementParams) (database.CashMovement, error) {
	return m.createMovementFn(ctx, arg)
}
func (m *mockSessionStore) ListMovementsBySession(ctx context.Context, sessionID uuid.UUID) ([]database.CashMovement, error) {
	return m.listMovementsFn(ctx, sessionID)
}
func (m *mockSessionStore) SumMovements(ctx context.Context, sessionID uuid.UUID) (database.MovementSums, error) {
	return m.sumMovementsFn(ctx, sessionID)
}
func (m *mockSessionStore) CountUnsettledOrders(ctx context.Context) (int64, error) {
	return m.countUnsettledFn(ctx)
}
func (m *mockSessionStore) CountBusyTables(ctx context.Context) (int64, error) {
	return m.countBusyTablesFn(ctx)
}

func newTestSessionService(store *mockSessionStore) *CashSessionService {
	pool := &mockTxBeginner{tx: &mockTx{}}
	newStore := func(db database.DBTX) SessionStore { return store }
	return NewCashSessionService(pool, newStore)
}

// openSessionStore returns a store with one open session and no
// movements or unsettled orders.
func openSessionStore(sessionID uuid.UUID) *mockSessionStore {
	session := database.CashSession{
		ID:            sessionID,
		OpeningAmount: makeNumeric("100000.00"),
		CashSales:     makeNumeric("250000.00"),
		Status:        enum.SessionStatusOpen,
	}
	return &mockSessionStore{
		getActiveForUpdFn: func(ctx context.Context) (database.CashSession, error) {
			return session, nil
		},
		sumMovementsFn: func(ctx context.Context, sid uuid.UUID) (database.MovementSums, error) {
			return database.MovementSums{TotalIn: makeNumeric("0"), TotalOut: makeNumeric("0")}, nil
		},
		countUnsettledFn:  func(ctx context.Context) (int64, error) { return 0, nil },
		countBusyTablesFn: func(ctx context.Context) (int64, error) { return 0, nil },
		closeSessionFn: func(ctx context.Context, arg database.CloseSessionParams) (database.CashSession, error) {
			closed := session
			closed.Status = enum.SessionStatusClosed
			closed.ActualAmount = arg.ActualAmount
			closed.ExpectedAmount = arg.ExpectedAmount
			closed.Difference = arg.Difference
			return closed, nil
		},
		createMovementFn: func(ctx context.Context, arg database.CreateMovementParams) (database.CashMovement, error) {
			return database.CashMovement{
				ID:        uuid.New(),
				SessionID: arg.SessionID,
				Type:      arg.Type,
				Amount:    arg.Amount,
				Reason:    arg.Reason,
				UserID:    arg.UserID,
			}, nil
		},
	}
}

// =====================
// Open tests
// =====================

func TestOpenSession_InvalidAmount(t *testing.T) {
	svc := newTestSessionService(&mockSessionStore{})

	for _, amount := range []string{"", "abc", "-100"} {
		if _, err := svc.Open(context.Background(), uuid.New(), amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Open(%q): expected ErrInvalidAmount, got: %v", amount, err)
		}
	}
}

func TestOpenSession_Success(t *testing.T) {
	var capturedAmount pgtype.Numeric
	store := &mockSessionStore{
		createSessionFn: func(ctx context.Context, openedBy uuid.UUID, openingAmount pgtype.Numeric) (database.CashSession, error) {
			capturedAmount = openingAmount
			return database.CashSession{
				ID:            uuid.New(),
				OpenedBy:      openedBy,
				OpeningAmount: openingAmount,
				Status:        enum.SessionStatusOpen,
			}, nil
		},
	}

	svc := newTestSessionService(store)
	session, err := svc.Open(context.Background(), uuid.New(), "150000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Status != enum.SessionStatusOpen {
		t.Errorf("status: got %v, want open", session.Status)
	}
	if !numericEquals(capturedAmount, "150000.00") {
		t.Errorf("opening amount: got %v, want 150000.00", numericToDecimal(capturedAmount))
	}
}

func TestOpenSession_AlreadyOpen(t *testing.T) {
	store := &mockSessionStore{
		createSessionFn: func(ctx context.Context, openedBy uuid.UUID, openingAmount pgtype.Numeric) (database.CashSession, error) {
			return database.CashSession{}, &pgconn.PgError{
				Code:           "23505",
				ConstraintName: "cash_sessions_single_open_idx",
			}
		},
	}

	svc := newTestSessionService(store)
	_, err := svc.Open(context.Background(), uuid.New(), "100000")
	if !errors.Is(err, ErrSessionAlreadyOpen) {
		t.Fatalf("expected ErrSessionAlreadyOpen, got: %v", err)
	}
}

// =====================
// Movement tests
// =====================

func TestAddMovement_Validation(t *testing.T) {
	svc := newTestSessionService(openSessionStore(uuid.New()))

	if _, err := svc.AddMovement(context.Background(), "sideways", "1000", "supplier", uuid.New()); !errors.Is(err, ErrInvalidMovement) {
		t.Errorf("expected ErrInvalidMovement, got: %v", err)
	}
	if _, err := svc.AddMovement(context.Background(), enum.MovementOut, "1000", "", uuid.New()); !errors.Is(err, ErrReasonRequired) {
		t.Errorf("expected ErrReasonRequired, got: %v", err)
	}
	if _, err := svc.AddMovement(context.Background(), enum.MovementOut, "0", "supplier", uuid.New()); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: expected ErrInvalidAmount, got: %v", err)
	}
	if _, err := svc.AddMovement(context.Background(), enum.MovementOut, "-50", "supplier", uuid.New()); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative amount: expected ErrInvalidAmount, got: %v", err)
	}
}

func TestAddMovement_NoOpenSession(t *testing.T) {
	store := openSessionStore(uuid.New())
	store.getActiveForUpdFn = func(ctx context.Context) (database.CashSession, error) {
		return database.CashSession{}, pgx.ErrNoRows
	}

	svc := newTestSessionService(store)
	_, err := svc.AddMovement(context.Background(), enum.MovementIn, "5000", "float top-up", uuid.New())
	if !errors.Is(err, ErrNoOpenSession) {
		t.Fatalf("expected ErrNoOpenSession, got: %v", err)
	}
}

func TestAddMovement_Success(t *testing.T) {
	sessionID := uuid.New()
	userID := uuid.New()
	svc := newTestSessionService(openSessionStore(sessionID))

	movement, err := svc.AddMovement(context.Background(), enum.MovementOut, "20000", "bought napkins", userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if movement.SessionID != sessionID {
		t.Errorf("session_id: got %v, want %v", movement.SessionID, sessionID)
	}
	if movement.Type != enum.MovementOut {
		t.Errorf("type: got %v, want out", movement.Type)
	}
	if !numericEquals(movement.Amount, "20000.00") {
		t.Errorf("amount: got %v, want 20000.00", numericToDecimal(movement.Amount))
	}
}

// =====================
// Close tests
// =====================

func TestCloseSession_NoOpenSession(t *testing.T) {
	store := openSessionStore(uuid.New())
	store.getActiveForUpdFn = func(ctx context.Context) (database.CashSession, error) {
		return database.CashSession{}, pgx.ErrNoRows
	}

	svc := newTestSessionService(store)
	_, err := svc.Close(context.Background(), uuid.New(), "350000")
	if !errors.Is(err, ErrNoOpenSession) {
		t.Fatalf("expected ErrNoOpenSession, got: %v", err)
	}
}

func TestCloseSession_BlockedByUnsettledOrders(t *testing.T) {
	store := openSessionStore(uuid.New())
	store.countUnsettledFn = func(ctx context.Context) (int64, error) { return 3, nil }

	svc := newTestSessionService(store)
	_, err := svc.Close(context.Background(), uuid.New(), "350000")
	if !errors.Is(err, ErrUnsettledOrders) {
		t.Fatalf("expected ErrUnsettledOrders, got: %v", err)
	}
}

func TestCloseSession_BlockedByBusyTables(t *testing.T) {
	store := openSessionStore(uuid.New())
	store.countBusyTablesFn = func(ctx context.Context) (int64, error) { return 2, nil }

	svc := newTestSessionService(store)
	_, err := svc.Close(context.Background(), uuid.New(), "350000")
	if !errors.Is(err, ErrTablesBusy) {
		t.Fatalf("expected ErrTablesBusy, got: %v", err)
	}
}

func TestCloseSession_Reconciliation(t *testing.T) {
	sessionID := uuid.New()
	store := openSessionStore(sessionID)
	// opening 100000 + cash sales 250000 + in 30000 - out 20000 = 360000
	store.sumMovementsFn = func(ctx context.Context, sid uuid.UUID) (database.MovementSums, error) {
		return database.MovementSums{
			TotalIn:  makeNumeric("30000.00"),
			TotalOut: makeNumeric("20000.00"),
		}, nil
	}

	svc := newTestSessionService(store)
	result, err := svc.Close(context.Background(), uuid.New(), "355000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ExpectedAmount.StringFixed(2) != "360000.00" {
		t.Errorf("expected amount: got %v, want 360000.00", result.ExpectedAmount)
	}
	// shortfall of 5000
	if result.Difference.StringFixed(2) != "-5000.00" {
		t.Errorf("difference: got %v, want -5000.00", result.Difference)
	}
	if result.Session.Status != enum.SessionStatusClosed {
		t.Errorf("status: got %v, want closed", result.Session.Status)
	}
}

func TestCloseSession_ExactCount(t *testing.T) {
	svc := newTestSessionService(openSessionStore(uuid.New()))

	// opening 100000 + cash sales 250000, no movements
	result, err := svc.Close(context.Background(), uuid.New(), "350000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Difference.IsZero() {
		t.Errorf("difference: got %v, want 0", result.Difference)
	}
}
