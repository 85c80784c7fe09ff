package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/malulos-pos/api/internal/database"
	"github.com/malulos-pos/api/internal/middleware"
	"github.com/malulos-pos/api/internal/service"
)

// CashSessionServicer defines the service methods needed by cash
// session handlers. Satisfied by *service.CashSessionService.
type CashSessionServicer interface {
	Open(ctx context.Context, openedBy uuid.UUID, openingAmount string) (database.CashSession, error)
	AddMovement(ctx context.Context, movementType, amount, reason string, userID uuid.UUID) (database.CashMovement, error)
	Close(ctx context.Context, closedBy uuid.UUID, actualAmount string) (*service.CloseResult, error)
}

// CashSessionStore defines the database methods needed by cash session
// read handlers. Satisfied by *database.Queries.
type CashSessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (database.CashSession, error)
	GetActiveSession(ctx context.Context) (database.CashSession, error)
	ListSessions(ctx context.Context, limit, offset int32) ([]database.CashSession, error)
	ListMovementsBySession(ctx context.Context, sessionID uuid.UUID) ([]database.CashMovement, error)
}

// CashSessionHandler handles cash drawer session endpoints.
type CashSessionHandler struct {
	svc   CashSessionServicer
	store CashSessionStore
}

// NewCashSessionHandler creates a new CashSessionHandler.
func NewCashSessionHandler(svc CashSessionServicer, store CashSessionStore) *CashSessionHandler {
	return &CashSessionHandler{svc: svc, store: store}
}

// RegisterRoutes registers cash session endpoints on the given Chi router.
func (h *CashSessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/", h.List)
	r.Get("/active", h.Active)
	r.Post("/close", h.Close)
	r.Post("/movements", h.AddMovement)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/movements", h.ListMovements)
}

// --- Request / Response types ---

type openSessionRequest struct {
	OpeningAmount string `json:"opening_amount"`
}

type closeSessionRequest struct {
	ActualAmount string `json:"actual_amount"`
}

type movementRequest struct {
	Type   string `json:"type"`
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

type sessionResponse struct {
	ID             uuid.UUID  `json:"id"`
	OpenedBy       uuid.UUID  `json:"opened_by"`
	OpeningAmount  string     `json:"opening_amount"`
	CashSales      string     `json:"cash_sales"`
	CardSales      string     `json:"card_sales"`
	TransferSales  string     `json:"transfer_sales"`
	NequiSales     string     `json:"nequi_sales"`
	DaviplataSales string     `json:"daviplata_sales"`
	TotalSales     string     `json:"total_sales"`
	OrdersCount    int32      `json:"orders_count"`
	Status         string     `json:"status"`
	ActualAmount   *string    `json:"actual_amount"`
	ExpectedAmount *string    `json:"expected_amount"`
	Difference     *string    `json:"difference"`
	OpenedAt       time.Time  `json:"opened_at"`
	ClosedAt       *time.Time `json:"closed_at"`
	ClosedBy       *uuid.UUID `json:"closed_by"`
}

type movementResponse struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Type      string    `json:"type"`
	Amount    string    `json:"amount"`
	Reason    string    `json:"reason"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type closeSessionResponse struct {
	Session        sessionResponse `json:"session"`
	TotalIn        string          `json:"total_in"`
	TotalOut       string          `json:"total_out"`
	ExpectedAmount string          `json:"expected_amount"`
	Difference     string          `json:"difference"`
}

func toSessionResponse(s database.CashSession) sessionResponse {
	resp := sessionResponse{
		ID:             s.ID,
		OpenedBy:       s.OpenedBy,
		OpeningAmount:  numericToString(s.OpeningAmount),
		CashSales:      numericToString(s.CashSales),
		CardSales:      numericToString(s.CardSales),
		TransferSales:  numericToString(s.TransferSales),
		NequiSales:     numericToString(s.NequiSales),
		DaviplataSales: numericToString(s.DaviplataSales),
		TotalSales:     numericToString(s.TotalSales),
		OrdersCount:    s.OrdersCount,
		Status:         s.Status,
		OpenedAt:       s.OpenedAt,
	}
	if s.ActualAmount.Valid {
		v := numericToString(s.ActualAmount)
		resp.ActualAmount = &v
	}
	if s.ExpectedAmount.Valid {
		v := numericToString(s.ExpectedAmount)
		resp.ExpectedAmount = &v
	}
	if s.Difference.Valid {
		v := numericToString(s.Difference)
		resp.Difference = &v
	}
	if s.ClosedAt.Valid {
		resp.ClosedAt = &s.ClosedAt.Time
	}
	if s.ClosedBy.Valid {
		id := uuid.UUID(s.ClosedBy.Bytes)
		resp.ClosedBy = &id
	}
	return resp
}

func toMovementResponse(m database.CashMovement) movementResponse {
	return movementResponse{
		ID:        m.ID,
		SessionID: m.SessionID,
		Type:      m.Type,
		Amount:    numericToString(m.Amount),
		Reason:    m.Reason,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
	}
}

// writeSessionError maps cash session service errors to HTTP codes.
func writeSessionError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidMovement),
		errors.Is(err, service.ErrReasonRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrSessionAlreadyOpen),
		errors.Is(err, service.ErrNoOpenSession),
		errors.Is(err, service.ErrUnsettledOrders),
		errors.Is(err, service.ErrTablesBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// --- Handlers ---

// Open handles POST /cash-sessions: start the day with a counted float.
func (h *CashSessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	session, err := h.svc.Open(r.Context(), claims.UserID, req.OpeningAmount)
	if err != nil {
		writeSessionError(w, err, "open session")
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

// Active handles GET /cash-sessions/active.
func (h *CashSessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.GetActiveSession(r.Context())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no open cash session"})
			return
		}
		log.Printf("ERROR: get active session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// List handles GET /cash-sessions, newest first.
func (h *CashSessionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	sessions, err := h.store.ListSessions(r.Context(), int32(limit), int32(offset))
	if err != nil {
		log.Printf("ERROR: list sessions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]sessionResponse, len(sessions))
	for i, s := range sessions {
		resp[i] = toSessionResponse(s)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /cash-sessions/{id}.
func (h *CashSessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	session, err := h.store.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
			return
		}
		log.Printf("ERROR: get session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Close handles POST /cash-sessions/close with the counted drawer.
func (h *CashSessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req closeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Close(r.Context(), claims.UserID, req.ActualAmount)
	if err != nil {
		writeSessionError(w, err, "close session")
		return
	}

	writeJSON(w, http.StatusOK, closeSessionResponse{
		Session:        toSessionResponse(result.Session),
		TotalIn:        result.TotalIn.StringFixed(2),
		TotalOut:       result.TotalOut.StringFixed(2),
		ExpectedAmount: result.ExpectedAmount.StringFixed(2),
		Difference:     result.Difference.StringFixed(2),
	})
}

// AddMovement handles POST /cash-sessions/movements: petty cash in/out.
func (h *CashSessionHandler) AddMovement(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req movementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	movement, err := h.svc.AddMovement(r.Context(), req.Type, req.Amount, req.Reason, claims.UserID)
	if err != nil {
		writeSessionError(w, err, "add movement")
		return
	}

	writeJSON(w, http.StatusCreated, toMovementResponse(movement))
}

// ListMovements handles GET /cash-sessions/{id}/movements.
func (h *CashSessionHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	if _, err := h.store.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
			return
		}
		log.Printf("ERROR: get session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	movements, err := h.store.ListMovementsBySession(r.Context(), sessionID)
	if err != nil {
		log.Printf("ERROR: list movements: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]movementResponse, len(movements))
	for i, m := range movements {
		resp[i] = toMovementResponse(m)
	}

	writeJSON(w, http.StatusOK, resp)
}
