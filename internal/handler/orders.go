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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/malulos-pos/api/internal/database"
	"github.com/malulos-pos/api/internal/enum"
	"github.com/malulos-pos/api/internal/middleware"
	"github.com/malulos-pos/api/internal/service"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	Transition(ctx context.Context, orderID uuid.UUID, next string, payment *service.PaymentDetails) (database.Order, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, payment service.PaymentDetails) (database.Order, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListKitchenOrders(ctx context.Context) ([]database.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// TicketRenderer produces the printable receipt for an order.
// Satisfied by *ticket.Printer.
type TicketRenderer interface {
	Render(order database.Order, items []database.OrderItem) ([]byte, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	store  OrderStore
	ticket TicketRenderer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, ticket TicketRenderer) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, ticket: ticket}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/kitchen", h.Kitchen)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/ticket", h.Ticket)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/payment", h.ConfirmPayment)
	r.Delete("/{id}", h.Cancel)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Channel    string                   `json:"channel"`
	TableID    string                   `json:"table_id"`
	CustomerID string                   `json:"customer_id"`
	Note       string                   `json:"note"`
	Discount   string                   `json:"discount"`
	Tax        string                   `json:"tax"`
	Items      []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string   `json:"product_id"`
	Size      string   `json:"size"`
	Modifiers []string `json:"modifiers"`
	Quantity  int32    `json:"quantity"`
	Note      string   `json:"note"`
}

type updateStatusRequest struct {
	Status         string `json:"status"`
	PaymentMethod  string `json:"payment_method"`
	TenderedAmount string `json:"tendered_amount"`
}

type confirmPaymentRequest struct {
	PaymentMethod  string `json:"payment_method"`
	TenderedAmount string `json:"tendered_amount"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	OrderNumber    string              `json:"order_number"`
	Channel        string              `json:"channel"`
	Origin         string              `json:"origin"`
	TableID        *string             `json:"table_id"`
	CustomerID     *string             `json:"customer_id"`
	Status         string              `json:"status"`
	PaymentStatus  string              `json:"payment_status"`
	PaymentMethod  *string             `json:"payment_method"`
	PaidAmount     *string             `json:"paid_amount"`
	TenderedAmount *string             `json:"tendered_amount"`
	ChangeAmount   *string             `json:"change_amount"`
	Subtotal       string              `json:"subtotal"`
	Discount       string              `json:"discount"`
	Tax            string              `json:"tax"`
	Total          string              `json:"total"`
	Note           *string             `json:"note"`
	CreatedAt      time.Time           `json:"created_at"`
	ConfirmedAt    *time.Time          `json:"confirmed_at"`
	ReadyAt        *time.Time          `json:"ready_at"`
	CompletedAt    *time.Time          `json:"completed_at"`
	CancelledAt    *time.Time          `json:"cancelled_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Items          []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID             uuid.UUID                    `json:"id"`
	ProductID      uuid.UUID                    `json:"product_id"`
	ProductName    string                       `json:"product_name"`
	UnitPrice      string                       `json:"unit_price"`
	SizeName       *string                      `json:"size_name"`
	SizeAdjustment string                       `json:"size_adjustment"`
	Modifiers      []database.OrderItemModifier `json:"modifiers"`
	Quantity       int32                        `json:"quantity"`
	LineTotal      string                       `json:"line_total"`
	Note           *string                      `json:"note"`
	Status         string                       `json:"status"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svcItems := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		svcItems[i] = service.CreateOrderItemRequest{
			ProductID:     item.ProductID,
			SizeName:      item.Size,
			ModifierNames: item.Modifiers,
			Quantity:      item.Quantity,
			Note:          item.Note,
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		Channel:    req.Channel,
		Origin:     enum.OriginPOS,
		TableID:    req.TableID,
		CustomerID: req.CustomerID,
		Note:       req.Note,
		Discount:   req.Discount,
		Tax:        req.Tax,
		CreatedBy:  claims.UserID,
		Items:      svcItems,
	})
	if err != nil {
		writeOrderError(w, err, "create order")
		return
	}

	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, item := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}

	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /orders with optional status/channel/date filters.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
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

	params := database.ListOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("channel"); s != "" {
		params.Channel = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Kitchen handles GET /orders/kitchen: the live queue, oldest first.
func (h *OrderHandler) Kitchen(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListKitchenOrders(r.Context())
	if err != nil {
		log.Printf("ERROR: list kitchen orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
		items, err := h.store.ListOrderItems(r.Context(), o.ID)
		if err != nil {
			log.Printf("ERROR: list order items: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp[i].Items = make([]orderItemResponse, len(items))
		for j, item := range items {
			resp[i].Items[j] = dbOrderItemToResponse(item)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItems(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbOrderToResponse(order)
	resp.Items = make([]orderItemResponse, len(items))
	for i, item := range items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Ticket handles GET /orders/{id}/ticket and streams the receipt PDF.
func (h *OrderHandler) Ticket(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItems(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	pdf, err := h.ticket.Render(order, items)
	if err != nil {
		log.Printf("ERROR: render ticket: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="ticket-`+order.OrderNumber+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		log.Printf("ERROR: write ticket response: %v", err)
	}
}

// UpdateStatus handles PATCH /orders/{id}/status. Completing an unpaid
// order carries the payment details in the same request.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	var payment *service.PaymentDetails
	if req.PaymentMethod != "" {
		payment = &service.PaymentDetails{
			Method:   req.PaymentMethod,
			Tendered: req.TenderedAmount,
		}
	}

	order, err := h.svc.Transition(r.Context(), orderID, req.Status, payment)
	if err != nil {
		writeOrderError(w, err, "update order status")
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// ConfirmPayment handles POST /orders/{id}/payment: settle without
// finishing, e.g. a transfer confirmed while the kitchen still cooks.
func (h *OrderHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.PaymentMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method is required"})
		return
	}

	order, err := h.svc.ConfirmPayment(r.Context(), orderID, service.PaymentDetails{
		Method:   req.PaymentMethod,
		Tendered: req.TenderedAmount,
	})
	if err != nil {
		writeOrderError(w, err, "confirm payment")
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// Cancel handles DELETE /orders/{id}: a transition to cancelled with
// all its side effects (reversal, table release).
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.svc.Transition(r.Context(), orderID, enum.OrderStatusCancelled, nil)
	if err != nil {
		writeOrderError(w, err, "cancel order")
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// --- Helpers ---

// writeOrderError maps service errors to HTTP status codes: validation
// to 400, missing rows to 404, state conflicts to 409.
func writeOrderError(w http.ResponseWriter, err error, op string) {
	switch {
	case isOrderValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrTableNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrTableOccupied),
		errors.Is(err, service.ErrPaymentRequired),
		errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrNoOpenSession),
		errors.Is(err, service.ErrSessionNotOpen):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isOrderValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidChannel) ||
		errors.Is(err, service.ErrInvalidOrigin) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidProductID) ||
		errors.Is(err, service.ErrProductNotFound) ||
		errors.Is(err, service.ErrSizeNotFound) ||
		errors.Is(err, service.ErrModifierNotFound) ||
		errors.Is(err, service.ErrInvalidDiscount) ||
		errors.Is(err, service.ErrInvalidTax) ||
		errors.Is(err, service.ErrNegativeTotal) ||
		errors.Is(err, service.ErrTableRequired) ||
		errors.Is(err, service.ErrInvalidTableID) ||
		errors.Is(err, service.ErrInvalidCustomerID) ||
		errors.Is(err, service.ErrInvalidStatus) ||
		errors.Is(err, service.ErrDeliveryOnly) ||
		errors.Is(err, service.ErrInvalidPayMethod) ||
		errors.Is(err, service.ErrInvalidTendered)
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		Channel:       o.Channel,
		Origin:        o.Origin,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Subtotal:      numericToString(o.Subtotal),
		Discount:      numericToString(o.Discount),
		Tax:           numericToString(o.Tax),
		Total:         numericToString(o.Total),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.TableID.Valid {
		s := uuid.UUID(o.TableID.Bytes).String()
		resp.TableID = &s
	}
	if o.CustomerID.Valid {
		s := uuid.UUID(o.CustomerID.Bytes).String()
		resp.CustomerID = &s
	}
	if o.PaymentMethod.Valid {
		resp.PaymentMethod = &o.PaymentMethod.String
	}
	if o.PaidAmount.Valid {
		s := numericToString(o.PaidAmount)
		resp.PaidAmount = &s
	}
	if o.TenderedAmount.Valid {
		s := numericToString(o.TenderedAmount)
		resp.TenderedAmount = &s
	}
	if o.ChangeAmount.Valid {
		s := numericToString(o.ChangeAmount)
		resp.ChangeAmount = &s
	}
	if o.Note.Valid {
		resp.Note = &o.Note.String
	}
	if o.ConfirmedAt.Valid {
		resp.ConfirmedAt = &o.ConfirmedAt.Time
	}
	if o.ReadyAt.Valid {
		resp.ReadyAt = &o.ReadyAt.Time
	}
	if o.CompletedAt.Valid {
		resp.CompletedAt = &o.CompletedAt.Time
	}
	if o.CancelledAt.Valid {
		resp.CancelledAt = &o.CancelledAt.Time
	}
	return resp
}

func dbOrderItemToResponse(it database.OrderItem) orderItemResponse {
	resp := orderItemResponse{
		ID:             it.ID,
		ProductID:      it.ProductID,
		ProductName:    it.ProductName,
		UnitPrice:      numericToString(it.UnitPrice),
		SizeAdjustment: numericToString(it.SizeAdjustment),
		Modifiers:      it.Modifiers,
		Quantity:       it.Quantity,
		LineTotal:      numericToString(it.LineTotal),
		Status:         it.Status,
	}
	if resp.Modifiers == nil {
		resp.Modifiers = []database.OrderItemModifier{}
	}
	if it.SizeName.Valid {
		resp.SizeName = &it.SizeName.String
	}
	if it.Note.Valid {
		resp.Note = &it.Note.String
	}
	return resp
}
