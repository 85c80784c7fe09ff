package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/malulos-pos/api/internal/database"
	"github.com/malulos-pos/api/internal/enum"
)

// Errors returned by the order service.
var (
	ErrEmptyItems         = errors.New("items are required")
	ErrInvalidChannel     = errors.New("invalid channel")
	ErrInvalidOrigin      = errors.New("invalid origin")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrInvalidProductID   = errors.New("invalid product_id")
	ErrProductNotFound    = errors.New("product not found or unavailable")
	ErrSizeNotFound       = errors.New("size not found on product")
	ErrModifierNotFound   = errors.New("modifier not found on product")
	ErrInvalidDiscount    = errors.New("invalid discount")
	ErrInvalidTax         = errors.New("invalid tax")
	ErrNegativeTotal      = errors.New("total cannot be negative")
	ErrTableRequired      = errors.New("table_id is required for dine-in orders")
	ErrInvalidTableID     = errors.New("invalid table_id")
	ErrTableNotFound      = errors.New("table not found")
	ErrTableOccupied      = errors.New("table already has an open order")
	ErrInvalidCustomerID  = errors.New("invalid customer_id")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidTransition  = errors.New("transition not allowed")
	ErrDeliveryOnly       = errors.New("on_the_way is only valid for delivery orders")
	ErrPaymentRequired    = errors.New("payment details are required to complete an unpaid order")
	ErrInvalidPayMethod   = errors.New("invalid payment_method")
	ErrInvalidTendered    = errors.New("tendered amount must cover the total")
	ErrAlreadyPaid        = errors.New("order is already paid")
	ErrNoOpenSession      = errors.New("no open cash session")
	ErrSessionNotOpen     = errors.New("cash session is no longer open")
)

// transitions is the explicit state table: current status -> allowed
// next statuses. Anything not listed is rejected.
var transitions = map[string][]string{
	enum.OrderStatusPending:   {enum.OrderStatusConfirmed, enum.OrderStatusCancelled},
	enum.OrderStatusConfirmed: {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing: {enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusReady:     {enum.OrderStatusCompleted, enum.OrderStatusOnTheWay, enum.OrderStatusCancelled},
	enum.OrderStatusOnTheWay:  {enum.OrderStatusDelivered, enum.OrderStatusCancelled},
}

func transitionAllowed(current, next string) bool {
	for _, s := range transitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order lifecycle needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	NextOrderNumber(ctx context.Context) (int32, error)
	GetProductForOrder(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	SetOrderStatus(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error)
	SetOrderItemsStatus(ctx context.Context, orderID uuid.UUID, status string) error
	SetOrderPayment(ctx context.Context, arg database.SetOrderPaymentParams) (database.Order, error)
	ClearOrderPayment(ctx context.Context, id uuid.UUID) error
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
	OccupyTable(ctx context.Context, id, orderID uuid.UUID) (database.Table, error)
	ReleaseTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	GetActiveSessionForUpdate(ctx context.Context) (database.CashSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (database.CashSession, error)
	RecordSale(ctx context.Context, sessionID uuid.UUID, method string, amount pgtype.Numeric) (database.CashSession, error)
	ReverseSale(ctx context.Context, sessionID uuid.UUID, method string, amount pgtype.Numeric) (database.CashSession, error)
	TouchCustomerLastOrder(ctx context.Context, id uuid.UUID) error
	GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// Notifier delivers best-effort customer notifications. Failures are
// logged and never affect the transaction that triggered them.
type Notifier interface {
	NotifyOrderStatus(ctx context.Context, order database.Order)
}

// Broadcaster pushes order events to connected POS/kitchen clients.
type Broadcaster interface {
	OrderEvent(eventType string, payload interface{})
}

// OrderService owns every write to order status and table occupancy.
type OrderService struct {
	pool        TxBeginner
	newStore    NewOrderStore
	notifier    Notifier
	broadcaster Broadcaster
}

func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// SetNotifier attaches the Telegram notifier; nil disables notifications.
func (s *OrderService) SetNotifier(n Notifier) { s.notifier = n }

// SetBroadcaster attaches the websocket hub; nil disables broadcasts.
func (s *OrderService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	Channel    string
	Origin     string
	TableID    string
	CustomerID string
	Note       string
	Discount   string
	Tax        string
	CreatedBy  uuid.UUID
	Items      []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line item in the order.
type CreateOrderItemRequest struct {
	ProductID     string
	SizeName      string
	ModifierNames []string
	Quantity      int32
	Note          string
}

// CreateOrderResult is the full created order with items.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// processedItem holds a priced line item ready to insert.
type processedItem struct {
	params database.CreateOrderItemParams
}

// CreateOrder validates, prices, and creates an order atomically. The
// order number comes from the per-day counter row locked inside the
// same transaction, so concurrent creators get distinct sequential
// numbers. Totals are fixed here and never recomputed.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if err := validateChannel(req.Channel); err != nil {
		return nil, err
	}
	origin := req.Origin
	if origin == "" {
		origin = enum.OriginPOS
	}
	if origin != enum.OriginPOS && origin != enum.OriginTelegram {
		return nil, ErrInvalidOrigin
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.Channel == enum.ChannelDineIn && req.TableID == "" {
		return nil, ErrTableRequired
	}

	var tableID uuid.UUID
	if req.TableID != "" {
		var err error
		tableID, err = uuid.Parse(req.TableID)
		if err != nil {
			return nil, ErrInvalidTableID
		}
	}

	var customerID uuid.UUID
	if req.CustomerID != "" {
		var err error
		customerID, err = uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, ErrInvalidCustomerID
		}
	}

	discount, err := parseAmount(req.Discount, ErrInvalidDiscount)
	if err != nil {
		return nil, err
	}
	tax, err := parseAmount(req.Tax, ErrInvalidTax)
	if err != nil {
		return nil, err
	}

	// --- Begin transaction ---
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Generate order number (locks today's counter row) ---
	nextNum, err := store.NextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("#%03d", nextNum)

	// --- Process items: validate + snapshot prices ---
	subtotal := decimal.Zero
	var items []processedItem

	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}

		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
		}

		product, err := store.GetProductForOrder(ctx, productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get product: %w", i, err)
		}

		unitPrice := numericToDecimal(product.Price)

		// Resolve size by name against the product's option list.
		sizeName := pgtype.Text{}
		sizeAdjustment := decimal.Zero
		if item.SizeName != "" {
			opt, ok := findOption(product.Sizes, item.SizeName)
			if !ok {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrSizeNotFound)
			}
			adj, err := decimal.NewFromString(opt.Adjustment)
			if err != nil {
				return nil, fmt.Errorf("item[%d]: size adjustment: %w", i, err)
			}
			sizeName = pgtype.Text{String: opt.Name, Valid: true}
			sizeAdjustment = adj
		}

		// Resolve modifiers; each adds its adjustment per unit.
		modifiersTotal := decimal.Zero
		var mods []database.OrderItemModifier
		for j, name := range item.ModifierNames {
			opt, ok := findOption(product.Modifiers, name)
			if !ok {
				return nil, fmt.Errorf("item[%d].modifiers[%d]: %w", i, j, ErrModifierNotFound)
			}
			price, err := decimal.NewFromString(opt.Adjustment)
			if err != nil {
				return nil, fmt.Errorf("item[%d].modifiers[%d]: price: %w", i, j, err)
			}
			modifiersTotal = modifiersTotal.Add(price)
			mods = append(mods, database.OrderItemModifier{
				Name:      opt.Name,
				UnitPrice: price.StringFixed(2),
			})
		}

		qty := decimal.NewFromInt32(item.Quantity)
		lineTotal := unitPrice.Add(sizeAdjustment).Add(modifiersTotal).Mul(qty)
		subtotal = subtotal.Add(lineTotal)

		note := pgtype.Text{}
		if item.Note != "" {
			note = pgtype.Text{String: item.Note, Valid: true}
		}

		items = append(items, processedItem{
			params: database.CreateOrderItemParams{
				ProductID:      productID,
				ProductName:    product.Name,
				UnitPrice:      decimalToNumeric(unitPrice),
				SizeName:       sizeName,
				SizeAdjustment: decimalToNumeric(sizeAdjustment),
				Modifiers:      mods,
				Quantity:       item.Quantity,
				LineTotal:      decimalToNumeric(lineTotal),
				Note:           note,
			},
		})
	}

	// total = subtotal - discount + tax, fixed at creation.
	total := subtotal.Sub(discount).Add(tax)
	if total.IsNegative() {
		return nil, ErrNegativeTotal
	}

	// --- Build order params ---
	tableRef := pgtype.UUID{}
	if tableID != uuid.Nil {
		tableRef = pgtype.UUID{Bytes: tableID, Valid: true}
	}
	customerRef := pgtype.UUID{}
	if customerID != uuid.Nil {
		customerRef = pgtype.UUID{Bytes: customerID, Valid: true}
	}
	note := pgtype.Text{}
	if req.Note != "" {
		note = pgtype.Text{String: req.Note, Valid: true}
	}
	createdBy := pgtype.UUID{}
	if req.CreatedBy != uuid.Nil {
		createdBy = pgtype.UUID{Bytes: req.CreatedBy, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber: orderNumber,
		Channel:     req.Channel,
		Origin:      origin,
		TableID:     tableRef,
		CustomerID:  customerRef,
		Subtotal:    decimalToNumeric(subtotal),
		Discount:    decimalToNumeric(discount),
		Tax:         decimalToNumeric(tax),
		Total:       decimalToNumeric(total),
		Note:        note,
		CreatedBy:   createdBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Seat the order at its table (dine-in only) ---
	if req.Channel == enum.ChannelDineIn {
		if _, err := store.GetTableForUpdate(ctx, tableID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTableNotFound
			}
			return nil, fmt.Errorf("lock table: %w", err)
		}
		if _, err := store.OccupyTable(ctx, tableID, order.ID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTableOccupied
			}
			return nil, fmt.Errorf("occupy table: %w", err)
		}
	}

	// --- Insert items ---
	var created []database.OrderItem
	for _, pi := range items {
		pi.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		created = append(created, item)
	}

	if customerID != uuid.Nil {
		if err := store.TouchCustomerLastOrder(ctx, customerID); err != nil {
			return nil, fmt.Errorf("touch customer: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.afterCommit("order_created", order)

	return &CreateOrderResult{Order: order, Items: created}, nil
}

// PaymentDetails carries the fields needed to mark an order paid.
type PaymentDetails struct {
	Method   string
	Tendered string // cash only; empty means exact
}

// Transition applies a status change and all its side effects as a
// single transaction: timestamps, pay-on-completion, table release,
// cash-session update, paid-cancellation reversal. The order row is
// locked first so concurrent transitions serialize.
func (s *OrderService) Transition(ctx context.Context, orderID uuid.UUID, next string, payment *PaymentDetails) (database.Order, error) {
	if _, known := transitions[next]; !known && !enum.IsTerminalOrderStatus(next) {
		return database.Order{}, ErrInvalidStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("lock order: %w", err)
	}

	if !transitionAllowed(order.Status, next) {
		return database.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
	}
	if next == enum.OrderStatusOnTheWay && order.Channel != enum.ChannelDelivery {
		return database.Order{}, ErrDeliveryOnly
	}

	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}
	stamps := database.SetOrderStatusParams{ID: orderID, Status: next}
	switch next {
	case enum.OrderStatusConfirmed:
		stamps.ConfirmedAt = now
	case enum.OrderStatusReady:
		stamps.ReadyAt = now
	case enum.OrderStatusCompleted, enum.OrderStatusDelivered:
		stamps.CompletedAt = now
	case enum.OrderStatusCancelled:
		stamps.CancelledAt = now
	}

	// Pay on completion: finishing an unpaid order must settle it in
	// the same transaction.
	if (next == enum.OrderStatusCompleted || next == enum.OrderStatusDelivered) &&
		order.PaymentStatus != enum.PaymentStatusPaid {
		if payment == nil {
			return database.Order{}, ErrPaymentRequired
		}
		order, err = s.applyPayment(ctx, store, order, *payment)
		if err != nil {
			return database.Order{}, err
		}
	}

	// Cancelling a paid order reverses exactly what was recorded.
	if next == enum.OrderStatusCancelled && order.PaymentStatus == enum.PaymentStatusPaid {
		if err := s.reversePayment(ctx, store, order); err != nil {
			return database.Order{}, err
		}
	}

	// Kitchen convenience: the whole ticket's items flip with the order.
	if next == enum.OrderStatusReady {
		if err := store.SetOrderItemsStatus(ctx, orderID, enum.OrderItemStatusReady); err != nil {
			return database.Order{}, fmt.Errorf("mark items ready: %w", err)
		}
	}

	updated, err := store.SetOrderStatus(ctx, stamps)
	if err != nil {
		return database.Order{}, fmt.Errorf("set status: %w", err)
	}

	// Dine-in orders free their table on any terminal state.
	if order.Channel == enum.ChannelDineIn && order.TableID.Valid && enum.IsTerminalOrderStatus(next) {
		if _, err := store.ReleaseTable(ctx, uuid.UUID(order.TableID.Bytes)); err != nil {
			return database.Order{}, fmt.Errorf("release table: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.afterCommit("order_status_changed", updated)

	return updated, nil
}

// ConfirmPayment settles an order without finishing it, e.g. a Telegram
// transfer confirmed by the admin while the kitchen is still working.
// A pending order moves to preparing as part of the same transaction.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID uuid.UUID, payment PaymentDetails) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("lock order: %w", err)
	}

	if order.Status == enum.OrderStatusCancelled {
		return database.Order{}, fmt.Errorf("%w: %s -> paid", ErrInvalidTransition, order.Status)
	}
	if order.PaymentStatus == enum.PaymentStatusPaid {
		return database.Order{}, ErrAlreadyPaid
	}

	order, err = s.applyPayment(ctx, store, order, payment)
	if err != nil {
		return database.Order{}, err
	}

	updated := order
	if order.Status == enum.OrderStatusPending {
		updated, err = store.SetOrderStatus(ctx, database.SetOrderStatusParams{
			ID:          orderID,
			Status:      enum.OrderStatusPreparing,
			ConfirmedAt: pgtype.Timestamptz{Time: time.Now(), Valid: true},
		})
		if err != nil {
			return database.Order{}, fmt.Errorf("set status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.afterCommit("order_paid", updated)

	return updated, nil
}

// ListItems returns the line items of an order.
func (s *OrderService) ListItems(ctx context.Context, store OrderStore, orderID uuid.UUID) ([]database.OrderItem, error) {
	return store.ListOrderItems(ctx, orderID)
}

// applyPayment marks the order paid and records the sale on the open
// session, all against the caller's transaction. The session row is
// locked for the duration so concurrent payments cannot lose updates.
func (s *OrderService) applyPayment(ctx context.Context, store OrderStore, order database.Order, payment PaymentDetails) (database.Order, error) {
	if !enum.IsValidPaymentMethod(payment.Method) {
		return database.Order{}, ErrInvalidPayMethod
	}

	session, err := store.GetActiveSessionForUpdate(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrNoOpenSession
		}
		return database.Order{}, fmt.Errorf("lock session: %w", err)
	}

	total := numericToDecimal(order.Total)

	tendered := pgtype.Numeric{}
	change := pgtype.Numeric{}
	if payment.Method == enum.PaymentMethodCash {
		t := total
		if payment.Tendered != "" {
			t, err = decimal.NewFromString(payment.Tendered)
			if err != nil {
				return database.Order{}, ErrInvalidTendered
			}
		}
		if t.LessThan(total) {
			return database.Order{}, ErrInvalidTendered
		}
		tendered = decimalToNumeric(t)
		change = decimalToNumeric(t.Sub(total))
	}

	updated, err := store.SetOrderPayment(ctx, database.SetOrderPaymentParams{
		ID:             order.ID,
		PaymentMethod:  payment.Method,
		PaidAmount:     order.Total,
		TenderedAmount: tendered,
		ChangeAmount:   change,
		SessionID:      session.ID,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("set payment: %w", err)
	}

	if _, err := store.RecordSale(ctx, session.ID, payment.Method, order.Total); err != nil {
		return database.Order{}, fmt.Errorf("record sale: %w", err)
	}

	return updated, nil
}

// reversePayment backs the recorded sale out of the session that
// absorbed it. The session must still be open.
func (s *OrderService) reversePayment(ctx context.Context, store OrderStore, order database.Order) error {
	if !order.SessionID.Valid || !order.PaymentMethod.Valid {
		return ErrSessionNotOpen
	}
	sessionID := uuid.UUID(order.SessionID.Bytes)

	if _, err := store.ReverseSale(ctx, sessionID, order.PaymentMethod.String, order.PaidAmount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionNotOpen
		}
		return fmt.Errorf("reverse sale: %w", err)
	}
	if err := store.ClearOrderPayment(ctx, order.ID); err != nil {
		return fmt.Errorf("clear payment: %w", err)
	}
	return nil
}

// afterCommit fans the event out to the websocket hub and, for Telegram
// orders, the customer. Both are fire-and-forget.
func (s *OrderService) afterCommit(eventType string, order database.Order) {
	if s.broadcaster != nil {
		s.broadcaster.OrderEvent(eventType, order)
	}
	if s.notifier != nil && order.Origin == enum.OriginTelegram {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			s.notifier.NotifyOrderStatus(ctx, order)
		}()
	}
}

// --- Helpers ---

func validateChannel(c string) error {
	switch c {
	case enum.ChannelDineIn, enum.ChannelTakeout, enum.ChannelDelivery:
		return nil
	}
	return ErrInvalidChannel
}

func parseAmount(s string, invalid error) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, invalid
	}
	return d, nil
}

func findOption(opts []database.ProductOption, name string) (database.ProductOption, bool) {
	for _, o := range opts {
		if o.Name == name {
			return o, true
		}
	}
	return database.ProductOption{}, false
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
