package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusOnTheWay  = "on_the_way"
	OrderStatusDelivered = "delivered"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

const (
	OrderItemStatusPending   = "pending"
	OrderItemStatusPreparing = "preparing"
	OrderItemStatusReady     = "ready"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
	TableStatusPaying    = "paying"
	TableStatusReserved  = "reserved"
)

const (
	SessionStatusOpen   = "open"
	SessionStatusClosed = "closed"
)

// ── Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "admin"
	UserRoleCashier = "cashier"
	UserRoleWaiter  = "waiter"
	UserRoleKitchen = "kitchen"
)

const (
	ChannelDineIn   = "dine_in"
	ChannelTakeout  = "takeout"
	ChannelDelivery = "delivery"
)

const (
	OriginPOS      = "pos"
	OriginTelegram = "telegram"
)

const (
	MovementIn  = "in"
	MovementOut = "out"
)

// ── Configurable labels (no DB constraint beyond the method list) ──

const (
	PaymentMethodCash      = "cash"
	PaymentMethodCard      = "card"
	PaymentMethodTransfer  = "transfer"
	PaymentMethodNequi     = "nequi"
	PaymentMethodDaviplata = "daviplata"
)

// PaymentMethods lists every accepted method, in report order.
var PaymentMethods = []string{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodTransfer,
	PaymentMethodNequi,
	PaymentMethodDaviplata,
}

// IsValidPaymentMethod reports whether m is an accepted payment method.
func IsValidPaymentMethod(m string) bool {
	for _, pm := range PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}

// IsTerminalOrderStatus reports whether s is a final order state.
func IsTerminalOrderStatus(s string) bool {
	switch s {
	case OrderStatusCompleted, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}
