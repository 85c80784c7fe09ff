package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	Name           string
	Username       string
	HashedPassword string
	Pin            pgtype.Text
	Role           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Category struct {
	ID        uuid.UUID
	Name      string
	SortOrder int32
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductOption is a size or modifier choice stored as JSONB on the
// product, and snapshotted onto order items at creation time.
type ProductOption struct {
	Name       string `json:"name"`
	Adjustment string `json:"adjustment"`
}

type Product struct {
	ID          uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Sizes       []ProductOption
	Modifiers   []ProductOption
	Station     pgtype.Text
	ImageURL    pgtype.Text
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Customer struct {
	ID             uuid.UUID
	Name           string
	Phone          string
	Address        pgtype.Text
	TelegramChatID pgtype.Int8
	Notes          pgtype.Text
	LastOrderAt    pgtype.Timestamptz
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Table struct {
	ID             uuid.UUID
	Number         int32
	Name           string
	Capacity       int32
	Status         string
	CurrentOrderID pgtype.UUID
	GridX          int32
	GridY          int32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CashSession struct {
	ID             uuid.UUID
	OpenedBy       uuid.UUID
	OpeningAmount  pgtype.Numeric
	CashSales      pgtype.Numeric
	CardSales      pgtype.Numeric
	TransferSales  pgtype.Numeric
	NequiSales     pgtype.Numeric
	DaviplataSales pgtype.Numeric
	TotalSales     pgtype.Numeric
	OrdersCount    int32
	Status         string
	ActualAmount   pgtype.Numeric
	ExpectedAmount pgtype.Numeric
	Difference     pgtype.Numeric
	OpenedAt       time.Time
	ClosedAt       pgtype.Timestamptz
	ClosedBy       pgtype.UUID
}

type CashMovement struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Type      string
	Amount    pgtype.Numeric
	Reason    string
	UserID    uuid.UUID
	CreatedAt time.Time
}

type Order struct {
	ID             uuid.UUID
	OrderNumber    string
	OrderDay       time.Time
	Channel        string
	Origin         string
	TableID        pgtype.UUID
	CustomerID     pgtype.UUID
	Status         string
	PaymentStatus  string
	PaymentMethod  pgtype.Text
	PaidAmount     pgtype.Numeric
	TenderedAmount pgtype.Numeric
	ChangeAmount   pgtype.Numeric
	SessionID      pgtype.UUID
	Subtotal       pgtype.Numeric
	Discount       pgtype.Numeric
	Tax            pgtype.Numeric
	Total          pgtype.Numeric
	Note           pgtype.Text
	CreatedBy      pgtype.UUID
	CreatedAt      time.Time
	ConfirmedAt    pgtype.Timestamptz
	ReadyAt        pgtype.Timestamptz
	CompletedAt    pgtype.Timestamptz
	CancelledAt    pgtype.Timestamptz
	UpdatedAt      time.Time
}

// OrderItemModifier is a modifier snapshot on an order item.
type OrderItemModifier struct {
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
}

type OrderItem struct {
	ID             uuid.UUID
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
	Status         string
}
