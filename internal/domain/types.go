package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results together with the continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// Variant is a purchasable unit of a catalog product carrying its own price.
// The catalog owns its lifecycle; order components only read it.
type Variant struct {
	ID        string
	ProductID string
	Name      string
	Price     decimal.Decimal
	Active    bool
	UpdatedAt time.Time
}

// Order is the root aggregate of a customer's purchase intent at one establishment.
// It owns its items and its append-only status history.
type Order struct {
	ID              string
	OrderNumber     string
	EstablishmentID string
	ClientID        *string
	WaiterID        *string
	TableLabel      *string
	Status          OrderStatus
	Currency        string
	TotalAmount     decimal.Decimal
	PaymentMethod   *string
	PaymentStatus   *string
	Notes           *string
	Items           []OrderItem
	Audit           OrderAudit
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CancelledAt     *time.Time
	CancelReason    *string

	// History is populated on demand; the authoritative records live in the
	// order's history subcollection and are never mutated.
	History []OrderStatusHistory
}

// OrderItem is one line within an order referencing a catalog variant. The unit
// price is a snapshot taken when the item was added and is immune to later
// catalog price changes.
type OrderItem struct {
	ID        string
	VariantID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	Status    ItemStatus
	Notes     *string
	AddedAt   time.Time
	UpdatedAt *time.Time
}

// OrderStatusHistory is the immutable audit record of one order status
// transition, including the implicit record written at creation.
type OrderStatusHistory struct {
	ID        string
	OrderID   string
	Status    OrderStatus
	ActorID   *string
	Note      string
	CreatedAt time.Time
}

// OrderAudit records the actors responsible for creating/updating the order.
type OrderAudit struct {
	CreatedBy *string
	UpdatedBy *string
}

// ItemsTotal sums unit price times quantity across all non-cancelled items
// using exact decimal arithmetic.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.Status == ItemStatusCancelled {
			continue
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// LineTotal derives the total for a single line item.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
