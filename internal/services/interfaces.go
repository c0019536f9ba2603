package services

import (
	"context"

	"github.com/shopspring/decimal"

	domain "github.com/comanda-app/api/internal/domain"
	"github.com/comanda-app/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	ItemStatus         = domain.ItemStatus
	OrderStatusHistory = domain.OrderStatusHistory
	OrderAudit         = domain.OrderAudit
	Variant            = domain.Variant

	OrderListFilter = repositories.OrderListFilter
)

// LineItemRequest is the caller-facing shape of one requested order line.
// Duplicate variant ids are preserved as separate lines.
type LineItemRequest struct {
	VariantID string
	Quantity  int
	Notes     *string
}

// ResolvedLineItem carries the catalog snapshot taken for one requested line.
// UnitPrice is the price at resolution time and never changes afterwards.
type ResolvedLineItem struct {
	VariantID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Notes     *string
}

// CatalogResolver turns requested lines into priced line items using the
// catalog state at call time.
type CatalogResolver interface {
	Resolve(ctx context.Context, requests []LineItemRequest) ([]ResolvedLineItem, error)
}

// OrderService encapsulates the order lifecycle: creation, status transitions
// for orders and items, mutation of pending orders, and history reads.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	TransitionItemStatus(ctx context.Context, cmd ItemStatusTransitionCommand) (Order, error)
	AddItem(ctx context.Context, cmd AddItemCommand) (Order, error)
	UpdateItemQuantity(ctx context.Context, cmd UpdateItemQuantityCommand) (Order, error)
	RemoveItem(ctx context.Context, cmd RemoveItemCommand) (Order, error)
	ListHistory(ctx context.Context, orderID string) ([]OrderStatusHistory, error)
}

// CreateOrderCommand captures the input for placing a new order.
type CreateOrderCommand struct {
	EstablishmentID string
	ClientID        *string
	WaiterID        *string
	TableLabel      *string
	Notes           *string
	Items           []LineItemRequest
	ActorID         string
}

// OrderStatusTransitionCommand moves an order to a target status.
type OrderStatusTransitionCommand struct {
	OrderID      string
	TargetStatus OrderStatus
	Note         string
	ActorID      string
}

// CancelOrderCommand cancels an order, recording the reason on the order and
// in the history trail.
type CancelOrderCommand struct {
	OrderID string
	Reason  string
	ActorID string
}

// ItemStatusTransitionCommand moves a single order item to a target status.
type ItemStatusTransitionCommand struct {
	OrderID      string
	ItemID       string
	TargetStatus ItemStatus
	ActorID      string
}

// AddItemCommand appends a new line to a pending order.
type AddItemCommand struct {
	OrderID string
	Item    LineItemRequest
	ActorID string
}

// UpdateItemQuantityCommand changes the quantity of an existing line. A
// quantity of zero or less removes the line.
type UpdateItemQuantityCommand struct {
	OrderID  string
	ItemID   string
	Quantity int
	ActorID  string
}

// RemoveItemCommand removes a line from a pending order.
type RemoveItemCommand struct {
	OrderID string
	ItemID  string
	ActorID string
}
