package domain

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order has been placed and is still editable.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPreparing indicates the kitchen has started preparation.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusReady indicates the order is ready to be served or picked up.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusDelivered indicates the order reached the table/customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCompleted indicates the order is settled and closed.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled indicates the order was cancelled before completion.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ItemStatus enumerates valid lifecycle states for order line items. Items
// advance independently of the parent order.
type ItemStatus string

const (
	// ItemStatusPending indicates the item awaits preparation.
	ItemStatusPending ItemStatus = "pending"
	// ItemStatusPreparing indicates the item is being prepared.
	ItemStatusPreparing ItemStatus = "preparing"
	// ItemStatusReady indicates the item is plated and ready.
	ItemStatusReady ItemStatus = "ready"
	// ItemStatusDelivered indicates the item has been served.
	ItemStatusDelivered ItemStatus = "delivered"
	// ItemStatusCancelled indicates the item was struck from the order.
	ItemStatusCancelled ItemStatus = "cancelled"
)

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: {OrderStatusCompleted},
}

var itemStatusTransitions = map[ItemStatus][]ItemStatus{
	ItemStatusPending:   {ItemStatusPreparing, ItemStatusCancelled},
	ItemStatusPreparing: {ItemStatusReady, ItemStatusCancelled},
	ItemStatusReady:     {ItemStatusDelivered},
}

// OrderStatusAllowed reports whether an order may move from one status to
// another. Transitions to the current status are not allowed; callers check
// the current state first.
func OrderStatusAllowed(from, to OrderStatus) bool {
	for _, next := range orderStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ItemStatusAllowed reports whether a line item may move from one status to
// another.
func ItemStatusAllowed(from, to ItemStatus) bool {
	for _, next := range itemStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted for the order.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// IsValid reports whether the value is one of the known order statuses.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady,
		OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted for the item.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusDelivered || s == ItemStatusCancelled
}

// IsValid reports whether the value is one of the known item statuses.
func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusPending, ItemStatusPreparing, ItemStatusReady,
		ItemStatusDelivered, ItemStatusCancelled:
		return true
	}
	return false
}
