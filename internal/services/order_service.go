package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/comanda-app/api/internal/domain"
	"github.com/comanda-app/api/internal/repositories"
)

const (
	orderEventCreated           = "order.created"
	orderEventStatusChanged     = "order.status.changed"
	orderEventItemStatusChanged = "order.item.status.changed"

	orderIDPrefix   = "ord_"
	itemIDPrefix    = "itm_"
	historyIDPrefix = "hst_"

	orderNumberCounterID = "orders"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order or one of its items could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderEmpty indicates an order would be left without any items.
	ErrOrderEmpty = errors.New("order: must contain at least one item")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderTerminal indicates the parent order is completed or cancelled.
	ErrOrderTerminal = errors.New("order: order is in a terminal status")
	// ErrOrderNotMutable indicates item mutations were attempted past the pending status.
	ErrOrderNotMutable = errors.New("order: items can only be changed while pending")
	// ErrOrderConflict indicates concurrent modification conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates the persistence layer could not be reached.
	// This is the only class callers may retry.
	ErrOrderUnavailable = errors.New("order: repository unavailable")
)

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	ItemID         string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders       repositories.OrderRepository
	History      repositories.OrderHistoryRepository
	Counters     repositories.CounterRepository
	Resolver     CatalogResolver
	UnitOfWork   repositories.UnitOfWork
	Clock        func() time.Time
	IDGenerator  func() string
	Events       OrderEventPublisher
	Logger       func(ctx context.Context, event string, fields map[string]any)
	Currency     string
	NumberPrefix string
}

type orderService struct {
	orders       repositories.OrderRepository
	history      repositories.OrderHistoryRepository
	counters     repositories.CounterRepository
	resolver     CatalogResolver
	unitOfWork   repositories.UnitOfWork
	clock        func() time.Time
	newID        func() string
	events       OrderEventPublisher
	logger       func(context.Context, string, map[string]any)
	currency     string
	numberPrefix string
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.History == nil {
		return nil, errors.New("order service: history repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("order service: catalog resolver is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	currency := strings.TrimSpace(deps.Currency)
	if currency == "" {
		currency = "EUR"
	}

	prefix := strings.TrimSpace(deps.NumberPrefix)
	if prefix == "" {
		prefix = "CO"
	}

	return &orderService{
		orders:     deps.Orders,
		history:    deps.History,
		counters:   deps.Counters,
		resolver:   deps.Resolver,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:        idGen,
		events:       deps.Events,
		logger:       logger,
		currency:     currency,
		numberPrefix: prefix,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	establishmentID := strings.TrimSpace(cmd.EstablishmentID)
	if establishmentID == "" {
		return Order{}, fmt.Errorf("%w: establishment id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, ErrOrderEmpty
	}

	resolved, err := s.resolver.Resolve(ctx, cmd.Items)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)

	items := make([]domain.OrderItem, 0, len(resolved))
	for _, line := range resolved {
		items = append(items, domain.OrderItem{
			ID:        s.nextItemID(),
			VariantID: line.VariantID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Total:     domain.LineTotal(line.UnitPrice, line.Quantity),
			Status:    domain.ItemStatusPending,
			Notes:     cloneStringPtr(line.Notes),
			AddedAt:   now,
		})
	}

	order := domain.Order{
		ID:              s.nextOrderID(),
		EstablishmentID: establishmentID,
		ClientID:        cloneStringPtr(cmd.ClientID),
		WaiterID:        cloneStringPtr(cmd.WaiterID),
		TableLabel:      cloneStringPtr(cmd.TableLabel),
		Status:          domain.OrderStatusPending,
		Currency:        s.currency,
		TotalAmount:     domain.ItemsTotal(items),
		Notes:           cloneStringPtr(cmd.Notes),
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if actor != "" {
		order.Audit.CreatedBy = valuePtr(actor)
		order.Audit.UpdatedBy = valuePtr(actor)
	}

	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}
	order.OrderNumber = number

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		entry := s.newHistoryEntry(order.ID, domain.OrderStatusPending, actor, "order created", now)
		if err := s.history.Append(txCtx, entry); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CurrentStatus: string(order.Status),
		ActorID:       actor,
		OccurredAt:    now,
	})

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	if strings.TrimSpace(filter.EstablishmentID) == "" {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: establishment id is required", ErrOrderInvalidInput)
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := domain.OrderStatus(strings.TrimSpace(string(cmd.TargetStatus)))
	if !target.IsValid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.TargetStatus)
	}
	if target == domain.OrderStatusCancelled {
		return s.cancel(ctx, CancelOrderCommand{OrderID: orderID, Reason: cmd.Note, ActorID: cmd.ActorID})
	}

	actor := strings.TrimSpace(cmd.ActorID)
	note := strings.TrimSpace(cmd.Note)
	now := s.now()

	var order domain.Order
	var prev domain.OrderStatus

	// The read happens inside the transaction so the transition is validated
	// against the committed state, not a stale snapshot.
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		prev = order.Status
		if !domain.OrderStatusAllowed(order.Status, target) {
			return fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, target)
		}

		order.Status = target
		order.UpdatedAt = now
		if actor != "" {
			order.Audit.UpdatedBy = valuePtr(actor)
		}

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		entry := s.newHistoryEntry(order.ID, target, actor, note, now)
		if err := s.history.Append(txCtx, entry); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: string(prev),
		CurrentStatus:  string(order.Status),
		ActorID:        actor,
		OccurredAt:     now,
	})

	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	cmd.OrderID = strings.TrimSpace(cmd.OrderID)
	if cmd.OrderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	return s.cancel(ctx, cmd)
}

func (s *orderService) cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	actor := strings.TrimSpace(cmd.ActorID)
	reason := strings.TrimSpace(cmd.Reason)
	now := s.now()

	note := "order cancelled"
	if reason != "" {
		note = reason
	}

	var order domain.Order
	var prev domain.OrderStatus

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.FindByID(txCtx, cmd.OrderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		prev = order.Status
		if !domain.OrderStatusAllowed(order.Status, domain.OrderStatusCancelled) {
			return fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, domain.OrderStatusCancelled)
		}

		order.Status = domain.OrderStatusCancelled
		order.CancelledAt = &now
		order.CancelReason = optionalString(reason)
		order.UpdatedAt = now
		if actor != "" {
			order.Audit.UpdatedBy = valuePtr(actor)
		}

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		entry := s.newHistoryEntry(order.ID, domain.OrderStatusCancelled, actor, note, now)
		if err := s.history.Append(txCtx, entry); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: string(prev),
		CurrentStatus:  string(order.Status),
		ActorID:        actor,
		OccurredAt:     now,
	})

	return order, nil
}

func (s *orderService) TransitionItemStatus(ctx context.Context, cmd ItemStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	itemID := strings.TrimSpace(cmd.ItemID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if itemID == "" {
		return Order{}, fmt.Errorf("%w: item id is required", ErrOrderInvalidInput)
	}
	target := domain.ItemStatus(strings.TrimSpace(string(cmd.TargetStatus)))
	if !target.IsValid() {
		return Order{}, fmt.Errorf("%w: unknown item status %q", ErrOrderInvalidInput, cmd.TargetStatus)
	}

	actor := strings.TrimSpace(cmd.ActorID)
	now := s.now()

	var order domain.Order
	var prev domain.ItemStatus

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		if order.Status.IsTerminal() {
			return fmt.Errorf("%w: %s", ErrOrderTerminal, order.Status)
		}

		idx := findItemIndex(order.Items, itemID)
		if idx < 0 {
			return fmt.Errorf("%w: item %s", ErrOrderNotFound, itemID)
		}

		item := order.Items[idx]
		prev = item.Status
		if !domain.ItemStatusAllowed(item.Status, target) {
			return fmt.Errorf("%w: item %s to %s", ErrOrderInvalidState, item.Status, target)
		}

		item.Status = target
		item.UpdatedAt = &now
		order.Items[idx] = item

		if target == domain.ItemStatusCancelled {
			order.TotalAmount = domain.ItemsTotal(order.Items)
		}
		order.UpdatedAt = now
		if actor != "" {
			order.Audit.UpdatedBy = valuePtr(actor)
		}

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventItemStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		ItemID:         itemID,
		PreviousStatus: string(prev),
		CurrentStatus:  string(target),
		ActorID:        actor,
		OccurredAt:     now,
	})

	return order, nil
}

func (s *orderService) AddItem(ctx context.Context, cmd AddItemCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	resolved, err := s.resolver.Resolve(ctx, []LineItemRequest{cmd.Item})
	if err != nil {
		return Order{}, err
	}
	line := resolved[0]

	actor := strings.TrimSpace(cmd.ActorID)
	now := s.now()

	var order domain.Order
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if order.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: order is %s", ErrOrderNotMutable, order.Status)
		}

		order.Items = append(order.Items, domain.OrderItem{
			ID:        s.nextItemID(),
			VariantID: line.VariantID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Total:     domain.LineTotal(line.UnitPrice, line.Quantity),
			Status:    domain.ItemStatusPending,
			Notes:     cloneStringPtr(line.Notes),
			AddedAt:   now,
		})
		s.touch(&order, actor, now)

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	return order, nil
}

func (s *orderService) UpdateItemQuantity(ctx context.Context, cmd UpdateItemQuantityCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	itemID := strings.TrimSpace(cmd.ItemID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if itemID == "" {
		return Order{}, fmt.Errorf("%w: item id is required", ErrOrderInvalidInput)
	}

	if cmd.Quantity <= 0 {
		return s.RemoveItem(ctx, RemoveItemCommand{OrderID: orderID, ItemID: itemID, ActorID: cmd.ActorID})
	}

	actor := strings.TrimSpace(cmd.ActorID)
	now := s.now()

	var order domain.Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if order.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: order is %s", ErrOrderNotMutable, order.Status)
		}

		idx := findItemIndex(order.Items, itemID)
		if idx < 0 {
			return fmt.Errorf("%w: item %s", ErrOrderNotFound, itemID)
		}

		item := order.Items[idx]
		item.Quantity = cmd.Quantity
		item.Total = domain.LineTotal(item.UnitPrice, cmd.Quantity)
		item.UpdatedAt = &now
		order.Items[idx] = item
		s.touch(&order, actor, now)

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	return order, nil
}

func (s *orderService) RemoveItem(ctx context.Context, cmd RemoveItemCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	itemID := strings.TrimSpace(cmd.ItemID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if itemID == "" {
		return Order{}, fmt.Errorf("%w: item id is required", ErrOrderInvalidInput)
	}

	actor := strings.TrimSpace(cmd.ActorID)
	now := s.now()

	var order domain.Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if order.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: order is %s", ErrOrderNotMutable, order.Status)
		}

		idx := findItemIndex(order.Items, itemID)
		if idx < 0 {
			return fmt.Errorf("%w: item %s", ErrOrderNotFound, itemID)
		}
		if remainingItems(order.Items, itemID) == 0 {
			return fmt.Errorf("%w: cannot remove the last item", ErrOrderEmpty)
		}

		order.Items = append(order.Items[:idx], order.Items[idx+1:]...)
		s.touch(&order, actor, now)

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	return order, nil
}

func (s *orderService) ListHistory(ctx context.Context, orderID string) ([]OrderStatusHistory, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	if _, err := s.orders.FindByID(ctx, orderID); err != nil {
		return nil, s.mapRepositoryError(err)
	}

	entries, err := s.history.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return entries, nil
}

// touch recomputes the total over non-cancelled items and stamps the update.
func (s *orderService) touch(order *domain.Order, actor string, now time.Time) {
	order.TotalAmount = domain.ItemsTotal(order.Items)
	order.UpdatedAt = now
	if actor != "" {
		order.Audit.UpdatedBy = valuePtr(actor)
	}
}

func (s *orderService) newHistoryEntry(orderID string, status domain.OrderStatus, actor, note string, now time.Time) domain.OrderStatusHistory {
	return domain.OrderStatusHistory{
		ID:        historyIDPrefix + s.newID(),
		OrderID:   orderID,
		Status:    status,
		ActorID:   optionalString(actor),
		Note:      note,
		CreatedAt: now,
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}

	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounterID, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d-%06d", s.numberPrefix, now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) nextItemID() string {
	return itemIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func findItemIndex(items []domain.OrderItem, itemID string) int {
	for i, item := range items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// remainingItems counts the non-cancelled items left if itemID were removed.
func remainingItems(items []domain.OrderItem, itemID string) int {
	count := 0
	for _, item := range items {
		if item.ID == itemID || item.Status == domain.ItemStatusCancelled {
			continue
		}
		count++
	}
	return count
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	ref := *value
	return &ref
}

func valuePtr[T any](v T) *T {
	return &v
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	ref := v
	return &ref
}
