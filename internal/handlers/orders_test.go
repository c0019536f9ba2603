package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/comanda-app/api/internal/domain"
	"github.com/comanda-app/api/internal/services"
)

type stubOrderService struct {
	createFn      func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	getFn         func(ctx context.Context, orderID string) (services.Order, error)
	listFn        func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	transitionFn  func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error)
	cancelFn      func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error)
	itemStatusFn  func(ctx context.Context, cmd services.ItemStatusTransitionCommand) (services.Order, error)
	addItemFn     func(ctx context.Context, cmd services.AddItemCommand) (services.Order, error)
	updateQtyFn   func(ctx context.Context, cmd services.UpdateItemQuantityCommand) (services.Order, error)
	removeItemFn  func(ctx context.Context, cmd services.RemoveItemCommand) (services.Order, error)
	listHistoryFn func(ctx context.Context, orderID string) ([]services.OrderStatusHistory, error)
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn == nil {
		return services.Order{}, nil
	}
	return s.createFn(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn == nil {
		return services.Order{}, nil
	}
	return s.getFn(ctx, orderID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFn == nil {
		return domain.CursorPage[services.Order]{}, nil
	}
	return s.listFn(ctx, filter)
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
	if s.transitionFn == nil {
		return services.Order{}, nil
	}
	return s.transitionFn(ctx, cmd)
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFn == nil {
		return services.Order{}, nil
	}
	return s.cancelFn(ctx, cmd)
}

func (s *stubOrderService) TransitionItemStatus(ctx context.Context, cmd services.ItemStatusTransitionCommand) (services.Order, error) {
	if s.itemStatusFn == nil {
		return services.Order{}, nil
	}
	return s.itemStatusFn(ctx, cmd)
}

func (s *stubOrderService) AddItem(ctx context.Context, cmd services.AddItemCommand) (services.Order, error) {
	if s.addItemFn == nil {
		return services.Order{}, nil
	}
	return s.addItemFn(ctx, cmd)
}

func (s *stubOrderService) UpdateItemQuantity(ctx context.Context, cmd services.UpdateItemQuantityCommand) (services.Order, error) {
	if s.updateQtyFn == nil {
		return services.Order{}, nil
	}
	return s.updateQtyFn(ctx, cmd)
}

func (s *stubOrderService) RemoveItem(ctx context.Context, cmd services.RemoveItemCommand) (services.Order, error) {
	if s.removeItemFn == nil {
		return services.Order{}, nil
	}
	return s.removeItemFn(ctx, cmd)
}

func (s *stubOrderService) ListHistory(ctx context.Context, orderID string) ([]services.OrderStatusHistory, error) {
	if s.listHistoryFn == nil {
		return nil, nil
	}
	return s.listHistoryFn(ctx, orderID)
}

func newOrderRouter(svc services.OrderService) http.Handler {
	r := chi.NewRouter()
	h := NewOrderHandlers(svc)
	r.Route("/orders", h.Routes)
	return r
}

func sampleOrder() services.Order {
	created := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
	table := "12"
	actor := "waiter-1"
	return services.Order{
		ID:              "ord_01HTEST",
		OrderNumber:     "CO-2026-000042",
		EstablishmentID: "est-1",
		TableLabel:      &table,
		Status:          domain.OrderStatusPending,
		Currency:        "EUR",
		TotalAmount:     decimal.RequireFromString("20.20"),
		Items: []services.OrderItem{
			{
				ID:        "itm_01HTEST",
				VariantID: "var-francesinha",
				Name:      "Francesinha",
				Quantity:  2,
				UnitPrice: decimal.RequireFromString("9.50"),
				Total:     decimal.RequireFromString("19.00"),
				Status:    domain.ItemStatusPending,
				AddedAt:   created,
			},
			{
				ID:        "itm_02HTEST",
				VariantID: "var-espresso",
				Name:      "Espresso",
				Quantity:  1,
				UnitPrice: decimal.RequireFromString("1.20"),
				Total:     decimal.RequireFromString("1.20"),
				Status:    domain.ItemStatusPending,
				AddedAt:   created,
			},
		},
		Audit:     services.OrderAudit{CreatedBy: &actor},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestCreateOrderReturnsCreated(t *testing.T) {
	var captured services.CreateOrderCommand
	svc := &stubOrderService{
		createFn: func(_ context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}
	router := newOrderRouter(svc)

	body := `{"establishment_id":"est-1","table_label":"12","items":[{"variant_id":"var-francesinha","quantity":2},{"variant_id":"var-espresso","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/orders/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if captured.EstablishmentID != "est-1" {
		t.Errorf("unexpected establishment id: %s", captured.EstablishmentID)
	}
	if len(captured.Items) != 2 || captured.Items[0].VariantID != "var-francesinha" {
		t.Errorf("unexpected items: %+v", captured.Items)
	}

	payload := decodeBody(t, rec)
	order, ok := payload["order"].(map[string]any)
	if !ok {
		t.Fatalf("expected order object, got %v", payload)
	}
	if order["total"] != "20.2" {
		t.Errorf("unexpected total: %v", order["total"])
	}
	if order["order_number"] != "CO-2026-000042" {
		t.Errorf("unexpected order number: %v", order["order_number"])
	}
	items, ok := order["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 items, got %v", order["items"])
	}
	first := items[0].(map[string]any)
	if first["unit_price"] != "9.5" {
		t.Errorf("unexpected unit price: %v", first["unit_price"])
	}
}

func TestCreateOrderRejectsEmptyBody(t *testing.T) {
	svc := &stubOrderService{}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateOrderMapsEmptyOrderError(t *testing.T) {
	svc := &stubOrderService{
		createFn: func(context.Context, services.CreateOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderEmpty
		},
	}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/", strings.NewReader(`{"establishment_id":"est-1","items":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["error"] != "order_empty" {
		t.Errorf("unexpected error code: %v", payload["error"])
	}
}

func TestCreateOrderMapsVariantNotFound(t *testing.T) {
	svc := &stubOrderService{
		createFn: func(context.Context, services.CreateOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrVariantNotFound
		},
	}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/", strings.NewReader(`{"establishment_id":"est-1","items":[{"variant_id":"nope","quantity":1}]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	svc := &stubOrderService{
		getFn: func(context.Context, string) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["error"] != "order_not_found" {
		t.Errorf("unexpected error code: %v", payload["error"])
	}
}

func TestListOrdersRequiresEstablishment(t *testing.T) {
	svc := &stubOrderService{}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListOrdersParsesFilters(t *testing.T) {
	var captured services.OrderListFilter
	svc := &stubOrderService{
		listFn: func(_ context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			captured = filter
			return domain.CursorPage[services.Order]{
				Items:         []services.Order{sampleOrder()},
				NextPageToken: "token-2",
			}, nil
		},
	}
	router := newOrderRouter(svc)

	target := "/orders/?establishment_id=est-1&status=pending,preparing&page_size=500&created_after=2026-03-01T00:00:00Z&page_token=token-1"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if captured.EstablishmentID != "est-1" {
		t.Errorf("unexpected establishment: %s", captured.EstablishmentID)
	}
	if len(captured.Status) != 2 || captured.Status[0] != "pending" || captured.Status[1] != "preparing" {
		t.Errorf("unexpected status filter: %v", captured.Status)
	}
	if captured.Pagination.PageSize != maxOrderPageSize {
		t.Errorf("expected page size clamped to %d, got %d", maxOrderPageSize, captured.Pagination.PageSize)
	}
	if captured.Pagination.PageToken != "token-1" {
		t.Errorf("unexpected page token: %s", captured.Pagination.PageToken)
	}
	if captured.DateRange.From == nil || !captured.DateRange.From.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected created_after: %v", captured.DateRange.From)
	}

	payload := decodeBody(t, rec)
	if payload["next_page_token"] != "token-2" {
		t.Errorf("unexpected next page token: %v", payload["next_page_token"])
	}
	items, ok := payload["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one summary, got %v", payload["items"])
	}
	summary := items[0].(map[string]any)
	if summary["items_count"] != float64(2) {
		t.Errorf("unexpected items_count: %v", summary["items_count"])
	}
}

func TestListOrdersRejectsBadTimestamp(t *testing.T) {
	svc := &stubOrderService{}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/orders/?establishment_id=est-1&created_after=yesterday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTransitionOrderMapsInvalidState(t *testing.T) {
	var captured services.OrderStatusTransitionCommand
	svc := &stubOrderService{
		transitionFn: func(_ context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
			captured = cmd
			return services.Order{}, services.ErrOrderInvalidState
		},
	}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_01HTEST:transition", strings.NewReader(`{"status":"Delivered"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if captured.OrderID != "ord_01HTEST" {
		t.Errorf("unexpected order id: %s", captured.OrderID)
	}
	if captured.TargetStatus != domain.OrderStatusDelivered {
		t.Errorf("expected status lower-cased, got %s", captured.TargetStatus)
	}
}

func TestCancelOrderWithoutBody(t *testing.T) {
	var captured services.CancelOrderCommand
	svc := &stubOrderService{
		cancelFn: func(_ context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			captured = cmd
			order := sampleOrder()
			order.Status = domain.OrderStatusCancelled
			return order, nil
		},
	}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_01HTEST:cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if captured.Reason != "" {
		t.Errorf("expected empty reason, got %q", captured.Reason)
	}
}

func TestCancelOrderPassesReason(t *testing.T) {
	var captured services.CancelOrderCommand
	svc := &stubOrderService{
		cancelFn: func(_ context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_01HTEST:cancel", strings.NewReader(`{"reason":"customer left"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.Reason != "customer left" {
		t.Errorf("unexpected reason: %q", captured.Reason)
	}
}

func TestTransitionItemRoutes(t *testing.T) {
	var captured services.ItemStatusTransitionCommand
	svc := &stubOrderService{
		itemStatusFn: func(_ context.Context, cmd services.ItemStatusTransitionCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_01HTEST/items/itm_01HTEST:transition", strings.NewReader(`{"status":"preparing"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if captured.OrderID != "ord_01HTEST" || captured.ItemID != "itm_01HTEST" {
		t.Errorf("unexpected params: %+v", captured)
	}
	if captured.TargetStatus != domain.ItemStatusPreparing {
		t.Errorf("unexpected target status: %s", captured.TargetStatus)
	}
}

func TestTransitionItemTerminalOrder(t *testing.T) {
	svc := &stubOrderService{
		itemStatusFn: func(context.Context, services.ItemStatusTransitionCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderTerminal
		},
	}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_01HTEST/items/itm_01HTEST:transition", strings.NewReader(`{"status":"preparing"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["error"] != "order_terminal" {
		t.Errorf("unexpected error code: %v", payload["error"])
	}
}

func TestAddItemNotMutable(t *testing.T) {
	svc := &stubOrderService{
		addItemFn: func(context.Context, services.AddItemCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotMutable
		},
	}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_01HTEST/items", strings.NewReader(`{"variant_id":"var-soup","quantity":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["error"] != "order_not_mutable" {
		t.Errorf("unexpected error code: %v", payload["error"])
	}
}

func TestUpdateItemQuantity(t *testing.T) {
	var captured services.UpdateItemQuantityCommand
	svc := &stubOrderService{
		updateQtyFn: func(_ context.Context, cmd services.UpdateItemQuantityCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodPatch, "/orders/ord_01HTEST/items/itm_01HTEST", strings.NewReader(`{"quantity":3}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.Quantity != 3 {
		t.Errorf("unexpected quantity: %d", captured.Quantity)
	}
}

func TestRemoveItemLastItemRejected(t *testing.T) {
	svc := &stubOrderService{
		removeItemFn: func(context.Context, services.RemoveItemCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderEmpty
		},
	}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/orders/ord_01HTEST/items/itm_01HTEST", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["error"] != "order_empty" {
		t.Errorf("unexpected error code: %v", payload["error"])
	}
}

func TestListHistory(t *testing.T) {
	actor := "waiter-1"
	svc := &stubOrderService{
		listHistoryFn: func(_ context.Context, orderID string) ([]services.OrderStatusHistory, error) {
			if orderID != "ord_01HTEST" {
				t.Errorf("unexpected order id: %s", orderID)
			}
			return []services.OrderStatusHistory{
				{
					ID:        "hst_1",
					OrderID:   orderID,
					Status:    domain.OrderStatusPending,
					ActorID:   &actor,
					Note:      "order created",
					CreatedAt: time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC),
				},
				{
					ID:        "hst_2",
					OrderID:   orderID,
					Status:    domain.OrderStatusPreparing,
					CreatedAt: time.Date(2026, 3, 14, 12, 45, 0, 0, time.UTC),
				},
			}, nil
		},
	}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_01HTEST/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	items, ok := payload["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 history entries, got %v", payload["items"])
	}
	first := items[0].(map[string]any)
	if first["status"] != "pending" || first["note"] != "order created" {
		t.Errorf("unexpected first entry: %v", first)
	}
	if first["actor_id"] != "waiter-1" {
		t.Errorf("unexpected actor: %v", first["actor_id"])
	}
	second := items[1].(map[string]any)
	if _, hasActor := second["actor_id"]; hasActor {
		t.Errorf("expected actor omitted on second entry: %v", second)
	}
}

func TestUnavailableMapsTo503(t *testing.T) {
	svc := &stubOrderService{
		getFn: func(context.Context, string) (services.Order, error) {
			return services.Order{}, services.ErrOrderUnavailable
		},
	}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_01HTEST", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestCreateOrderRateLimited(t *testing.T) {
	svc := &stubOrderService{
		createFn: func(context.Context, services.CreateOrderCommand) (services.Order, error) {
			return sampleOrder(), nil
		},
	}
	r := chi.NewRouter()
	h := NewOrderHandlers(svc, WithCreateRateLimit(2, time.Minute))
	r.Route("/orders", h.Routes)

	body := `{"establishment_id":"est-1","items":[{"variant_id":"var-espresso","quantity":1}]}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/orders/", strings.NewReader(body))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/orders/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["error"] != "rate_limited" {
		t.Errorf("unexpected error code: %v", payload["error"])
	}
}
