package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/comanda-app/api/internal/domain"
	"github.com/comanda-app/api/internal/platform/auth"
	"github.com/comanda-app/api/internal/platform/httpx"
	"github.com/comanda-app/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 16 * 1024
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

type orderLineRequest struct {
	VariantID string  `json:"variant_id"`
	Quantity  int     `json:"quantity"`
	Notes     *string `json:"notes,omitempty"`
}

type createOrderRequest struct {
	EstablishmentID string             `json:"establishment_id"`
	ClientID        *string            `json:"client_id,omitempty"`
	WaiterID        *string            `json:"waiter_id,omitempty"`
	TableLabel      *string            `json:"table_label,omitempty"`
	Notes           *string            `json:"notes,omitempty"`
	Items           []orderLineRequest `json:"items"`
}

type transitionOrderRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type transitionItemRequest struct {
	Status string `json:"status"`
}

type updateItemQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	orders  services.OrderService
	limiter rateLimiter
}

// OrderHandlerOption customises handler construction.
type OrderHandlerOption func(*OrderHandlers)

// WithCreateRateLimit throttles order creation per actor within a fixed window.
func WithCreateRateLimit(limit int, window time.Duration) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.limiter = newSimpleRateLimiter(limit, window, time.Now)
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{orders: orders}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Get("/{orderID}/history", h.listHistory)
	r.Post("/{orderID}:transition", h.transitionOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)
	r.Post("/{orderID}/items", h.addItem)
	r.Patch("/{orderID}/items/{itemID}", h.updateItemQuantity)
	r.Delete("/{orderID}/items/{itemID}", h.removeItem)
	r.Post("/{orderID}/items/{itemID}:transition", h.transitionItem)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w)
		return
	}

	if h.limiter != nil && !h.limiter.Allow(auth.ActorID(ctx)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many orders created, retry later", http.StatusTooManyRequests))
		return
	}

	var req createOrderRequest
	if !decodeOrderBody(ctx, w, r, &req) {
		return
	}

	items := make([]services.LineItemRequest, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, services.LineItemRequest{
			VariantID: strings.TrimSpace(line.VariantID),
			Quantity:  line.Quantity,
			Notes:     line.Notes,
		})
	}

	order, err := h.orders.Create(ctx, services.CreateOrderCommand{
		EstablishmentID: strings.TrimSpace(req.EstablishmentID),
		ClientID:        req.ClientID,
		WaiterID:        req.WaiterID,
		TableLabel:      req.TableLabel,
		Notes:           req.Notes,
		Items:           items,
		ActorID:         auth.ActorID(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w)
		return
	}

	query := r.URL.Query()
	establishmentID := strings.TrimSpace(query.Get("establishment_id"))
	if establishmentID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "establishment_id is required", http.StatusBadRequest))
		return
	}

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.To = &ts
	}

	pageSize := defaultOrderPageSize
	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return
		}
		switch {
		case size <= 0:
			pageSize = defaultOrderPageSize
		case size > maxOrderPageSize:
			pageSize = maxOrderPageSize
		default:
			pageSize = size
		}
	}

	filter := services.OrderListFilter{
		EstablishmentID: establishmentID,
		Status:          parseFilterValues(query["status"]),
		DateRange:       dateRange,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}

	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w)
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w)
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	entries, err := h.orders.ListHistory(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderHistoryPayload, 0, len(entries))
	for _, entry := range entries {
		items = append(items, orderHistoryPayload{
			ID:        entry.ID,
			Status:    string(entry.Status),
			ActorID:   cloneStringPointer(entry.ActorID),
			Note:      entry.Note,
			CreatedAt: formatTime(entry.CreatedAt),
		})
	}

	writeJSONResponse(w, http.StatusOK, orderHistoryResponse{Items: items})
}

func (h *OrderHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w)
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	var req transitionOrderRequest
	if !decodeOrderBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID:      orderID,
		TargetStatus: services.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Note:         strings.TrimSpace(req.Note),
		ActorID:      auth.ActorID(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w)
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if !decodeOptionalOrderBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		Reason:  strings.TrimSpace(req.Reason),
		ActorID: auth.ActorID(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w)
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	var req orderLineRequest
	if !decodeOrderBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.AddItem(ctx, services.AddItemCommand{
		OrderID: orderID,
		Item: services.LineItemRequest{
			VariantID: strings.TrimSpace(req.VariantID),
			Quantity:  req.Quantity,
			Notes:     req.Notes,
		},
		ActorID: auth.ActorID(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) updateItemQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w)
		return
	}

	orderID, itemID, ok := itemParams(ctx, w, r)
	if !ok {
		return
	}

	var req updateItemQuantityRequest
	if !decodeOrderBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.UpdateItemQuantity(ctx, services.UpdateItemQuantityCommand{
		OrderID:  orderID,
		ItemID:   itemID,
		Quantity: req.Quantity,
		ActorID:  auth.ActorID(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w)
		return
	}

	orderID, itemID, ok := itemParams(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.RemoveItem(ctx, services.RemoveItemCommand{
		OrderID: orderID,
		ItemID:  itemID,
		ActorID: auth.ActorID(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) transitionItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w)
		return
	}

	orderID, itemID, ok := itemParams(ctx, w, r)
	if !ok {
		return
	}

	var req transitionItemRequest
	if !decodeOrderBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.TransitionItemStatus(ctx, services.ItemStatusTransitionCommand{
		OrderID:      orderID,
		ItemID:       itemID,
		TargetStatus: services.ItemStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		ActorID:      auth.ActorID(ctx),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID              string `json:"id"`
	OrderNumber     string `json:"order_number"`
	EstablishmentID string `json:"establishment_id"`
	TableLabel      string `json:"table_label,omitempty"`
	Status          string `json:"status"`
	Currency        string `json:"currency"`
	Total           string `json:"total"`
	ItemsCount      int    `json:"items_count"`
	CreatedAt       string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"order_number"`
	EstablishmentID string             `json:"establishment_id"`
	ClientID        *string            `json:"client_id,omitempty"`
	WaiterID        *string            `json:"waiter_id,omitempty"`
	TableLabel      *string            `json:"table_label,omitempty"`
	Status          string             `json:"status"`
	Currency        string             `json:"currency"`
	Total           string             `json:"total"`
	PaymentMethod   *string            `json:"payment_method,omitempty"`
	PaymentStatus   *string            `json:"payment_status,omitempty"`
	Notes           *string            `json:"notes,omitempty"`
	Items           []orderItemPayload `json:"items"`
	Audit           *orderAuditPayload `json:"audit,omitempty"`
	CreatedAt       string             `json:"created_at"`
	UpdatedAt       string             `json:"updated_at,omitempty"`
	CancelledAt     string             `json:"cancelled_at,omitempty"`
	CancelReason    *string            `json:"cancel_reason,omitempty"`
}

type orderItemPayload struct {
	ID        string  `json:"id"`
	VariantID string  `json:"variant_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice string  `json:"unit_price"`
	Total     string  `json:"total"`
	Status    string  `json:"status"`
	Notes     *string `json:"notes,omitempty"`
	AddedAt   string  `json:"added_at"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

type orderAuditPayload struct {
	CreatedBy *string `json:"created_by,omitempty"`
	UpdatedBy *string `json:"updated_by,omitempty"`
}

type orderHistoryResponse struct {
	Items []orderHistoryPayload `json:"items"`
}

type orderHistoryPayload struct {
	ID        string  `json:"id"`
	Status    string  `json:"status"`
	ActorID   *string `json:"actor_id,omitempty"`
	Note      string  `json:"note,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	payload := orderSummaryPayload{
		ID:              strings.TrimSpace(order.ID),
		OrderNumber:     strings.TrimSpace(order.OrderNumber),
		EstablishmentID: strings.TrimSpace(order.EstablishmentID),
		Status:          strings.TrimSpace(string(order.Status)),
		Currency:        strings.ToUpper(strings.TrimSpace(order.Currency)),
		Total:           order.TotalAmount.String(),
		ItemsCount:      len(order.Items),
		CreatedAt:       formatTime(order.CreatedAt),
	}
	if order.TableLabel != nil {
		payload.TableLabel = strings.TrimSpace(*order.TableLabel)
	}
	return payload
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:              strings.TrimSpace(order.ID),
		OrderNumber:     strings.TrimSpace(order.OrderNumber),
		EstablishmentID: strings.TrimSpace(order.EstablishmentID),
		ClientID:        cloneStringPointer(order.ClientID),
		WaiterID:        cloneStringPointer(order.WaiterID),
		TableLabel:      cloneStringPointer(order.TableLabel),
		Status:          strings.TrimSpace(string(order.Status)),
		Currency:        strings.ToUpper(strings.TrimSpace(order.Currency)),
		Total:           order.TotalAmount.String(),
		PaymentMethod:   cloneStringPointer(order.PaymentMethod),
		PaymentStatus:   cloneStringPointer(order.PaymentStatus),
		Notes:           cloneStringPointer(order.Notes),
		Items:           make([]orderItemPayload, 0, len(order.Items)),
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
		CancelledAt:     formatTime(pointerTime(order.CancelledAt)),
		CancelReason:    cloneStringPointer(order.CancelReason),
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ID:        item.ID,
			VariantID: item.VariantID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
			Total:     item.Total.String(),
			Status:    string(item.Status),
			Notes:     cloneStringPointer(item.Notes),
			AddedAt:   formatTime(item.AddedAt),
			UpdatedAt: formatTime(pointerTime(item.UpdatedAt)),
		})
	}

	if order.Audit.CreatedBy != nil || order.Audit.UpdatedBy != nil {
		payload.Audit = &orderAuditPayload{
			CreatedBy: cloneStringPointer(order.Audit.CreatedBy),
			UpdatedBy: cloneStringPointer(order.Audit.UpdatedBy),
		}
	}

	return payload
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrResolverInvalidInput), errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("order_empty", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrVariantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("variant_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrVariantInactive):
		httpx.WriteError(ctx, w, httpx.NewError("variant_inactive", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderTerminal):
		httpx.WriteError(ctx, w, httpx.NewError("order_terminal", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotMutable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_mutable", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func writeServiceUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
}

func orderIDParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

func itemParams(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, string, bool) {
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return "", "", false
	}
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return "", "", false
	}
	return orderID, itemID, true
}

// decodeOrderBody reads and unmarshals a required JSON body.
func decodeOrderBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

// decodeOptionalOrderBody tolerates an absent body.
func decodeOptionalOrderBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errEmptyBody):
			return true
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return false
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return false
		}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxOrderBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func parseFilterValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	filters := make([]string, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			trimmed := strings.ToLower(strings.TrimSpace(part))
			if trimmed == "" {
				continue
			}
			if _, exists := seen[trimmed]; exists {
				continue
			}
			seen[trimmed] = struct{}{}
			filters = append(filters, trimmed)
		}
	}
	return filters
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("must be RFC3339 timestamp")
}

func pointerTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func cloneStringPointer(value *string) *string {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
