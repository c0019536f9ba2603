package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	domain "github.com/comanda-app/api/internal/domain"
	pfirestore "github.com/comanda-app/api/internal/platform/firestore"
	"github.com/comanda-app/api/internal/platform/pagination"
	"github.com/comanda-app/api/internal/repositories"
)

const (
	ordersCollection = "orders"

	defaultListPageSize = 50
	maxListPageSize     = 100
)

// Monetary amounts are stored as decimal strings so Firestore never holds a
// float representation of money.
type orderItemDocument struct {
	ID        string     `firestore:"id"`
	VariantID string     `firestore:"variantId"`
	Name      string     `firestore:"name"`
	Quantity  int        `firestore:"quantity"`
	UnitPrice string     `firestore:"unitPrice"`
	Total     string     `firestore:"total"`
	Status    string     `firestore:"status"`
	Notes     *string    `firestore:"notes,omitempty"`
	AddedAt   time.Time  `firestore:"addedAt"`
	UpdatedAt *time.Time `firestore:"updatedAt,omitempty"`
}

type orderDocument struct {
	OrderNumber     string              `firestore:"orderNumber"`
	EstablishmentID string              `firestore:"establishmentId"`
	ClientID        *string             `firestore:"clientId,omitempty"`
	WaiterID        *string             `firestore:"waiterId,omitempty"`
	TableLabel      *string             `firestore:"tableLabel,omitempty"`
	Status          string              `firestore:"status"`
	Currency        string              `firestore:"currency"`
	TotalAmount     string              `firestore:"totalAmount"`
	PaymentMethod   *string             `firestore:"paymentMethod,omitempty"`
	PaymentStatus   *string             `firestore:"paymentStatus,omitempty"`
	Notes           *string             `firestore:"notes,omitempty"`
	Items           []orderItemDocument `firestore:"items"`
	CreatedBy       *string             `firestore:"createdBy,omitempty"`
	UpdatedBy       *string             `firestore:"updatedBy,omitempty"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
	CancelledAt     *time.Time          `firestore:"cancelledAt,omitempty"`
	CancelReason    *string             `firestore:"cancelReason,omitempty"`
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection),
	}, nil
}

// Insert stores a new order aggregate, failing on duplicate ids.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	_, err := r.orders.Create(ctx, order.ID, encodeOrder(order))
	return err
}

// Update replaces the stored order aggregate.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	_, err := r.orders.Set(ctx, order.ID, encodeOrder(order))
	return err
}

// FindByID fetches one order aggregate. Inside a unit of work the read joins
// the ambient transaction.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data)
}

// List pages through orders of one establishment, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.orders == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	establishmentID := strings.TrimSpace(filter.EstablishmentID)
	if establishmentID == "" {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository: establishment id is required")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = defaultListPageSize
	}
	if pageSize > maxListPageSize {
		pageSize = maxListPageSize
	}

	cursor, err := decodeListCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("establishmentId", "==", establishmentID)
		if len(filter.Status) > 0 {
			q = q.Where("status", "in", filter.Status)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(cursor.StartAfter) == 2 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{}
	hasMore := len(docs) > pageSize
	if hasMore {
		docs = docs[:pageSize]
	}

	for _, doc := range docs {
		order, err := decodeOrder(doc.ID, doc.Data)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.Items = append(page.Items, order)
	}

	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.Data.CreatedAt.UTC().Format(time.RFC3339Nano), last.ID},
		})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}

	return page, nil
}

// decodeListCursor re-types the JSON cursor payload into the values Firestore
// expects for the createdAt/__name__ sort key.
func decodeListCursor(token string) (pagination.Cursor, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return pagination.Cursor{}, err
	}
	if len(cursor.StartAfter) == 0 {
		return cursor, nil
	}
	if len(cursor.StartAfter) != 2 {
		return pagination.Cursor{}, fmt.Errorf("%w: unexpected cursor shape", pagination.ErrInvalidPageToken)
	}
	raw, ok := cursor.StartAfter[0].(string)
	if !ok {
		return pagination.Cursor{}, fmt.Errorf("%w: cursor timestamp must be a string", pagination.ErrInvalidPageToken)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return pagination.Cursor{}, fmt.Errorf("%w: %v", pagination.ErrInvalidPageToken, err)
	}
	cursor.StartAfter[0] = createdAt
	return cursor, nil
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ID:        item.ID,
			VariantID: item.VariantID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
			Total:     item.Total.String(),
			Status:    string(item.Status),
			Notes:     item.Notes,
			AddedAt:   item.AddedAt.UTC(),
			UpdatedAt: utcTimePtr(item.UpdatedAt),
		})
	}

	return orderDocument{
		OrderNumber:     order.OrderNumber,
		EstablishmentID: order.EstablishmentID,
		ClientID:        order.ClientID,
		WaiterID:        order.WaiterID,
		TableLabel:      order.TableLabel,
		Status:          string(order.Status),
		Currency:        order.Currency,
		TotalAmount:     order.TotalAmount.String(),
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		Notes:           order.Notes,
		Items:           items,
		CreatedBy:       order.Audit.CreatedBy,
		UpdatedBy:       order.Audit.UpdatedBy,
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
		CancelledAt:     utcTimePtr(order.CancelledAt),
		CancelReason:    order.CancelReason,
	}
}

func decodeOrder(id string, doc orderDocument) (domain.Order, error) {
	total, err := parseAmount(doc.TotalAmount, "totalAmount", id)
	if err != nil {
		return domain.Order{}, err
	}

	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		unitPrice, err := parseAmount(item.UnitPrice, "unitPrice", item.ID)
		if err != nil {
			return domain.Order{}, err
		}
		lineTotal, err := parseAmount(item.Total, "total", item.ID)
		if err != nil {
			return domain.Order{}, err
		}
		items = append(items, domain.OrderItem{
			ID:        item.ID,
			VariantID: item.VariantID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			Total:     lineTotal,
			Status:    domain.ItemStatus(item.Status),
			Notes:     item.Notes,
			AddedAt:   item.AddedAt,
			UpdatedAt: item.UpdatedAt,
		})
	}

	return domain.Order{
		ID:              id,
		OrderNumber:     doc.OrderNumber,
		EstablishmentID: doc.EstablishmentID,
		ClientID:        doc.ClientID,
		WaiterID:        doc.WaiterID,
		TableLabel:      doc.TableLabel,
		Status:          domain.OrderStatus(doc.Status),
		Currency:        doc.Currency,
		TotalAmount:     total,
		PaymentMethod:   doc.PaymentMethod,
		PaymentStatus:   doc.PaymentStatus,
		Notes:           doc.Notes,
		Items:           items,
		Audit: domain.OrderAudit{
			CreatedBy: doc.CreatedBy,
			UpdatedBy: doc.UpdatedBy,
		},
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		CancelledAt:  doc.CancelledAt,
		CancelReason: doc.CancelReason,
	}, nil
}

func parseAmount(value, field, id string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("firestore orders: decode %s of %s: %w", field, id, err)
	}
	return amount, nil
}

func utcTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
