package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/comanda-app/api/internal/domain"
	pfirestore "github.com/comanda-app/api/internal/platform/firestore"
)

const historySubcollection = "history"

type historyDocument struct {
	OrderID   string    `firestore:"orderId"`
	Status    string    `firestore:"status"`
	ActorID   *string   `firestore:"actorId,omitempty"`
	Note      string    `firestore:"note,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// OrderHistoryRepository stores status history entries in a subcollection
// under their order. Entries are append-only.
type OrderHistoryRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

// NewOrderHistoryRepository constructs a Firestore-backed history repository.
func NewOrderHistoryRepository(provider *pfirestore.Provider) (*OrderHistoryRepository, error) {
	if provider == nil {
		return nil, errors.New("order history repository requires firestore provider")
	}
	return &OrderHistoryRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection),
	}, nil
}

// Append writes one history entry, joining the ambient transaction when present.
func (r *OrderHistoryRepository) Append(ctx context.Context, entry domain.OrderStatusHistory) error {
	if r == nil || r.orders == nil {
		return errors.New("order history repository not initialised")
	}
	if strings.TrimSpace(entry.OrderID) == "" {
		return errors.New("order history repository: order id is required")
	}
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("order history repository: entry id is required")
	}

	orderRef, err := r.orders.DocumentRef(ctx, entry.OrderID)
	if err != nil {
		return err
	}
	ref := orderRef.Collection(historySubcollection).Doc(entry.ID)

	doc := historyDocument{
		OrderID:   entry.OrderID,
		Status:    string(entry.Status),
		ActorID:   entry.ActorID,
		Note:      entry.Note,
		CreatedAt: entry.CreatedAt.UTC(),
	}

	if tx, ok := pfirestore.TxFrom(ctx); ok {
		if err := tx.Create(ref, doc); err != nil {
			return pfirestore.WrapError("orders.history.append", err)
		}
		return nil
	}

	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("orders.history.append", err)
	}
	return nil
}

// ListByOrder returns all history entries of an order in chronological order.
func (r *OrderHistoryRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.OrderStatusHistory, error) {
	if r == nil || r.orders == nil {
		return nil, errors.New("order history repository not initialised")
	}
	orderRef, err := r.orders.DocumentRef(ctx, orderID)
	if err != nil {
		return nil, err
	}

	iter := orderRef.Collection(historySubcollection).
		OrderBy("createdAt", firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	snapshots, err := iter.GetAll()
	if err != nil {
		return nil, pfirestore.WrapError("orders.history.list", err)
	}

	entries := make([]domain.OrderStatusHistory, 0, len(snapshots))
	for _, snapshot := range snapshots {
		var doc historyDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError("orders.history.list", err)
		}
		entries = append(entries, domain.OrderStatusHistory{
			ID:        snapshot.Ref.ID,
			OrderID:   doc.OrderID,
			Status:    domain.OrderStatus(doc.Status),
			ActorID:   doc.ActorID,
			Note:      doc.Note,
			CreatedAt: doc.CreatedAt,
		})
	}
	return entries, nil
}
