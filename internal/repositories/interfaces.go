package repositories

import (
	"context"
	"time"

	domain "github.com/comanda-app/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with the categorisation
// used by services to map onto their sentinel errors.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations into one atomic boundary. Repository
// calls made with the context passed to fn observe and join the transaction,
// which is what serialises concurrent operations on the same order.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// VariantRepository is the read-only catalog collaborator. Variants are owned
// by the (out-of-scope) catalog administration surfaces.
type VariantRepository interface {
	FindByID(ctx context.Context, variantID string) (domain.Variant, error)
}

// OrderListFilter narrows order listings for back-office queries.
type OrderListFilter struct {
	EstablishmentID string
	Status          []string
	DateRange       domain.RangeQuery[time.Time]
	Pagination      domain.Pagination
}

// OrderRepository persists order aggregates (header + embedded items).
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// OrderHistoryRepository owns the append-only status history of an order.
// Entries are never updated or deleted.
type OrderHistoryRepository interface {
	Append(ctx context.Context, entry domain.OrderStatusHistory) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.OrderStatusHistory, error)
}

// CounterRepository provides transaction-safe sequence numbers for
// human-facing order numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}
