package firestore

import (
	"context"
	"errors"
	"time"

	domain "github.com/comanda-app/api/internal/domain"
	pfirestore "github.com/comanda-app/api/internal/platform/firestore"
)

const variantsCollection = "variants"

type variantDocument struct {
	ProductID string    `firestore:"productId"`
	Name      string    `firestore:"name"`
	Price     string    `firestore:"price"`
	Active    bool      `firestore:"active"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// VariantRepository reads catalog variants. The catalog surfaces own writes;
// the ordering flow only snapshots price and availability.
type VariantRepository struct {
	variants *pfirestore.BaseRepository[variantDocument]
}

// NewVariantRepository constructs a Firestore-backed variant reader.
func NewVariantRepository(provider *pfirestore.Provider) (*VariantRepository, error) {
	if provider == nil {
		return nil, errors.New("variant repository requires firestore provider")
	}
	return &VariantRepository{
		variants: pfirestore.NewBaseRepository[variantDocument](provider, variantsCollection),
	}, nil
}

// FindByID fetches a single variant.
func (r *VariantRepository) FindByID(ctx context.Context, variantID string) (domain.Variant, error) {
	if r == nil || r.variants == nil {
		return domain.Variant{}, errors.New("variant repository not initialised")
	}
	doc, err := r.variants.Get(ctx, variantID)
	if err != nil {
		return domain.Variant{}, err
	}

	price, err := parseAmount(doc.Data.Price, "price", doc.ID)
	if err != nil {
		return domain.Variant{}, err
	}

	return domain.Variant{
		ID:        doc.ID,
		ProductID: doc.Data.ProductID,
		Name:      doc.Data.Name,
		Price:     price,
		Active:    doc.Data.Active,
		UpdatedAt: doc.Data.UpdatedAt,
	}, nil
}
