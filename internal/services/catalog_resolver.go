package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/comanda-app/api/internal/repositories"
)

var (
	// ErrResolverInvalidInput signals a malformed line item request.
	ErrResolverInvalidInput = errors.New("catalog: invalid line item request")
	// ErrVariantNotFound indicates a requested variant does not exist.
	ErrVariantNotFound = errors.New("catalog: variant not found")
	// ErrVariantInactive indicates the variant exists but is not orderable.
	ErrVariantInactive = errors.New("catalog: variant inactive")
)

// CatalogResolverDeps bundles collaborators required to construct the resolver.
type CatalogResolverDeps struct {
	Variants repositories.VariantRepository
}

type catalogResolver struct {
	variants repositories.VariantRepository
}

// NewCatalogResolver wires dependencies into a concrete CatalogResolver implementation.
func NewCatalogResolver(deps CatalogResolverDeps) (CatalogResolver, error) {
	if deps.Variants == nil {
		return nil, errors.New("catalog resolver: variant repository is required")
	}
	return &catalogResolver{variants: deps.Variants}, nil
}

// Resolve looks every requested variant up and snapshots its name and price
// into the returned lines. Resolution is all-or-nothing: the first failing
// line aborts the call.
func (r *catalogResolver) Resolve(ctx context.Context, requests []LineItemRequest) ([]ResolvedLineItem, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: at least one line item is required", ErrResolverInvalidInput)
	}

	resolved := make([]ResolvedLineItem, 0, len(requests))
	for i, req := range requests {
		variantID := strings.TrimSpace(req.VariantID)
		if variantID == "" {
			return nil, fmt.Errorf("%w: line %d is missing a variant id", ErrResolverInvalidInput, i)
		}
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d quantity must be positive, got %d", ErrResolverInvalidInput, i, req.Quantity)
		}

		variant, err := r.variants.FindByID(ctx, variantID)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, variantID)
			}
			return nil, err
		}
		if !variant.Active {
			return nil, fmt.Errorf("%w: %s", ErrVariantInactive, variantID)
		}

		resolved = append(resolved, ResolvedLineItem{
			VariantID: variant.ID,
			Name:      variant.Name,
			Quantity:  req.Quantity,
			UnitPrice: variant.Price,
			Notes:     req.Notes,
		})
	}

	return resolved, nil
}
