package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/comanda-app/api/internal/domain"
)

type stubVariantRepo struct {
	findFn func(context.Context, string) (domain.Variant, error)
}

func (s *stubVariantRepo) FindByID(ctx context.Context, variantID string) (domain.Variant, error) {
	if s.findFn != nil {
		return s.findFn(ctx, variantID)
	}
	return domain.Variant{}, errors.New("not implemented")
}

type notFoundRepoError struct{}

func (notFoundRepoError) Error() string       { return "document missing" }
func (notFoundRepoError) IsNotFound() bool    { return true }
func (notFoundRepoError) IsConflict() bool    { return false }
func (notFoundRepoError) IsUnavailable() bool { return false }

func testCatalog(t *testing.T, variants map[string]domain.Variant) CatalogResolver {
	t.Helper()
	repo := &stubVariantRepo{
		findFn: func(_ context.Context, id string) (domain.Variant, error) {
			variant, ok := variants[id]
			if !ok {
				return domain.Variant{}, notFoundRepoError{}
			}
			return variant, nil
		},
	}
	resolver, err := NewCatalogResolver(CatalogResolverDeps{Variants: repo})
	if err != nil {
		t.Fatalf("new catalog resolver: %v", err)
	}
	return resolver
}

func TestResolveSnapshotsPriceAndName(t *testing.T) {
	ctx := context.Background()
	resolver := testCatalog(t, map[string]domain.Variant{
		"var-espresso": {
			ID:        "var-espresso",
			ProductID: "prod-coffee",
			Name:      "Espresso",
			Price:     decimal.RequireFromString("1.20"),
			Active:    true,
			UpdatedAt: time.Now(),
		},
		"var-tosta": {
			ID:        "var-tosta",
			ProductID: "prod-tosta",
			Name:      "Tosta Mista",
			Price:     decimal.RequireFromString("4.75"),
			Active:    true,
		},
	})

	lines, err := resolver.Resolve(ctx, []LineItemRequest{
		{VariantID: "var-espresso", Quantity: 2},
		{VariantID: "var-tosta", Quantity: 1},
		{VariantID: "var-espresso", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected duplicate variants to stay separate lines, got %d", len(lines))
	}
	if lines[0].Name != "Espresso" || !lines[0].UnitPrice.Equal(decimal.RequireFromString("1.20")) {
		t.Fatalf("unexpected first line %+v", lines[0])
	}
	if lines[0].Quantity != 2 || lines[2].Quantity != 1 {
		t.Fatalf("quantities not preserved per line")
	}
	if lines[1].VariantID != "var-tosta" {
		t.Fatalf("expected order of requests preserved, got %s", lines[1].VariantID)
	}
}

func TestResolveRejectsUnknownVariant(t *testing.T) {
	ctx := context.Background()
	resolver := testCatalog(t, map[string]domain.Variant{})

	_, err := resolver.Resolve(ctx, []LineItemRequest{{VariantID: "var-missing", Quantity: 1}})
	if !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected ErrVariantNotFound, got %v", err)
	}
}

func TestResolveRejectsInactiveVariant(t *testing.T) {
	ctx := context.Background()
	resolver := testCatalog(t, map[string]domain.Variant{
		"var-off": {ID: "var-off", Name: "Seasonal Soup", Price: decimal.RequireFromString("3.00"), Active: false},
	})

	_, err := resolver.Resolve(ctx, []LineItemRequest{{VariantID: "var-off", Quantity: 1}})
	if !errors.Is(err, ErrVariantInactive) {
		t.Fatalf("expected ErrVariantInactive, got %v", err)
	}
}

func TestResolveRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	resolver := testCatalog(t, map[string]domain.Variant{
		"var-ok": {ID: "var-ok", Name: "Galao", Price: decimal.RequireFromString("1.50"), Active: true},
	})

	cases := []struct {
		name     string
		requests []LineItemRequest
	}{
		{name: "empty request list", requests: nil},
		{name: "zero quantity", requests: []LineItemRequest{{VariantID: "var-ok", Quantity: 0}}},
		{name: "negative quantity", requests: []LineItemRequest{{VariantID: "var-ok", Quantity: -2}}},
		{name: "blank variant id", requests: []LineItemRequest{{VariantID: "  ", Quantity: 1}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := resolver.Resolve(ctx, tc.requests); !errors.Is(err, ErrResolverInvalidInput) {
				t.Fatalf("expected ErrResolverInvalidInput, got %v", err)
			}
		})
	}
}
