package checkout

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/barterhq/barterhq-backend/internal/modules/catalog"
)

type fakeCatalog struct {
	products map[string]*catalog.Product // keyed by barcode
}

func (f *fakeCatalog) GetByBarcode(ctx context.Context, merchantID, barcode string) (*catalog.Product, error) {
	if p, ok := f.products[barcode]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func eligibleProduct(barcode string) *catalog.Product {
	return &catalog.Product{
		ID:               uuid.New(),
		Barcode:          barcode,
		IsBarterEligible: true,
		BarterEnabled:    true,
	}
}

func restrictedCategoryProduct(barcode, categoryName string) *catalog.Product {
	return &catalog.Product{
		ID:               uuid.New(),
		Barcode:          barcode,
		IsBarterEligible: true,
		BarterEnabled:    true,
		Category:         &catalog.Category{ID: uuid.New(), Name: categoryName, IsRestricted: true},
	}
}

func TestMatchSplitsEligibleAndRestricted(t *testing.T) {
	t.Parallel()

	repo := &fakeCatalog{products: map[string]*catalog.Product{
		"111": eligibleProduct("111"),
		"222": restrictedCategoryProduct("222", "Alcohol"),
	}}
	m := NewMatcher(repo, UnmatchedEligible)

	split, err := m.Match(context.Background(), "m1", []LineItem{
		{Name: "Coffee", Barcode: "111", UnitPrice: 10, Quantity: 2},
		{Name: "Wine", Barcode: "222", UnitPrice: 15, Quantity: 1},
	})
	require.NoError(t, err)

	require.Len(t, split.EligibleItems, 1)
	require.Len(t, split.RestrictedItems, 1)
	require.Equal(t, 20.0, split.EligibleSubtotal)
	require.Equal(t, 15.0, split.RestrictedSubtotal)
	require.True(t, split.HasRestrictedItems)
	require.Equal(t, "restricted category: Alcohol", split.RestrictedItems[0].RestrictionReason)
}

func TestMatchRestrictedCategoryNeverEligible(t *testing.T) {
	t.Parallel()

	// Product-level flags say eligible, but the category is restricted.
	repo := &fakeCatalog{products: map[string]*catalog.Product{
		"333": restrictedCategoryProduct("333", "Tobacco"),
	}}
	m := NewMatcher(repo, UnmatchedEligible)

	split, err := m.Match(context.Background(), "m1", []LineItem{
		{Name: "Cigars", Barcode: "333", UnitPrice: 40, Quantity: 1},
	})
	require.NoError(t, err)
	require.Empty(t, split.EligibleItems)
	require.Len(t, split.RestrictedItems, 1)
}

func TestMatchProductLevelRestrictionReason(t *testing.T) {
	t.Parallel()

	p := eligibleProduct("444")
	p.BarterEnabled = false
	p.RestrictionReason = "merchant disabled barter for this item"
	repo := &fakeCatalog{products: map[string]*catalog.Product{"444": p}}
	m := NewMatcher(repo, UnmatchedEligible)

	split, err := m.Match(context.Background(), "m1", []LineItem{
		{Name: "Lamp", Barcode: "444", UnitPrice: 25, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, split.RestrictedItems, 1)
	require.Equal(t, "merchant disabled barter for this item", split.RestrictedItems[0].RestrictionReason)
}

func TestMatchUnmatchedPolicy(t *testing.T) {
	t.Parallel()

	repo := &fakeCatalog{products: map[string]*catalog.Product{}}
	items := []LineItem{{Name: "Mystery", Barcode: "999", UnitPrice: 5, Quantity: 1}}

	open := NewMatcher(repo, UnmatchedEligible)
	split, err := open.Match(context.Background(), "m1", items)
	require.NoError(t, err)
	require.Len(t, split.EligibleItems, 1)
	require.False(t, split.EligibleItems[0].Matched)

	closed := NewMatcher(repo, UnmatchedRestricted)
	split, err = closed.Match(context.Background(), "m1", items)
	require.NoError(t, err)
	require.Len(t, split.RestrictedItems, 1)
	require.Contains(t, split.RestrictedItems[0].RestrictionReason, "not found in catalog")
}

func TestMatchItemWithoutBarcodeFollowsPolicy(t *testing.T) {
	t.Parallel()

	repo := &fakeCatalog{products: map[string]*catalog.Product{}}
	items := []LineItem{{Name: "Open item", UnitPrice: 3, Quantity: 2}}

	split, err := NewMatcher(repo, UnmatchedRestricted).Match(context.Background(), "m1", items)
	require.NoError(t, err)
	require.Len(t, split.RestrictedItems, 1)
	require.Equal(t, 6.0, split.RestrictedSubtotal)
}
