package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/barterhq/barterhq-backend/internal/modules/catalog"
)

// UnmatchedItemPolicy decides how a line item with no catalog match is
// classified.
type UnmatchedItemPolicy string

const (
	// UnmatchedEligible treats unknown items as barter-eligible.
	UnmatchedEligible UnmatchedItemPolicy = "eligible"
	// UnmatchedRestricted treats unknown items as cash-only.
	UnmatchedRestricted UnmatchedItemPolicy = "restricted"
)

// Matcher classifies checkout lines against the merchant catalog.
type Matcher struct {
	catalog catalog.Repository
	policy  UnmatchedItemPolicy
}

// NewMatcher creates a Matcher. An empty policy defaults to eligible,
// preserving the historical fail-open behaviour.
func NewMatcher(repo catalog.Repository, policy UnmatchedItemPolicy) *Matcher {
	if policy == "" {
		policy = UnmatchedEligible
	}
	return &Matcher{catalog: repo, policy: policy}
}

// Match resolves each line item against the catalog and splits the
// checkout into eligible and restricted groups. Items in a restricted
// category never land in the eligible group.
func (m *Matcher) Match(ctx context.Context, merchantID string, items []LineItem) (*Split, error) {
	out := &Split{
		EligibleItems:   []ClassifiedItem{},
		RestrictedItems: []ClassifiedItem{},
	}

	for _, item := range items {
		classified, err := m.classify(ctx, merchantID, item)
		if err != nil {
			return nil, err
		}
		if classified.IsBarterEligible {
			out.EligibleItems = append(out.EligibleItems, classified)
			out.EligibleSubtotal += item.TotalPrice()
		} else {
			out.RestrictedItems = append(out.RestrictedItems, classified)
			out.RestrictedSubtotal += item.TotalPrice()
		}
	}

	out.HasRestrictedItems = len(out.RestrictedItems) > 0
	return out, nil
}

func (m *Matcher) classify(ctx context.Context, merchantID string, item LineItem) (ClassifiedItem, error) {
	ci := ClassifiedItem{LineItem: item}

	code := item.Barcode
	if code == "" {
		code = item.SKU
	}
	if code == "" {
		ci.IsBarterEligible = m.policy == UnmatchedEligible
		if !ci.IsBarterEligible {
			ci.RestrictionReason = "no barcode; unmatched items are cash-only"
		}
		return ci, nil
	}

	product, err := m.catalog.GetByBarcode(ctx, merchantID, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			ci.IsBarterEligible = m.policy == UnmatchedEligible
			if !ci.IsBarterEligible {
				ci.RestrictionReason = "not found in catalog; unmatched items are cash-only"
			}
			return ci, nil
		}
		return ci, fmt.Errorf("catalog lookup for %q: %w", code, err)
	}

	ci.Matched = true
	if product.Category != nil {
		ci.CategoryName = product.Category.Name
	}

	restrictedCategory := product.Category != nil && product.Category.IsRestricted
	ci.IsBarterEligible = product.IsBarterEligible && product.BarterEnabled && !restrictedCategory
	if !ci.IsBarterEligible {
		switch {
		case product.RestrictionReason != "":
			ci.RestrictionReason = product.RestrictionReason
		case restrictedCategory:
			ci.RestrictionReason = fmt.Sprintf("restricted category: %s", product.Category.Name)
		default:
			ci.RestrictionReason = "barter disabled for this product"
		}
	}
	return ci, nil
}
