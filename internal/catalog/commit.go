package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cestaprecios/pkg/enums"
)

// Commit reconciles confirmed candidates into the catalog in list order, with one timestamp
// for the whole batch.
//
// A candidate linked to an existing product updates it directly. Unlinked candidates, and
// linked ones whose product has since been deleted, are re-resolved by exact case-insensitive
// name against the list as it stands at that point of the batch; a hit is an update. A miss
// creates a product for unlinked candidates only: a linked candidate that resolves to nothing
// fails the whole commit with ErrProductNotFound. Callers validate names and prices; only the
// supermarket is checked here since it keys the price table.
func (c *Catalog) Commit(ctx context.Context, candidates []Candidate) (CommitResult, error) {
	for i, candidate := range candidates {
		if !candidate.Supermarket.IsValid() {
			return CommitResult{}, fmt.Errorf("candidate %d: %w: %q", i, ErrInvalidSupermarket, candidate.Supermarket)
		}
	}

	var result CommitResult
	err := c.mutate(ctx, func(products []Product, now time.Time) ([]Product, Event, error) {
		result = CommitResult{}
		touched := map[string]struct{}{}
		for i, candidate := range candidates {
			idx := -1
			if candidate.ExistingID != nil {
				idx = indexByID(products, *candidate.ExistingID)
			}
			if idx < 0 {
				idx = indexByName(products, candidate.Name)
			}

			if idx >= 0 {
				applyPrice(&products[idx], candidate.Supermarket, candidate.Price, now)
				result.Updated++
				if _, ok := touched[products[idx].ID]; !ok {
					touched[products[idx].ID] = struct{}{}
					result.UpdatedProductIDs = append(result.UpdatedProductIDs, products[idx].ID)
				}
				continue
			}

			if candidate.ExistingID != nil {
				return nil, Event{}, fmt.Errorf("candidate %d: %w: %s", i, ErrProductNotFound, *candidate.ExistingID)
			}

			p := c.productFromCandidate(candidate, now)
			products = append(products, p)
			touched[p.ID] = struct{}{}
			result.Added++
			result.AddedProductIDs = append(result.AddedProductIDs, p.ID)
		}

		ids := make([]string, 0, len(result.UpdatedProductIDs)+len(result.AddedProductIDs))
		ids = append(ids, result.UpdatedProductIDs...)
		ids = append(ids, result.AddedProductIDs...)
		return products, Event{
			Kind:       EventCommitted,
			ProductIDs: ids,
			Updated:    result.Updated,
			Added:      result.Added,
		}, nil
	})
	if err != nil {
		return CommitResult{}, err
	}
	return result, nil
}

func (c *Catalog) productFromCandidate(candidate Candidate, now time.Time) Product {
	name := strings.TrimSpace(candidate.Name)
	p := Product{
		ID:           c.newID(),
		Name:         name,
		Description:  candidate.Description,
		Category:     defaultString(candidate.Category, DefaultCategory),
		Unit:         defaultString(candidate.Unit, DefaultUnit),
		Image:        defaultString(candidate.Image, PlaceholderImage),
		Weight:       cloneDecimal(candidate.Weight),
		WeightUnit:   cloneString(candidate.WeightUnit),
		Pieces:       cloneInt(candidate.Pieces),
		Nutrition:    candidate.Nutrition.Clone(),
		PriceHistory: []PricePoint{},
	}
	p.Prices = priceTable(map[enums.Supermarket]decimal.Decimal{candidate.Supermarket: candidate.Price})
	seedHistory(&p, now)
	return p
}
