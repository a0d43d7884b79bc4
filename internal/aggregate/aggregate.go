// Package aggregate builds the per-client lookups that client-level rules
// read during evaluation.
package aggregate

import (
	"github.com/opensource-finance/laftscreen/internal/domain"
)

// Clients holds per-client aggregates for one dataset. It is built once
// before evaluation and never mutated afterwards, so concurrent readers
// need no locking.
type Clients struct {
	atypical map[string]int
	products map[string]int
}

// Build computes the aggregates. outliers is aligned with records.
// Records without a client id do not contribute.
func Build(records []domain.Record, outliers []domain.Outlier) *Clients {
	c := &Clients{
		atypical: make(map[string]int),
		products: make(map[string]int),
	}

	seen := make(map[string]map[string]struct{})
	for i := range records {
		r := &records[i]
		if !r.Has(domain.FieldClientID) {
			continue
		}
		id := r.ClientID

		if i < len(outliers) && outliers[i].Atypical {
			c.atypical[id]++
		}

		if r.Has(domain.FieldProduct) {
			set, ok := seen[id]
			if !ok {
				set = make(map[string]struct{})
				seen[id] = set
			}
			set[r.Product] = struct{}{}
		}
	}

	for id, set := range seen {
		c.products[id] = len(set)
	}
	return c
}

// AtypicalCount returns the number of atypical records of the client.
func (c *Clients) AtypicalCount(clientID string) int {
	return c.atypical[clientID]
}

// DistinctProducts returns the number of distinct products the client holds
// across the dataset.
func (c *Clients) DistinctProducts(clientID string) int {
	return c.products[clientID]
}

// Len returns the number of clients with at least one atypical record or
// product.
func (c *Clients) Len() int {
	n := len(c.products)
	for id := range c.atypical {
		if _, ok := c.products[id]; !ok {
			n++
		}
	}
	return n
}
