package services

import (
	"strings"

	"rentsync/models"
)

// ProductMatcher links scraped product titles back to catalog
// products and variants. Explicit per-product alias keywords are tried
// first; otherwise longest-substring containment between the
// normalized vendor title/SKU and catalog names decides, so a short
// catalog name never shadows a longer, more specific one.
type ProductMatcher struct {
	products []models.Product
}

func NewProductMatcher(products []models.Product) *ProductMatcher {
	return &ProductMatcher{products: products}
}

// Match returns the linked product and variant IDs, nil when nothing
// in the catalog matches.
func (m *ProductMatcher) Match(title, sku string) (*int64, *int64) {
	haystack := normalizeName(title) + " " + normalizeName(sku)
	haystack = strings.ReplaceAll(haystack, " ", "")
	if haystack == "" {
		return nil, nil
	}

	product := m.matchByKeyword(haystack)
	if product == nil {
		product = m.matchByName(haystack)
	}
	if product == nil {
		return nil, nil
	}

	productID := product.ID
	variantID := matchVariant(product, haystack)
	return &productID, variantID
}

func (m *ProductMatcher) matchByKeyword(haystack string) *models.Product {
	var best *models.Product
	bestLen := 0
	for i := range m.products {
		p := &m.products[i]
		for _, kw := range p.Keywords {
			norm := normalizeName(kw)
			if norm == "" || !strings.Contains(haystack, norm) {
				continue
			}
			if len(norm) > bestLen {
				best = p
				bestLen = len(norm)
			}
		}
	}
	return best
}

func (m *ProductMatcher) matchByName(haystack string) *models.Product {
	var best *models.Product
	bestLen := 0
	for i := range m.products {
		p := &m.products[i]
		norm := normalizeName(p.Name)
		if norm == "" || !strings.Contains(haystack, norm) {
			continue
		}
		if len(norm) > bestLen {
			best = p
			bestLen = len(norm)
		}
	}
	return best
}

func matchVariant(product *models.Product, haystack string) *int64 {
	var bestID *int64
	bestLen := 0
	for i := range product.Variants {
		v := &product.Variants[i]
		norm := normalizeName(v.Name)
		if norm == "" || !strings.Contains(haystack, norm) {
			continue
		}
		if len(norm) > bestLen {
			bestID = &v.ID
			bestLen = len(norm)
		}
	}
	return bestID
}

// normalizeName lower-cases and strips all whitespace so vendor
// spacing quirks do not break containment.
func normalizeName(s string) string {
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), "")
}
