package services

import (
	"testing"

	"rentsync/models"
)

func testCatalog() []models.Product {
	return []models.Product{
		{ID: 1, Name: "iPhone 15", Variants: []models.Variant{
			{ID: 10, ProductID: 1, Name: "128G"},
			{ID: 11, ProductID: 1, Name: "256G"},
		}},
		{ID: 2, Name: "iPhone 15 Pro", Variants: []models.Variant{
			{ID: 20, ProductID: 2, Name: "256G"},
		}},
		{ID: 3, Name: "MacBook Air", Keywords: []string{"苹果笔记本"}},
	}
}

func TestMatchPrefersLongestName(t *testing.T) {
	m := NewProductMatcher(testCatalog())

	// "iPhone 15" is contained too, but the longer name must win.
	productID, variantID := m.Match("iPhone 15 Pro 全新", "256G")
	if productID == nil || *productID != 2 {
		t.Fatalf("product id = %v, want 2", productID)
	}
	if variantID == nil || *variantID != 20 {
		t.Fatalf("variant id = %v, want 20", variantID)
	}
}

func TestMatchByKeywordAlias(t *testing.T) {
	m := NewProductMatcher(testCatalog())

	productID, _ := m.Match("苹果笔记本 13寸", "")
	if productID == nil || *productID != 3 {
		t.Fatalf("product id = %v, want 3 via keyword alias", productID)
	}
}

func TestMatchIgnoresSpacingAndCase(t *testing.T) {
	m := NewProductMatcher(testCatalog())

	productID, _ := m.Match("IPHONE  15pro", "")
	if productID == nil || *productID != 2 {
		t.Fatalf("product id = %v, want 2", productID)
	}
}

func TestMatchNoCatalogHit(t *testing.T) {
	m := NewProductMatcher(testCatalog())

	productID, variantID := m.Match("小米14", "")
	if productID != nil || variantID != nil {
		t.Fatalf("expected no match, got product=%v variant=%v", productID, variantID)
	}
}

func TestMatchEmptyInput(t *testing.T) {
	m := NewProductMatcher(testCatalog())
	if productID, _ := m.Match("", ""); productID != nil {
		t.Fatalf("empty input matched product %v", productID)
	}
}
