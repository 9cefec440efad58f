package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"rentsync/models"
)

// OrderStore is the slice of the canonical store the upsert engine
// needs. *storage.PostgresStore satisfies it.
type OrderStore interface {
	FindOrderStatus(ctx context.Context, orderNo string) (models.Status, bool, error)
	UpsertScrapedOrder(ctx context.Context, o *models.ScrapedOrder) error
	PurgeOrdersOutsideMerchants(ctx context.Context, siteID string, merchants []string) (int64, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// UpsertEngine reconciles a parsed batch into the canonical store.
// Keyed by vendor order number; a locally COMPLETED order is never
// touched again; merchants outside the allow-list are purged each
// pass. One bad record never aborts the batch.
type UpsertEngine struct {
	store OrderStore
}

func NewUpsertEngine(store OrderStore) *UpsertEngine {
	return &UpsertEngine{store: store}
}

// Run applies the batch and returns counts. Per-row errors are logged
// and counted, not propagated.
func (e *UpsertEngine) Run(ctx context.Context, siteID string, orders []models.ScrapedOrder, allowList []string) (*models.RunResult, error) {
	// The batch rides along so status polling can show what the last
	// run actually saw, not just the counts.
	result := &models.RunResult{SiteID: siteID, Total: len(orders), Orders: orders}

	products, err := e.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load product catalog: %w", err)
	}
	matcher := NewProductMatcher(products)

	allowed := make(map[string]bool, len(allowList))
	for _, m := range allowList {
		allowed[m] = true
	}

	now := time.Now()
	for i := range orders {
		order := orders[i]
		if order.OrderNo == "" {
			result.Errors++
			continue
		}
		if len(allowed) > 0 && !allowed[order.MerchantName] {
			continue
		}

		stored, ok, err := e.store.FindOrderStatus(ctx, order.OrderNo)
		if err != nil {
			log.Printf("Upsert lookup failed for %s: %v", order.OrderNo, err)
			result.Errors++
			continue
		}
		if ok && stored == models.StatusCompleted {
			result.SkippedDone++
			continue
		}

		if order.ProductID == nil {
			order.ProductID, order.VariantID = matcher.Match(order.ProductTitle, order.ProductSKU)
		}
		order.SiteID = siteID
		if order.ScrapedAt.IsZero() {
			order.ScrapedAt = now
		}

		if err := e.store.UpsertScrapedOrder(ctx, &order); err != nil {
			log.Printf("Upsert failed for %s: %v", order.OrderNo, err)
			result.Errors++
			continue
		}
		result.Upserted++
	}

	purged, err := e.store.PurgeOrdersOutsideMerchants(ctx, siteID, allowList)
	if err != nil {
		log.Printf("Allow-list purge failed for %s: %v", siteID, err)
		result.Errors++
	} else {
		result.Purged = int(purged)
	}

	return result, nil
}
