package services

import (
	"context"
	"fmt"
	"time"

	"rentsync/logging"
	"rentsync/models"
)

// OfflineStore is the slice of the canonical store the reconciliation
// sync needs. *storage.PostgresStore satisfies it.
type OfflineStore interface {
	ListScrapedOrders(ctx context.Context, siteID string) ([]models.ScrapedOrder, error)
	ListOfflineOrdersByOrderNos(ctx context.Context, orderNos []string) ([]models.OfflineOrder, error)
	UpdateOfflineOrder(ctx context.Context, o *models.OfflineOrder) error
}

// OfflineSync joins persisted scraped orders to manually created
// orders sharing a cross-reference number and propagates status and
// logistics diffs onto them. It never clears a manually entered field:
// only non-empty scraped values that differ are written.
type OfflineSync struct {
	store OfflineStore
	sink  logging.Sink
}

func NewOfflineSync(store OfflineStore, sink logging.Sink) *OfflineSync {
	return &OfflineSync{store: store, sink: sink}
}

// Run performs one reconciliation pass for a site and returns the
// order numbers that received updates.
func (s *OfflineSync) Run(ctx context.Context, siteID string) ([]string, error) {
	scraped, err := s.store.ListScrapedOrders(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("list scraped orders: %w", err)
	}
	if len(scraped) == 0 {
		return nil, nil
	}

	byNo := make(map[string]*models.ScrapedOrder, len(scraped))
	orderNos := make([]string, 0, len(scraped))
	for i := range scraped {
		byNo[scraped[i].OrderNo] = &scraped[i]
		orderNos = append(orderNos, scraped[i].OrderNo)
	}

	offline, err := s.store.ListOfflineOrdersByOrderNos(ctx, orderNos)
	if err != nil {
		return nil, fmt.Errorf("list offline orders: %w", err)
	}

	var synced []string
	for i := range offline {
		target := &offline[i]
		source := byNo[target.OrderNo]
		if source == nil {
			continue
		}

		if !Reconcile(target, source) {
			continue
		}

		if err := s.store.UpdateOfflineOrder(ctx, target); err != nil {
			s.log(fmt.Sprintf("update failed for %s: %v", target.OrderNo, err), target.OrderNo)
			continue
		}
		synced = append(synced, target.OrderNo)
		s.log(fmt.Sprintf("synced %s: status=%s", target.OrderNo, target.Status), target.OrderNo)
	}

	if len(synced) > 0 {
		s.log(fmt.Sprintf("pass complete: %d offline orders updated", len(synced)), synced...)
	}
	return synced, nil
}

// Reconcile copies differing non-empty fields from the scraped order
// onto the offline order. Returns true when anything changed.
func Reconcile(target *models.OfflineOrder, source *models.ScrapedOrder) bool {
	changed := false

	if source.Status != "" && source.Status != target.Status {
		target.Status = source.Status
		changed = true
	}

	before := target.Outbound
	target.Outbound.Merge(source.Outbound)
	if target.Outbound != before {
		changed = true
	}

	before = target.Return
	target.Return.Merge(source.Return)
	if target.Return != before {
		changed = true
	}

	return changed
}

func (s *OfflineSync) log(msg string, orderNos ...string) {
	if s.sink == nil {
		return
	}
	s.sink.Append(models.SyncLogEntry{Timestamp: time.Now(), Message: msg, OrderNos: orderNos})
}
