package services

import (
	"context"
	"testing"

	"rentsync/models"
)

func TestReconcilePropagatesStatusAndLogistics(t *testing.T) {
	target := &models.OfflineOrder{
		OrderNo: "A1",
		Status:  models.StatusPendingShipment,
	}
	source := &models.ScrapedOrder{
		OrderNo:  "A1",
		Status:   models.StatusRenting,
		Outbound: models.LogisticsLeg{Company: "顺丰速运", TrackingNo: "SF111"},
	}

	if !Reconcile(target, source) {
		t.Fatal("expected changes")
	}
	if target.Status != models.StatusRenting {
		t.Errorf("status = %s, want %s", target.Status, models.StatusRenting)
	}
	if target.Outbound.TrackingNo != "SF111" {
		t.Errorf("outbound = %+v", target.Outbound)
	}
}

func TestReconcileNeverClearsManualFields(t *testing.T) {
	target := &models.OfflineOrder{
		OrderNo:  "A1",
		Status:   models.StatusRenting,
		Outbound: models.LogisticsLeg{Company: "手动录入快递", TrackingNo: "MANUAL1"},
	}
	source := &models.ScrapedOrder{
		OrderNo:  "A1",
		Status:   "",
		Outbound: models.LogisticsLeg{Company: "顺丰速运"},
	}

	Reconcile(target, source)

	if target.Status != models.StatusRenting {
		t.Errorf("empty scraped status cleared the manual status: %s", target.Status)
	}
	if target.Outbound.Company != "手动录入快递" || target.Outbound.TrackingNo != "MANUAL1" {
		t.Errorf("manual logistics fields were overwritten: %+v", target.Outbound)
	}
}

func TestReconcileNoChanges(t *testing.T) {
	target := &models.OfflineOrder{
		OrderNo:  "A1",
		Status:   models.StatusRenting,
		Outbound: models.LogisticsLeg{Company: "顺丰速运"},
	}
	source := &models.ScrapedOrder{
		OrderNo:  "A1",
		Status:   models.StatusRenting,
		Outbound: models.LogisticsLeg{Company: "顺丰速运"},
	}

	if Reconcile(target, source) {
		t.Fatal("identical data should report no change")
	}
}

// fakeOfflineStore backs OfflineSync.Run without a database.
type fakeOfflineStore struct {
	scraped []models.ScrapedOrder
	offline []models.OfflineOrder
	updated []string
}

func (s *fakeOfflineStore) ListScrapedOrders(_ context.Context, _ string) ([]models.ScrapedOrder, error) {
	return s.scraped, nil
}

func (s *fakeOfflineStore) ListOfflineOrdersByOrderNos(_ context.Context, _ []string) ([]models.OfflineOrder, error) {
	return s.offline, nil
}

func (s *fakeOfflineStore) UpdateOfflineOrder(_ context.Context, o *models.OfflineOrder) error {
	s.updated = append(s.updated, o.OrderNo)
	return nil
}

func TestOfflineSyncRun(t *testing.T) {
	store := &fakeOfflineStore{
		scraped: []models.ScrapedOrder{
			{OrderNo: "A1", Status: models.StatusRenting},
			{OrderNo: "A2", Status: models.StatusRenting},
		},
		offline: []models.OfflineOrder{
			{OrderNo: "A1", Status: models.StatusPendingShipment}, // differs, updates
			{OrderNo: "A2", Status: models.StatusRenting},         // already in sync
		},
	}

	sync := NewOfflineSync(store, nil)
	synced, err := sync.Run(context.Background(), "site-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(synced) != 1 || synced[0] != "A1" {
		t.Fatalf("synced = %v, want [A1]", synced)
	}
	if len(store.updated) != 1 {
		t.Fatalf("updated = %v, want exactly one write", store.updated)
	}
}

func TestOfflineSyncRunNothingScraped(t *testing.T) {
	sync := NewOfflineSync(&fakeOfflineStore{}, nil)
	synced, err := sync.Run(context.Background(), "site-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if synced != nil {
		t.Fatalf("synced = %v, want nil", synced)
	}
}
