package models

import "testing"

func TestMapVendorStatus(t *testing.T) {
	cases := []struct {
		text string
		want Status
	}{
		{"待审核", StatusPendingReview},
		{"审核中", StatusPendingReview},
		{"待发货", StatusPendingShipment},
		{"待收货", StatusPendingReceipt},
		{"已发货", StatusPendingReceipt},
		{"租赁中", StatusRenting},
		{"已逾期", StatusOverdue},
		{"归还中", StatusReturning},
		{"已完成", StatusCompleted},
		{"已买断", StatusBoughtOut},
		{"已关闭", StatusClosed},
		{"交易关闭", StatusClosed},
		// Embedded in surrounding text still matches.
		{"订单状态：租赁中（正常）", StatusRenting},
		// Buyout wins over the completion phrase it often appears with.
		{"已完成 已买断", StatusBoughtOut},
	}

	for _, c := range cases {
		if got := MapVendorStatus(c.text); got != c.want {
			t.Errorf("MapVendorStatus(%q) = %s, want %s", c.text, got, c.want)
		}
	}
}

func TestMapVendorStatusDefaults(t *testing.T) {
	if got := MapVendorStatus(""); got != StatusPendingReview {
		t.Fatalf("empty status mapped to %s, want %s", got, StatusPendingReview)
	}
	if got := MapVendorStatus("某种新状态"); got != StatusPendingReview {
		t.Fatalf("unknown status mapped to %s, want %s", got, StatusPendingReview)
	}
}

func TestLogisticsEligibility(t *testing.T) {
	modal := []Status{StatusPendingReceipt, StatusRenting, StatusOverdue}
	for _, s := range modal {
		if !s.NeedsLogisticsModal() {
			t.Errorf("%s should use the logistics modal", s)
		}
		if s.NeedsLogisticsDetail() {
			t.Errorf("%s should not use the detail page", s)
		}
	}

	detail := []Status{StatusReturning, StatusCompleted}
	for _, s := range detail {
		if !s.NeedsLogisticsDetail() {
			t.Errorf("%s should use the detail page", s)
		}
	}

	for _, s := range []Status{StatusPendingReview, StatusPendingShipment, StatusClosed, StatusBoughtOut} {
		if s.NeedsLogisticsModal() {
			t.Errorf("%s should not trigger logistics extraction via modal", s)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusBoughtOut, StatusClosed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPendingReview, StatusRenting, StatusReturning} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestLogisticsLegMerge(t *testing.T) {
	leg := LogisticsLeg{Company: "顺丰速运"}
	leg.Merge(LogisticsLeg{Company: "中通快递", TrackingNo: "ZT123", LastEvent: "已揽收"})

	if leg.Company != "顺丰速运" {
		t.Errorf("merge overwrote existing company: %s", leg.Company)
	}
	if leg.TrackingNo != "ZT123" || leg.LastEvent != "已揽收" {
		t.Errorf("merge did not fill empty fields: %+v", leg)
	}
}
