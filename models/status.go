package models

import "strings"

// Status is the canonical rental lifecycle state, distinct from the
// vendor's free-text status label.
type Status string

const (
	StatusPendingReview   Status = "PENDING_REVIEW"
	StatusPendingShipment Status = "PENDING_SHIPMENT"
	StatusPendingReceipt  Status = "PENDING_RECEIPT"
	StatusRenting         Status = "RENTING"
	StatusOverdue         Status = "OVERDUE"
	StatusReturning       Status = "RETURNING"
	StatusCompleted       Status = "COMPLETED"
	StatusBoughtOut       Status = "BOUGHT_OUT"
	StatusClosed          Status = "CLOSED"
)

// statusKeywords is an ordered list: first substring match wins.
// Longer, more specific phrases come before the short ones they
// contain (已逾期 before 逾期 is redundant, but 待收货 must come before
// 收货 style partials from other entries).
var statusKeywords = []struct {
	keyword string
	status  Status
}{
	{"已买断", StatusBoughtOut},
	{"买断", StatusBoughtOut},
	{"已完成", StatusCompleted},
	{"交易完成", StatusCompleted},
	{"已归还", StatusCompleted},
	{"归还中", StatusReturning},
	{"退还中", StatusReturning},
	{"待归还", StatusReturning},
	{"已逾期", StatusOverdue},
	{"逾期", StatusOverdue},
	{"租赁中", StatusRenting},
	{"租用中", StatusRenting},
	{"使用中", StatusRenting},
	{"待收货", StatusPendingReceipt},
	{"已发货", StatusPendingReceipt},
	{"待发货", StatusPendingShipment},
	{"待出库", StatusPendingShipment},
	{"已关闭", StatusClosed},
	{"已取消", StatusClosed},
	{"交易关闭", StatusClosed},
	{"待审核", StatusPendingReview},
	{"审核中", StatusPendingReview},
	{"待付款", StatusPendingReview},
}

// MapVendorStatus maps a vendor free-text status onto the canonical
// lifecycle. Unmatched or empty text defaults to PENDING_REVIEW; that
// is deliberately the least destructive state (it never triggers
// logistics extraction and is never terminal).
func MapVendorStatus(text string) Status {
	text = strings.TrimSpace(text)
	if text == "" {
		return StatusPendingReview
	}
	for _, entry := range statusKeywords {
		if strings.Contains(text, entry.keyword) {
			return entry.status
		}
	}
	return StatusPendingReview
}

// NeedsLogisticsModal reports whether the status implies shipment data
// should be read from the order's logistics modal.
func (s Status) NeedsLogisticsModal() bool {
	switch s {
	case StatusPendingReceipt, StatusRenting, StatusOverdue:
		return true
	}
	return false
}

// NeedsLogisticsDetail reports whether the status implies shipment
// data should be read from the full detail page.
func (s Status) NeedsLogisticsDetail() bool {
	switch s {
	case StatusReturning, StatusCompleted:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusBoughtOut, StatusClosed:
		return true
	}
	return false
}
