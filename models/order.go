package models

import (
	"encoding/json"
	"time"
)

// ScrapedOrder is one vendor order as extracted from the portal.
// OrderNo is the vendor order number and the sole upsert key.
type ScrapedOrder struct {
	ID             int64     `json:"id" db:"id"`
	OrderNo        string    `json:"order_no" db:"order_no"`
	SiteID         string    `json:"site_id" db:"site_id"`
	CustomerName   string    `json:"customer_name" db:"customer_name"`
	CustomerPhone  string    `json:"customer_phone" db:"customer_phone"`
	Address        string    `json:"address" db:"address"`
	ProductTitle   string    `json:"product_title" db:"product_title"`
	ProductSKU     string    `json:"product_sku" db:"product_sku"`
	ProductID      *int64    `json:"product_id" db:"product_id"`
	VariantID      *int64    `json:"variant_id" db:"variant_id"`
	MerchantName   string    `json:"merchant_name" db:"merchant_name"`
	RentalDays     int       `json:"rental_days" db:"rental_days"`
	RentPrice      float64   `json:"rent_price" db:"rent_price"`
	InsurancePrice float64   `json:"insurance_price" db:"insurance_price"`
	Deposit        float64   `json:"deposit" db:"deposit"`
	TotalAmount    float64   `json:"total_amount" db:"total_amount"`
	Status         Status    `json:"status" db:"status"`
	VendorStatus   string    `json:"vendor_status" db:"vendor_status"`
	Platform       string    `json:"platform" db:"platform"`
	Channel        string    `json:"channel" db:"channel"`
	RentStart      string    `json:"rent_start" db:"rent_start"`
	ReturnDeadline string    `json:"return_deadline" db:"return_deadline"`

	Outbound LogisticsLeg `json:"outbound"`
	Return   LogisticsLeg `json:"return_leg"`

	ScrapedAt time.Time `json:"scraped_at" db:"scraped_at"`
}

// LogisticsLeg is one shipment direction: outbound to the customer or
// the return from the customer.
type LogisticsLeg struct {
	Company    string `json:"company"`
	TrackingNo string `json:"tracking_no"`
	LastEvent  string `json:"last_event"`
}

// Merge copies non-empty fields from other without clearing anything
// already found.
func (l *LogisticsLeg) Merge(other LogisticsLeg) {
	if l.Company == "" && other.Company != "" {
		l.Company = other.Company
	}
	if l.TrackingNo == "" && other.TrackingNo != "" {
		l.TrackingNo = other.TrackingNo
	}
	if l.LastEvent == "" && other.LastEvent != "" {
		l.LastEvent = other.LastEvent
	}
}

func (l LogisticsLeg) Empty() bool {
	return l.Company == "" && l.TrackingNo == "" && l.LastEvent == ""
}

// Product is a catalog entry from the canonical store, used for
// linking scraped titles back to local products.
type Product struct {
	ID       int64     `json:"id" db:"id"`
	Name     string    `json:"name" db:"name"`
	Keywords []string  `json:"keywords" db:"keywords"`
	Variants []Variant `json:"variants"`
}

type Variant struct {
	ID        int64  `json:"id" db:"id"`
	ProductID int64  `json:"product_id" db:"product_id"`
	Name      string `json:"name" db:"name"`
}

// OfflineOrder is a manually created order in the canonical store that
// carries a cross-reference to a vendor order number.
type OfflineOrder struct {
	ID        int64        `json:"id" db:"id"`
	OrderNo   string       `json:"order_no" db:"order_no"`
	Status    Status       `json:"status" db:"status"`
	Outbound  LogisticsLeg `json:"outbound"`
	Return    LogisticsLeg `json:"return_leg"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// CaptureSnapshot is the last extraction result, persisted to the KV
// config store for UI consumption.
type CaptureSnapshot struct {
	CapturedAt time.Time       `json:"captured_at"`
	SiteID     string          `json:"site_id"`
	Total      int             `json:"total"`
	Orders     json.RawMessage `json:"orders"`
}
