package scraper

import (
	"testing"

	"rentsync/models"
)

func TestParseRowHeuristics(t *testing.T) {
	raw := RawRow{
		Index: 0,
		Text: "订单号: 2024051234567890\n" +
			"张三 13812345678\n" +
			"iPhone 15 Pro\n" +
			"256G 深空黑\n" +
			"租期: 2024-05-01 至 2024-05-10\n" +
			"已付/总租金:/¥100 商品押金: ¥200 增值服务:¥20\n" +
			"租赁中",
	}

	order, err := ParseRow(raw)
	if err != nil {
		t.Fatalf("ParseRow failed: %v", err)
	}

	if order.OrderNo != "2024051234567890" {
		t.Errorf("order no = %q", order.OrderNo)
	}
	if order.CustomerPhone != "13812345678" {
		t.Errorf("phone = %q", order.CustomerPhone)
	}
	if order.RentPrice != 100 {
		t.Errorf("rent = %v, want 100", order.RentPrice)
	}
	if order.Deposit != 200 {
		t.Errorf("deposit = %v, want 200", order.Deposit)
	}
	if order.InsurancePrice != 20 {
		t.Errorf("insurance = %v, want 20", order.InsurancePrice)
	}
	// The deposit is refundable and never part of what the customer pays.
	if order.TotalAmount != 120 {
		t.Errorf("total = %v, want 120", order.TotalAmount)
	}

	if order.RentStart != "2024-05-01" || order.ReturnDeadline != "2024-05-10" {
		t.Errorf("rental period = %q .. %q", order.RentStart, order.ReturnDeadline)
	}
	// Both endpoints count.
	if order.RentalDays != 10 {
		t.Errorf("rental days = %d, want 10", order.RentalDays)
	}

	if order.ProductTitle != "iPhone 15 Pro" {
		t.Errorf("title = %q", order.ProductTitle)
	}
	if order.ProductSKU != "256G 深空黑" {
		t.Errorf("sku = %q", order.ProductSKU)
	}

	if order.VendorStatus != "租赁中" {
		t.Errorf("vendor status = %q", order.VendorStatus)
	}
	if order.Status != models.StatusRenting {
		t.Errorf("status = %s, want %s", order.Status, models.StatusRenting)
	}
}

func TestParseRowStructured(t *testing.T) {
	raw := RawRow{
		HTML: `<table>
			<tr><th>订单号</th><td>DD202405180001</td></tr>
			<tr><th>收货人</th><td>王五</td></tr>
			<tr><th>联系电话</th><td>13900001111</td></tr>
			<tr><th>收货地址</th><td>上海市浦东新区某路1号</td></tr>
			<tr><th>商家</th><td>某某数码专营店</td></tr>
			<tr><th>订单状态</th><td>待发货</td></tr>
			<tr><th>总租金</th><td>¥88.5</td></tr>
		</table>`,
	}

	order, err := ParseRow(raw)
	if err != nil {
		t.Fatalf("ParseRow failed: %v", err)
	}

	if order.OrderNo != "DD202405180001" {
		t.Errorf("order no = %q", order.OrderNo)
	}
	if order.CustomerName != "王五" {
		t.Errorf("customer = %q", order.CustomerName)
	}
	if order.CustomerPhone != "13900001111" {
		t.Errorf("phone = %q", order.CustomerPhone)
	}
	if order.MerchantName != "某某数码专营店" {
		t.Errorf("merchant = %q", order.MerchantName)
	}
	if order.Status != models.StatusPendingShipment {
		t.Errorf("status = %s, want %s", order.Status, models.StatusPendingShipment)
	}
	if order.RentPrice != 88.5 || order.TotalAmount != 88.5 {
		t.Errorf("rent = %v total = %v, want 88.5", order.RentPrice, order.TotalAmount)
	}
}

func TestParseRowRejectsWithoutOrderNo(t *testing.T) {
	raw := RawRow{Text: "没有可识别的编号 租赁中"}
	if _, err := ParseRow(raw); err == nil {
		t.Fatal("expected an error for a row without an order number")
	}
}

func TestExtractOrderNo(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"订单编号：AB-2024-00018888", "AB-2024-00018888"},
		{"混合文本 202405181234567 结尾", "202405181234567"},
		{"太短 12345678 不算", ""},
	}
	for _, c := range cases {
		if got := extractOrderNo(c.text); got != c.want {
			t.Errorf("extractOrderNo(%q) = %q, want %q", c.text, got, c.want)
		}
	}
}

func TestParseRentalPeriodInvalidRange(t *testing.T) {
	var order models.ScrapedOrder
	parseRentalPeriod("2024-05-10 至 2024-05-01", &order)
	if order.RentalDays != 0 || order.RentStart != "" {
		t.Fatalf("reversed date range should be ignored, got %+v", order)
	}
}

func TestParseRentalPeriodExplicitDays(t *testing.T) {
	var order models.ScrapedOrder
	parseRentalPeriod("租期: 30天", &order)
	if order.RentalDays != 30 {
		t.Fatalf("rental days = %d, want 30", order.RentalDays)
	}
}
