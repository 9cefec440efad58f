package scraper

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"rentsync/models"
)

var (
	orderNoLabeledRe = regexp.MustCompile(`(?:订单号|订单编号)[:：]?\s*([A-Za-z0-9-]{8,})`)
	orderNoBareRe    = regexp.MustCompile(`\b\d{15,22}\b`)
	phoneRe          = regexp.MustCompile(`1[3-9]\d{9}`)
	isoDateRe        = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	rentalDaysRe     = regexp.MustCompile(`租期[:：]?\s*(\d+)\s*天`)
	digitsRe         = regexp.MustCompile(`\d+`)
)

// vendorStatusPhrases mirrors the portal's status vocabulary so the raw
// label can be stored alongside the canonical mapping.
var vendorStatusPhrases = []string{
	"已买断", "已完成", "交易完成", "已归还", "归还中", "退还中", "待归还",
	"已逾期", "租赁中", "租用中", "使用中", "待收货", "已发货",
	"待发货", "待出库", "已关闭", "已取消", "交易关闭", "待审核", "审核中", "待付款",
}

// deviceNoiseLabels disqualify a text line from being a product title
// or spec during the device-info fallback.
var deviceNoiseLabels = []string{
	"成色", "版本", "颜色", "内存", "套餐", "保险", "服务", "租期",
	"押金", "租金", "订单", "时间", "状态", "金额", "地址", "电话",
	"手机", "物流", "快递", "平台", "渠道", "商家", "店铺",
}

// ParseRow turns one extracted row into an order. A header table in
// the row HTML gets the structured pass first; the text heuristics then
// fill whatever is still blank. A row without a recognizable order
// number is rejected.
func ParseRow(raw RawRow) (*models.ScrapedOrder, error) {
	order := &models.ScrapedOrder{}

	if raw.HTML != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw.HTML)); err == nil {
			if doc.Find("th").Length() > 0 {
				parseStructured(doc, order)
			}
		}
	}

	parseHeuristics(raw.Text, order)

	if order.OrderNo == "" {
		return nil, fmt.Errorf("row %d: no order number found", raw.Index)
	}

	if order.VendorStatus == "" {
		order.VendorStatus = extractVendorStatus(raw.Text)
	}
	order.Status = models.MapVendorStatus(order.VendorStatus)
	if order.Status == models.StatusPendingReview && order.VendorStatus != "待审核" && order.VendorStatus != "审核中" && order.VendorStatus != "待付款" {
		// Surfaces new vendor wording; the order still syncs in the
		// least destructive state.
		log.Printf("Order %s: vendor status %q not recognized, defaulting to pending review", order.OrderNo, order.VendorStatus)
	}
	order.TotalAmount = order.RentPrice + order.InsurancePrice
	order.ScrapedAt = time.Now()
	return order, nil
}

// parseStructured walks th/td label-value pairs of a row rendered as a
// table and assigns cells through the header synonym map.
func parseStructured(doc *goquery.Document, order *models.ScrapedOrder) {
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		labels := tr.Find("th")
		values := tr.Find("td")
		if labels.Length() == 0 || values.Length() == 0 {
			return
		}
		n := labels.Length()
		if values.Length() < n {
			n = values.Length()
		}
		for i := 0; i < n; i++ {
			label := strings.TrimSpace(labels.Eq(i).Text())
			value := strings.TrimSpace(values.Eq(i).Text())
			if value == "" {
				continue
			}
			assignField(order, label, value)
		}
	})
}

func assignField(order *models.ScrapedOrder, label, value string) {
	switch {
	case containsAny(label, "订单号", "订单编号"):
		order.OrderNo = value
	case containsAny(label, "收货人", "客户姓名", "客户"):
		order.CustomerName = value
	case containsAny(label, "手机号", "联系电话", "电话"):
		if m := phoneRe.FindString(value); m != "" {
			order.CustomerPhone = m
		}
	case containsAny(label, "收货地址", "地址"):
		order.Address = value
	case containsAny(label, "商家", "店铺", "商户"):
		order.MerchantName = value
	case containsAny(label, "商品名称", "商品"):
		order.ProductTitle = value
	case containsAny(label, "规格", "型号"):
		order.ProductSKU = value
	case containsAny(label, "订单状态", "状态"):
		order.VendorStatus = value
	case containsAny(label, "平台"):
		order.Platform = value
	case containsAny(label, "渠道"):
		order.Channel = value
	case containsAny(label, "租期"):
		parseRentalPeriod(value, order)
	case containsAny(label, "总租金", "租金"):
		order.RentPrice = parseMoneyValue(value)
	case containsAny(label, "押金"):
		order.Deposit = parseMoneyValue(value)
	case containsAny(label, "增值服务", "保险"):
		order.InsurancePrice = parseMoneyValue(value)
	}
}

// parseHeuristics is the fallback chain over the row's rendered text.
// It only fills fields the structured pass left empty.
func parseHeuristics(text string, order *models.ScrapedOrder) {
	if order.OrderNo == "" {
		order.OrderNo = extractOrderNo(text)
	}
	if order.CustomerPhone == "" {
		order.CustomerPhone = phoneRe.FindString(text)
	}

	if order.RentPrice == 0 {
		order.RentPrice = moneyByLabel(text, "总租金", "租金")
	}
	if order.Deposit == 0 {
		order.Deposit = moneyByLabel(text, "商品押金", "押金")
	}
	if order.InsurancePrice == 0 {
		order.InsurancePrice = moneyByLabel(text, "增值服务", "保险")
	}

	if order.RentStart == "" || order.RentalDays == 0 {
		parseRentalPeriod(text, order)
	}

	if order.ProductTitle == "" {
		title, sku := parseDeviceInfo(text)
		order.ProductTitle = title
		if order.ProductSKU == "" {
			order.ProductSKU = sku
		}
	}
}

// extractOrderNo prefers the labeled form and falls back to a bare
// 15-22 digit run, the portal's unlabeled order number shape.
func extractOrderNo(text string) string {
	if m := orderNoLabeledRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return orderNoBareRe.FindString(text)
}

// moneyByLabel finds the first amount following any of the labels.
// Tolerates prefixes and separators like "已付/总租金:/¥100".
func moneyByLabel(text string, labels ...string) float64 {
	for _, label := range labels {
		re := regexp.MustCompile(regexp.QuoteMeta(label) + `\s*[:：/]*\s*[¥￥]?\s*(\d+(?:\.\d+)?)`)
		if m := re.FindStringSubmatch(text); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				return v
			}
		}
	}
	return 0
}

func parseMoneyValue(value string) float64 {
	re := regexp.MustCompile(`\d+(?:\.\d+)?`)
	if m := re.FindString(value); m != "" {
		v, err := strconv.ParseFloat(m, 64)
		if err == nil {
			return v
		}
	}
	return 0
}

// parseRentalPeriod reads either an explicit "租期: N天" or an ISO date
// pair; the duration over a date pair is inclusive of both endpoints.
func parseRentalPeriod(text string, order *models.ScrapedOrder) {
	if m := rentalDaysRe.FindStringSubmatch(text); m != nil && order.RentalDays == 0 {
		order.RentalDays, _ = strconv.Atoi(m[1])
	}

	dates := isoDateRe.FindAllString(text, 2)
	if len(dates) < 2 {
		return
	}
	start, err1 := time.Parse("2006-01-02", dates[0])
	end, err2 := time.Parse("2006-01-02", dates[1])
	if err1 != nil || err2 != nil || end.Before(start) {
		return
	}

	if order.RentStart == "" {
		order.RentStart = dates[0]
	}
	if order.ReturnDeadline == "" {
		order.ReturnDeadline = dates[1]
	}
	if order.RentalDays == 0 {
		order.RentalDays = int(end.Sub(start).Hours()/24) + 1
	}
}

// parseDeviceInfo guesses product title and spec from free-form row
// text: drop labeled, numeric and oversized lines, then take the two
// shortest remaining distinct lines in order of appearance.
func parseDeviceInfo(text string) (title, sku string) {
	type candidate struct {
		pos  int
		text string
	}
	var candidates []candidate

	for pos, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len([]rune(line)) > 40 {
			continue
		}
		if containsAny(line, deviceNoiseLabels...) || containsAny(line, vendorStatusPhrases...) {
			continue
		}
		if isoDateRe.MatchString(line) || phoneRe.MatchString(line) || orderNoBareRe.MatchString(line) {
			continue
		}
		if digitsRe.FindString(line) == line {
			continue
		}
		candidates = append(candidates, candidate{pos: pos, text: line})
	}

	if len(candidates) == 0 {
		return "", ""
	}

	best, second := -1, -1
	for i := range candidates {
		if best == -1 || shorter(candidates[i].text, candidates[best].text) {
			second = best
			best = i
		} else if candidates[i].text != candidates[best].text &&
			(second == -1 || shorter(candidates[i].text, candidates[second].text)) {
			second = i
		}
	}

	if second == -1 {
		return candidates[best].text, ""
	}

	// Earlier line is the title, later the spec.
	first, last := candidates[best], candidates[second]
	if last.pos < first.pos {
		first, last = last, first
	}
	return first.text, last.text
}

func shorter(a, b string) bool {
	return len([]rune(a)) < len([]rune(b))
}

func extractVendorStatus(text string) string {
	for _, phrase := range vendorStatusPhrases {
		if strings.Contains(text, phrase) {
			return phrase
		}
	}
	return ""
}

func extractInt(text string) int {
	if m := digitsRe.FindString(text); m != "" {
		n, err := strconv.Atoi(m)
		if err == nil {
			return n
		}
	}
	return 0
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
