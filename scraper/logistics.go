package scraper

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/playwright-community/playwright-go"
	"rentsync/config"
	"rentsync/models"
)

const logisticsModalTimeout = 8000 // ms

var (
	logisticsCompanyRe  = regexp.MustCompile(`(?:物流公司|快递公司)[:：]?\s*([^\s,，]+)`)
	logisticsTrackingRe = regexp.MustCompile(`(?:运单号|快递单号)[:：]?\s*([A-Za-z0-9-]+)`)
	logisticsLatestRe   = regexp.MustCompile(`最新物流[:：]?\s*(.+)`)
)

// LogisticsExtractor pulls shipment data for orders whose status says
// goods are moving. Active rentals expose a summary modal on the list
// page; returning and completed orders need the full detail page.
type LogisticsExtractor struct {
	site *config.SiteConfig
}

func NewLogisticsExtractor(site *config.SiteConfig) *LogisticsExtractor {
	return &LogisticsExtractor{site: site}
}

// Enrich dispatches on the order's status and merges whatever it finds.
// A failed extraction leaves the order as parsed; it never aborts.
func (x *LogisticsExtractor) Enrich(page playwright.Page, row playwright.Locator, order *models.ScrapedOrder) {
	if row == nil {
		return
	}

	switch {
	case order.Status.NeedsLogisticsModal():
		leg, err := x.fromModal(page, row)
		if err == nil {
			order.Outbound.Merge(leg)
			return
		}
		// The modal comes up empty on some layouts; the detail page
		// still has the data.
		log.Printf("Logistics modal for %s: %v, trying detail page", order.OrderNo, err)
		x.enrichFromDetail(page, row, order, false)
	case order.Status.NeedsLogisticsDetail():
		x.enrichFromDetail(page, row, order, true)
	}
}

func (x *LogisticsExtractor) enrichFromDetail(page playwright.Page, row playwright.Locator, order *models.ScrapedOrder, applyStatus bool) {
	outbound, ret, statusText, err := x.fromDetailTab(page, row)
	if err != nil {
		log.Printf("Logistics detail for %s: %v", order.OrderNo, err)
		return
	}
	order.Outbound.Merge(outbound)
	order.Return.Merge(ret)

	// The detail page is fresher than the list row. Only the
	// returning/completed path trusts its status line; the timeline on
	// other pages is full of historical phrases.
	if applyStatus && statusText != "" && statusText != order.VendorStatus {
		order.VendorStatus = statusText
		order.Status = models.MapVendorStatus(statusText)
	}
}

// fromModal opens the row's logistics modal, reads its text and closes
// it again. An empty first read gets one retry; the modal populates
// asynchronously on slow days.
func (x *LogisticsExtractor) fromModal(page playwright.Page, row playwright.Locator) (models.LogisticsLeg, error) {
	var leg models.LogisticsLeg

	link := row.Locator(x.site.Selectors.DetailLink).First()
	if err := link.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5000)}); err != nil {
		return leg, fmt.Errorf("open modal: %w", err)
	}

	modal := page.Locator(x.site.Selectors.LogisticsModal).First()
	if err := modal.WaitFor(playwright.LocatorWaitForOptions{Timeout: playwright.Float(logisticsModalTimeout)}); err != nil {
		return leg, fmt.Errorf("modal did not appear: %w", err)
	}
	defer x.closeModal(page, modal)

	text, err := modal.InnerText()
	if err != nil || strings.TrimSpace(text) == "" {
		page.WaitForTimeout(1500)
		text, err = modal.InnerText()
		if err != nil {
			return leg, fmt.Errorf("read modal: %w", err)
		}
	}

	leg = ParseLogisticsSummary(text)
	if leg.Empty() {
		return leg, fmt.Errorf("modal text had no recognizable shipment fields")
	}
	return leg, nil
}

func (x *LogisticsExtractor) closeModal(page playwright.Page, modal playwright.Locator) {
	closeBtn := modal.Locator(".close, .el-dialog__close, [aria-label='Close']").First()
	if visible, _ := closeBtn.IsVisible(); visible {
		if err := closeBtn.Click(); err == nil {
			return
		}
	}
	page.Keyboard().Press("Escape")
}

// fromDetailTab opens the order detail page in its own tab so the list
// page keeps its position, and reads both shipment legs from it.
func (x *LogisticsExtractor) fromDetailTab(page playwright.Page, row playwright.Locator) (outbound, ret models.LogisticsLeg, statusText string, err error) {
	link := row.Locator(x.site.Selectors.DetailLink).First()
	href, err := link.GetAttribute("href")
	if err != nil || href == "" {
		return outbound, ret, "", fmt.Errorf("detail link has no href")
	}
	if strings.HasPrefix(href, "/") {
		href = x.site.BaseURL() + href
	}

	tab, err := page.Context().NewPage()
	if err != nil {
		return outbound, ret, "", fmt.Errorf("open detail tab: %w", err)
	}
	defer tab.Close()

	if _, err := tab.Goto(href, playwright.PageGotoOptions{
		Timeout:   playwright.Float(30000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return outbound, ret, "", fmt.Errorf("load detail page: %w", err)
	}
	tab.WaitForTimeout(1500)

	text, err := tab.Locator("body").InnerText()
	if err != nil {
		return outbound, ret, "", fmt.Errorf("read detail page: %w", err)
	}

	outbound, ret = ParseLogisticsDetail(text)
	return outbound, ret, extractVendorStatus(text), nil
}

// ParseLogisticsSummary reads one shipment leg out of modal text.
// Self-pickup orders carry no courier or tracking number; the pickup
// marker itself becomes the carrier.
func ParseLogisticsSummary(text string) models.LogisticsLeg {
	var leg models.LogisticsLeg

	if strings.Contains(text, "线下自提") {
		leg.Company = "线下自提"
		return leg
	}

	if m := logisticsCompanyRe.FindStringSubmatch(text); m != nil {
		leg.Company = m[1]
	}
	if m := logisticsTrackingRe.FindStringSubmatch(text); m != nil {
		leg.TrackingNo = m[1]
	}
	if m := logisticsLatestRe.FindStringSubmatch(text); m != nil {
		leg.LastEvent = strings.TrimSpace(m[1])
	}
	return leg
}

// ParseLogisticsDetail splits detail-page text into the outbound and
// return sections and parses each as a summary.
func ParseLogisticsDetail(text string) (outbound, ret models.LogisticsLeg) {
	outSection, retSection := splitLogisticsSections(text)
	outbound = ParseLogisticsSummary(outSection)
	ret = ParseLogisticsSummary(retSection)
	return outbound, ret
}

var returnSectionMarkers = []string{"归还物流", "退回物流", "返回物流"}

func splitLogisticsSections(text string) (outbound, ret string) {
	for _, marker := range returnSectionMarkers {
		if idx := strings.Index(text, marker); idx >= 0 {
			return text[:idx], text[idx:]
		}
	}
	return text, ""
}
