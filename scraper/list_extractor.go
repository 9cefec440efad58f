package scraper

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"rentsync/config"
)

// RawRow is one extracted order row: rendered text for the heuristic
// parser and inner HTML for the structured (header table) parser.
type RawRow struct {
	Index int
	Text  string
	HTML  string
}

// Pager abstracts one paginated order list so the traversal loop is
// testable without a browser.
type Pager interface {
	// Rows extracts the current page's rows.
	Rows() ([]RawRow, error)
	// Next advances to the next page. It returns false when there is
	// no verified, enabled next-control.
	Next() (bool, error)
}

// CollectPages drives a Pager until the max-page cap, a missing or
// disabled next-control, or a navigation error. A failed row
// extraction skips that page but still tries to advance. Returns the
// number of pages visited.
func CollectPages(p Pager, maxPages int, visit func(pageNum int, rows []RawRow) error) (int, error) {
	visited := 0
	for pageNum := 1; ; pageNum++ {
		rows, err := p.Rows()
		if err != nil {
			log.Printf("Row extraction failed on page %d: %v", pageNum, err)
		} else {
			visited++
			if visit != nil {
				if err := visit(pageNum, rows); err != nil {
					log.Printf("Page %d processing error: %v", pageNum, err)
				}
			}
		}

		if maxPages > 0 && pageNum >= maxPages {
			return visited, nil
		}

		ok, err := p.Next()
		if err != nil {
			return visited, fmt.Errorf("advance past page %d: %w", pageNum, err)
		}
		if !ok {
			return visited, nil
		}
	}
}

// ListExtractor resolves the order-list container and rows on a live
// page and implements Pager over it.
type ListExtractor struct {
	site *config.SiteConfig
	page playwright.Page
	risk *RiskDetector

	locate    func(sel string) playwright.Locator
	container playwright.Locator
	current   []playwright.Locator
}

func NewListExtractor(site *config.SiteConfig, page playwright.Page, risk *RiskDetector) *ListExtractor {
	return &ListExtractor{site: site, page: page, risk: risk}
}

// ResolveContainer searches the main document first and then each
// child frame, retrying with backoff; the portal renders the list
// inside an embedded frame on some pages.
func (e *ListExtractor) ResolveContainer() error {
	sel := e.site.Selectors.ListContainer

	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}

		loc := e.page.Locator(sel).First()
		if visible, _ := loc.IsVisible(); visible {
			e.container = loc
			e.locate = func(s string) playwright.Locator { return e.page.Locator(s) }
			return nil
		}

		for _, frame := range e.page.Frames() {
			if frame == e.page.MainFrame() {
				continue
			}
			floc := frame.Locator(sel).First()
			if visible, _ := floc.IsVisible(); visible {
				f := frame
				e.container = floc
				e.locate = func(s string) playwright.Locator { return f.Locator(s) }
				return nil
			}
		}
	}

	return fmt.Errorf("order list container %q not found in page or frames", sel)
}

// PendingCount reads the portal's pending-order counter when a
// selector is configured; 0 when absent or unreadable.
func (e *ListExtractor) PendingCount() int {
	sel := e.site.Selectors.PendingCount
	if sel == "" || e.locate == nil {
		return 0
	}
	text, err := e.locate(sel).First().InnerText()
	if err != nil {
		return 0
	}
	return extractInt(text)
}

// Rows resolves row locators through three fallback tiers and captures
// each row's text and HTML.
func (e *ListExtractor) Rows() ([]RawRow, error) {
	if e.container == nil {
		if err := e.ResolveContainer(); err != nil {
			return nil, err
		}
	}

	locators, err := e.rowLocators()
	if err != nil {
		return nil, err
	}
	e.current = locators

	rows := make([]RawRow, 0, len(locators))
	for i, loc := range locators {
		text, err := loc.InnerText()
		if err != nil {
			log.Printf("Row %d text extraction failed: %v", i, err)
			continue
		}
		html, _ := loc.InnerHTML()
		rows = append(rows, RawRow{Index: i, Text: text, HTML: html})
	}
	return rows, nil
}

// RowLocator returns the live locator behind the row extracted at
// index i on the current page, for logistics drill-down.
func (e *ListExtractor) RowLocator(i int) playwright.Locator {
	if i < 0 || i >= len(e.current) {
		return nil
	}
	return e.current[i]
}

func (e *ListExtractor) rowLocators() ([]playwright.Locator, error) {
	// Tier 1: explicit selector list from config.
	for _, sel := range e.site.Selectors.Rows {
		locs, err := e.container.Locator(sel).All()
		if err == nil && len(locs) > 0 {
			return locs, nil
		}
	}

	// Tier 2: index-templated selector over counted direct children.
	if tmpl := e.site.Selectors.RowIndexTemplate; tmpl != "" {
		count, err := e.container.Locator("xpath=./*").Count()
		if err == nil && count > 0 {
			var locs []playwright.Locator
			for i := 1; i <= count; i++ {
				loc := e.locate(fmt.Sprintf(tmpl, i)).First()
				if visible, _ := loc.IsVisible(); visible {
					locs = append(locs, loc)
				}
			}
			if len(locs) > 0 {
				return locs, nil
			}
		}
	}

	// Tier 3: structural heuristics.
	locs, err := e.container.Locator("xpath=./div").All()
	if err == nil && len(locs) > 0 {
		return locs, nil
	}
	locs, err = e.container.Locator("tr").All()
	if err == nil && len(locs) > 0 {
		return locs, nil
	}

	return nil, fmt.Errorf("no rows resolved in order list container")
}

// Next locates the next-page control, verifies it by its rendered
// text, checks for disabled state and clicks it, falling back to a raw
// DOM click when intercepted.
func (e *ListExtractor) Next() (bool, error) {
	candidates := []string{}
	if sel := e.site.Selectors.PaginationNext; sel != "" {
		candidates = append(candidates, sel)
	}
	candidates = append(candidates, ".btn-next", "button.next", "a.next", ".pagination-next", "li.next a")

	var next playwright.Locator
	for _, sel := range candidates {
		loc := e.locate(sel).First()
		visible, _ := loc.IsVisible()
		if !visible {
			continue
		}
		text, _ := loc.InnerText()
		if !IsNextControlText(text) {
			// Never trust the configured selector blindly.
			continue
		}
		next = loc
		break
	}
	if next == nil {
		return false, nil
	}

	disabledAttr, _ := next.GetAttribute("disabled")
	ariaDisabled, _ := next.GetAttribute("aria-disabled")
	class, _ := next.GetAttribute("class")
	if IsDisabledControl(disabledAttr, ariaDisabled, class) {
		return false, nil
	}

	if err := next.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5000)}); err != nil {
		// Overlays intercept pointer events; dispatch the click in DOM.
		if _, evalErr := next.Evaluate(`el => el.click()`, nil); evalErr != nil {
			return false, fmt.Errorf("click next control: %w", err)
		}
	}

	if e.risk != nil {
		if err := e.risk.Check(e.page); err != nil {
			return false, err
		}
	}

	return true, e.waitForContainer()
}

func (e *ListExtractor) waitForContainer() error {
	sel := e.site.Selectors.ListContainer
	for i := 0; i < 20; i++ {
		e.page.WaitForTimeout(500)
		if visible, _ := e.locate(sel).First().IsVisible(); visible {
			return nil
		}
	}
	return fmt.Errorf("order list did not reappear after pagination")
}

var nextControlTexts = []string{"下一页", "下页", "next", "›", "»", ">"}

// IsNextControlText reports whether a control's rendered text really
// means "next page".
func IsNextControlText(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return false
	}
	for _, want := range nextControlTexts {
		if strings.Contains(text, want) {
			return true
		}
	}
	return false
}

// IsDisabledControl applies attribute/class heuristics for a disabled
// pagination control.
func IsDisabledControl(disabledAttr, ariaDisabled, class string) bool {
	if disabledAttr != "" {
		return true
	}
	if strings.EqualFold(ariaDisabled, "true") {
		return true
	}
	for _, marker := range []string{"disabled", "is-disabled"} {
		for _, c := range strings.Fields(class) {
			if c == marker {
				return true
			}
		}
	}
	return false
}
