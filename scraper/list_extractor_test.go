package scraper

import (
	"fmt"
	"testing"
)

// fakePager serves a fixed number of pages, then reports no next page.
type fakePager struct {
	pages     int
	rowErrOn  int
	nextErrOn int

	page     int
	rowCalls int
}

func (p *fakePager) Rows() ([]RawRow, error) {
	p.rowCalls++
	if p.rowErrOn != 0 && p.rowCalls == p.rowErrOn {
		return nil, fmt.Errorf("extraction failed")
	}
	return []RawRow{{Index: 0, Text: fmt.Sprintf("page %d row", p.rowCalls)}}, nil
}

func (p *fakePager) Next() (bool, error) {
	if p.nextErrOn != 0 && p.page+1 == p.nextErrOn {
		return false, fmt.Errorf("click failed")
	}
	p.page++
	return p.page < p.pages, nil
}

func TestCollectPagesStopsAtDisabledControl(t *testing.T) {
	pager := &fakePager{pages: 3}

	var collected []RawRow
	visited, err := CollectPages(pager, 10, func(_ int, rows []RawRow) error {
		collected = append(collected, rows...)
		return nil
	})
	if err != nil {
		t.Fatalf("CollectPages failed: %v", err)
	}
	if visited != 3 {
		t.Errorf("visited %d pages, want 3", visited)
	}
	if len(collected) != 3 {
		t.Errorf("collected %d rows, want 3", len(collected))
	}
}

func TestCollectPagesHonorsMaxCap(t *testing.T) {
	pager := &fakePager{pages: 100}

	visited, err := CollectPages(pager, 5, nil)
	if err != nil {
		t.Fatalf("CollectPages failed: %v", err)
	}
	if visited != 5 {
		t.Errorf("visited %d pages, want 5", visited)
	}
}

func TestCollectPagesSkipsFailedPage(t *testing.T) {
	pager := &fakePager{pages: 3, rowErrOn: 2}

	visited, err := CollectPages(pager, 10, nil)
	if err != nil {
		t.Fatalf("CollectPages failed: %v", err)
	}
	// Page 2 failed extraction but traversal continued to page 3.
	if visited != 2 {
		t.Errorf("visited %d pages, want 2", visited)
	}
}

func TestCollectPagesReturnsNavigationError(t *testing.T) {
	pager := &fakePager{pages: 5, nextErrOn: 2}

	visited, err := CollectPages(pager, 10, nil)
	if err == nil {
		t.Fatal("expected a navigation error")
	}
	if visited != 2 {
		t.Errorf("visited %d pages before the error, want 2", visited)
	}
}

func TestIsNextControlText(t *testing.T) {
	for _, text := range []string{"下一页", " 下一页 ", "Next", "›", "»", ">"} {
		if !IsNextControlText(text) {
			t.Errorf("%q should verify as a next control", text)
		}
	}
	for _, text := range []string{"", "上一页", "确定", "提交"} {
		if IsNextControlText(text) {
			t.Errorf("%q should not verify as a next control", text)
		}
	}
}

func TestIsDisabledControl(t *testing.T) {
	cases := []struct {
		disabled, aria, class string
		want                  bool
	}{
		{"", "", "btn-next", false},
		{"disabled", "", "", true},
		{"", "true", "", true},
		{"", "false", "btn", false},
		{"", "", "btn-next disabled", true},
		{"", "", "el-pager is-disabled", true},
		// Substrings inside other class names do not count.
		{"", "", "not-disabled-style", false},
	}
	for _, c := range cases {
		got := IsDisabledControl(c.disabled, c.aria, c.class)
		if got != c.want {
			t.Errorf("IsDisabledControl(%q, %q, %q) = %v, want %v", c.disabled, c.aria, c.class, got, c.want)
		}
	}
}
