package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const siteYAML = `
id: vendor-a
name: Vendor A
enabled: true
login_url: https://vendor-a.example.com/login
order_url: https://vendor-a.example.com/orders
username: acct
password: secret
max_pages: 5
selectors:
  username_field: "#username"
  password_field: "#password"
  login_button: "button[type=submit]"
  logged_in_probe: ".user-menu"
  list_container: ".order-list"
  rows:
    - ".order-item"
  pagination_next: ".btn-next"
merchant_allow_list:
  - 某某数码专营店
offline_sync:
  enabled: true
  interval: 15m
`

func writeSite(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSiteConfigs(t *testing.T) {
	dir := t.TempDir()
	writeSite(t, dir, "vendor-a.yaml", siteYAML)
	t.Setenv("SITES_DIR", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	site, ok := cfg.Sites["vendor-a"]
	if !ok {
		t.Fatalf("site vendor-a not loaded, got %v", cfg.Sites)
	}
	if !site.Enabled || site.MaxPages != 5 {
		t.Errorf("site = %+v", site)
	}
	if site.Selectors.ListContainer != ".order-list" {
		t.Errorf("list container = %q", site.Selectors.ListContainer)
	}
	if len(site.MerchantAllowList) != 1 {
		t.Errorf("allow list = %v", site.MerchantAllowList)
	}
	if site.OfflineSync.Interval != 15*time.Minute {
		t.Errorf("offline interval = %s", site.OfflineSync.Interval)
	}
	if got := site.BaseURL(); got != "https://vendor-a.example.com" {
		t.Errorf("base url = %q", got)
	}
}

func TestLoadRejectsIncompleteSite(t *testing.T) {
	dir := t.TempDir()
	writeSite(t, dir, "broken.yaml", "id: broken\nlogin_url: https://x.example.com/login\n")
	t.Setenv("SITES_DIR", dir)

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for a site without order_url")
	}
}

func TestSchedulerIntervalFloor(t *testing.T) {
	t.Setenv("SITES_DIR", t.TempDir())
	t.Setenv("SYNC_INTERVAL", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scheduler.Interval != 10*time.Minute {
		t.Fatalf("interval = %s, want the 10m floor", cfg.Scheduler.Interval)
	}
}

func TestSiteDefaults(t *testing.T) {
	site := &SiteConfig{
		ID:       "x",
		LoginURL: "https://x.example.com/login",
		OrderURL: "https://x.example.com/orders",
		Selectors: SelectorMap{
			ListContainer: ".list",
		},
	}
	if err := site.validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if site.MaxPages != 10 {
		t.Errorf("default max pages = %d, want 10", site.MaxPages)
	}
	if site.OfflineSync.Interval != 10*time.Minute {
		t.Errorf("default offline interval = %s", site.OfflineSync.Interval)
	}
}
