package scraper

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"rentsync/config"
	"rentsync/httputil"
	"rentsync/tracker"
)

type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskWeak
	RiskStrong
)

const (
	riskPollInterval = 1200 * time.Millisecond
	riskWaitTimeout  = 5 * time.Minute
)

var defaultStrongPhrases = []string{
	"请完成验证",
	"安全验证",
	"短信验证",
	"验证码",
	"人机验证",
	"请进行身份验证",
}

var defaultWeakPhrases = []string{
	"风控",
	"访问异常",
	"操作频繁",
	"系统繁忙",
}

var defaultWidgetSelectors = []string{
	"#nc_1_wrapper",
	".nc_iconfont",
	"[class*='geetest']",
	"iframe[src*='captcha']",
	".verify-wrap",
}

// ClassifyRisk is the pure classification over rendered page text.
// A strong phrase or a bounce back to the login page is always strong;
// a weak phrase escalates to strong only when a challenge widget is
// actually visible, otherwise it stays weak.
func ClassifyRisk(content, currentURL, loginURL string, widgetVisible bool, cfg config.RiskConfig) RiskLevel {
	strong := cfg.StrongPhrases
	if len(strong) == 0 {
		strong = defaultStrongPhrases
	}
	weak := cfg.WeakPhrases
	if len(weak) == 0 {
		weak = defaultWeakPhrases
	}

	for _, phrase := range strong {
		if strings.Contains(content, phrase) {
			return RiskStrong
		}
	}
	if loginURL != "" && currentURL != "" && strings.HasPrefix(currentURL, loginURL) {
		return RiskStrong
	}

	for _, phrase := range weak {
		if strings.Contains(content, phrase) {
			if widgetVisible {
				return RiskStrong
			}
			return RiskWeak
		}
	}
	return RiskNone
}

// RiskDetector wraps every page transition: a challenge can appear
// mid-run, not only at login.
type RiskDetector struct {
	site      *config.SiteConfig
	clients   *httputil.Clients
	webhook   config.WebhookConfig
	tracker   *tracker.Tracker
	escalated bool
}

func NewRiskDetector(site *config.SiteConfig, clients *httputil.Clients, webhook config.WebhookConfig, t *tracker.Tracker) *RiskDetector {
	return &RiskDetector{site: site, clients: clients, webhook: webhook, tracker: t}
}

// Check classifies the current page and handles the result.
// Weak: silent randomized 15-30s cooldown, never escalates.
// Strong: awaiting_user, one-shot webhook, poll until the challenge
// clears or the bounded wait expires (which fails the run).
func (d *RiskDetector) Check(page playwright.Page) error {
	level := d.classifyPage(page)

	switch level {
	case RiskNone:
		return nil
	case RiskWeak:
		cooldown := time.Duration(15+rand.Intn(16)) * time.Second
		log.Printf("Weak risk signal on %s, cooling down %s", d.site.ID, cooldown)
		d.tracker.Log(fmt.Sprintf("weak risk signal, cooldown %s", cooldown))
		time.Sleep(cooldown)
		return nil
	}

	return d.awaitHuman(page)
}

func (d *RiskDetector) classifyPage(page playwright.Page) RiskLevel {
	content, err := page.Content()
	if err != nil {
		return RiskNone
	}
	return ClassifyRisk(content, page.URL(), d.site.LoginURL, d.widgetVisible(page), d.site.Risk)
}

func (d *RiskDetector) widgetVisible(page playwright.Page) bool {
	selectors := d.site.Risk.WidgetSelectors
	if len(selectors) == 0 {
		selectors = defaultWidgetSelectors
	}
	for _, sel := range selectors {
		if visible, _ := page.Locator(sel).First().IsVisible(); visible {
			return true
		}
	}
	return false
}

// shouldNotify reports whether this escalation still needs its
// one-shot webhook, and marks it sent. Polling the same unresolved
// challenge never re-fires; a later, distinct challenge does.
func (d *RiskDetector) shouldNotify() bool {
	if d.escalated {
		return false
	}
	d.escalated = true
	return true
}

func (d *RiskDetector) clearEscalation() {
	d.escalated = false
}

func (d *RiskDetector) awaitHuman(page playwright.Page) error {
	d.tracker.AwaitUser(fmt.Sprintf("challenge on %s, waiting for human", d.site.ID))

	if d.shouldNotify() {
		msg := httputil.WebhookMessage{
			Text: fmt.Sprintf("Vendor sync for %s hit a verification challenge and needs a human.", d.site.Name),
			Link: d.webhook.InterventionURL,
		}
		if err := d.clients.SendWebhook(d.webhook.URL, msg); err != nil {
			log.Printf("Webhook escalation failed: %v", err)
		}
	}

	deadline := time.Now().Add(riskWaitTimeout)
	for time.Now().Before(deadline) {
		time.Sleep(riskPollInterval)
		if d.classifyPage(page) != RiskStrong {
			d.tracker.Resume()
			d.clearEscalation()
			log.Printf("Challenge on %s cleared", d.site.ID)
			return nil
		}
	}

	return fmt.Errorf("challenge on %s not resolved within %s", d.site.ID, riskWaitTimeout)
}
