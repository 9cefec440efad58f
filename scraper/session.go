package scraper

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"rentsync/config"
)

const heartbeatInterval = 60 * time.Second

// SessionManager owns the single persistent browser context and the
// one reusable page per process. Sites share the session; runs are
// sequential so there is never more than one consumer.
type SessionManager struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	page        playwright.Page
	initialized bool

	heartbeatStop chan struct{}
}

func NewSessionManager() *SessionManager {
	return &SessionManager{}
}

func (m *SessionManager) ensureBrowser() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	var err error
	m.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	cwd, _ := os.Getwd()
	userDataDir := filepath.Join(cwd, "browser_data")
	m.context, err = m.pw.Chromium.LaunchPersistentContext(userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(false),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	m.initialized = true
	return nil
}

// Page returns the shared page, creating it lazily.
func (m *SessionManager) Page() (playwright.Page, error) {
	if err := m.ensureBrowser(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page != nil && !m.page.IsClosed() {
		return m.page, nil
	}

	page, err := m.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	m.page = page
	return page, nil
}

// EnsureLoggedIn probes the existing session first; only when the
// logged-in marker does not appear does it navigate to the login page
// and submit credentials through the configured field selectors.
func (m *SessionManager) EnsureLoggedIn(site *config.SiteConfig) error {
	page, err := m.Page()
	if err != nil {
		return err
	}

	if _, err := page.Goto(site.OrderURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		log.Printf("Navigation error (continuing): %v", err)
	}
	m.humanDelay(1000, 2000)

	if m.isLoggedIn(page, site) {
		log.Printf("Session for %s still authenticated", site.ID)
		return nil
	}

	log.Printf("Logging in to %s", site.ID)
	if _, err := page.Goto(site.LoginURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	m.humanDelay(1500, 3000)

	if err := page.Locator(site.Selectors.UsernameField).First().Fill(site.Username); err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	m.humanDelay(400, 900)
	if err := page.Locator(site.Selectors.PasswordField).First().Fill(site.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	m.humanDelay(400, 900)
	if err := page.Locator(site.Selectors.LoginButton).First().Click(); err != nil {
		return fmt.Errorf("click login: %w", err)
	}

	// The portal redirects after login; give it a bounded wait.
	probe := page.Locator(site.Selectors.LoggedInProbe).First()
	if err := probe.WaitFor(playwright.LocatorWaitForOptions{Timeout: playwright.Float(15000)}); err != nil {
		return fmt.Errorf("login did not complete: %w", err)
	}

	// The post-login landing page varies by account and is rarely the
	// order list.
	if needsOrderPageNav(page.URL(), site.OrderURL) {
		if _, err := page.Goto(site.OrderURL, playwright.PageGotoOptions{
			Timeout:   playwright.Float(60000),
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		}); err != nil {
			return fmt.Errorf("open order list after login: %w", err)
		}
		m.humanDelay(1000, 2000)
	}

	log.Printf("Logged in to %s", site.ID)
	return nil
}

// needsOrderPageNav reports whether the current URL is somewhere other
// than the order list (query strings and sub-paths of it count as
// already there).
func needsOrderPageNav(currentURL, orderURL string) bool {
	return !strings.HasPrefix(currentURL, orderURL)
}

// isLoggedIn is a short bounded probe for the logged-in marker.
func (m *SessionManager) isLoggedIn(page playwright.Page, site *config.SiteConfig) bool {
	if site.Selectors.LoggedInProbe == "" {
		return false
	}
	probe := page.Locator(site.Selectors.LoggedInProbe).First()
	err := probe.WaitFor(playwright.LocatorWaitForOptions{Timeout: playwright.Float(5000)})
	return err == nil
}

// StartHeartbeat keeps the portal session alive between runs: every
// minute while the engine is idle it issues an in-page no-op fetch and
// a synthetic mouse move. onTick reports liveness to the tracker.
func (m *SessionManager) StartHeartbeat(idle func() bool, onTick func(active bool)) {
	m.mu.Lock()
	if m.heartbeatStop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.heartbeatStop = stop
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				onTick(false)
				return
			case <-ticker.C:
				if !idle() {
					continue
				}
				m.beat()
				onTick(true)
			}
		}
	}()
}

func (m *SessionManager) beat() {
	m.mu.Lock()
	page := m.page
	m.mu.Unlock()

	if page == nil || page.IsClosed() {
		return
	}

	// No-op fetch against the current origin plus a small mouse move;
	// enough activity for the portal's idle timer without side effects.
	page.Evaluate(`() => fetch(window.location.href, { method: 'HEAD' }).catch(() => {})`)
	page.Mouse().Move(float64(200+rand.Intn(400)), float64(150+rand.Intn(300)))
}

func (m *SessionManager) StopHeartbeat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
}

func (m *SessionManager) simulateHumanBehavior(page playwright.Page) {
	page.Mouse().Move(float64(300+rand.Intn(400)), float64(200+rand.Intn(300)))
	page.WaitForTimeout(float64(200 + rand.Intn(300)))
	page.Mouse().Move(float64(400+rand.Intn(300)), float64(300+rand.Intn(200)))
	page.WaitForTimeout(float64(200 + rand.Intn(300)))

	scrollAmount := 100 + rand.Intn(300)
	page.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, scrollAmount))
}

func (m *SessionManager) humanDelay(minMs, maxMs int) {
	delay := minMs + rand.Intn(maxMs-minMs)
	time.Sleep(time.Duration(delay) * time.Millisecond)
}

func (m *SessionManager) Close() {
	m.StopHeartbeat()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page != nil {
		m.page.Close()
		m.page = nil
	}
	if m.context != nil {
		m.context.Close()
	}
	if m.pw != nil {
		m.pw.Stop()
	}
	m.initialized = false
}
