// Package browser wraps playwright: one Session per worker, stealth-friendly
// defaults, and the page interaction primitives everything above builds on.
package browser

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/playwright-community/playwright-go"

	"phone_lister/config"
)

// Pre-document script that normalizes the obvious automation tells before
// any platform script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.chrome = window.chrome || { runtime: {} };
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
`

// Session owns one browser, one context and one active page. A Session is
// exclusively owned by a single worker for its lifetime and released on
// every exit path.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	Platform string

	mu     sync.Mutex
	closed bool
}

// Open provisions a controlled browser, either a local binary or a remote
// CDP endpoint, with window 1920x1080, en-US locale and a neutralized
// automation fingerprint.
func Open(cfg config.BrowserConfig, platform string) (*Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	s := &Session{pw: pw, Platform: platform}

	if cfg.RemoteURL != "" {
		s.browser, err = pw.Chromium.ConnectOverCDP(cfg.RemoteURL)
	} else {
		opts := playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(cfg.Headless),
			Args: []string{
				"--disable-blink-features=AutomationControlled",
				"--disable-dev-shm-usage",
				"--no-sandbox",
				"--window-size=1920,1080",
				"--lang=en-US",
			},
		}
		if cfg.BinaryPath != "" {
			opts.ExecutablePath = playwright.String(cfg.BinaryPath)
		}
		s.browser, err = pw.Chromium.Launch(opts)
	}
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	s.context, err = s.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:  playwright.String(cfg.UserAgent),
		Viewport:   &playwright.Size{Width: 1920, Height: 1080},
		Locale:     playwright.String("en-US"),
		TimezoneId: playwright.String(cfg.Timezone),
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("new context: %w", err)
	}

	if err := s.context.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		log.Printf("browser: init script failed: %v", err)
	}

	s.page, err = s.context.NewPage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}

	return s, nil
}

func (s *Session) Page() playwright.Page {
	return s.page
}

// FreshPage replaces the active page, used when a row retry wants a clean
// DOM without paying for a new login.
func (s *Session) FreshPage() error {
	if s.page != nil {
		s.page.Close()
	}
	page, err := s.context.NewPage()
	if err != nil {
		return fmt.Errorf("new page: %w", err)
	}
	s.page = page
	return nil
}

// Close releases the driver. Idempotent; safe on every exit path.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	if s.page != nil {
		s.page.Close()
	}
	if s.context != nil {
		s.context.Close()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	if s.pw != nil {
		s.pw.Stop()
	}
}

// SaveCookies persists the context's cookies for this platform as one JSON
// array, written atomically so a later worker can pick them up mid-write.
func (s *Session) SaveCookies(dir string) error {
	cookies, err := s.context.Cookies()
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := cookiePath(dir, s.Platform)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadCookies restores a previously persisted cookie jar. Returns false when
// no file exists; the caller falls through to a fresh login.
func (s *Session) LoadCookies(dir string) (bool, error) {
	data, err := os.ReadFile(cookiePath(dir, s.Platform))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	var cookies []playwright.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return false, fmt.Errorf("parse cookie file: %w", err)
	}
	if len(cookies) == 0 {
		return false, nil
	}

	optional := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		cc := c
		optional = append(optional, playwright.OptionalCookie{
			Name:     cc.Name,
			Value:    cc.Value,
			Domain:   playwright.String(cc.Domain),
			Path:     playwright.String(cc.Path),
			Expires:  playwright.Float(cc.Expires),
			HttpOnly: playwright.Bool(cc.HttpOnly),
			Secure:   playwright.Bool(cc.Secure),
		})
	}
	if err := s.context.AddCookies(optional); err != nil {
		return false, fmt.Errorf("add cookies: %w", err)
	}
	return true, nil
}

// ClearCookieFile drops a stale jar so the next login starts clean.
func ClearCookieFile(dir, platform string) {
	os.Remove(cookiePath(dir, platform))
}

func cookiePath(dir, platform string) string {
	return filepath.Join(dir, platform+"_cookies.json")
}
