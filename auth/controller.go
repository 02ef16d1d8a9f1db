// Package auth drives login and second-factor resolution for one platform
// session. The mail retriever and the manual code store are injected so
// tests can substitute in-memory fakes.
package auth

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"phone_lister/browser"
	"phone_lister/codes"
	"phone_lister/config"
	"phone_lister/mail"
	"phone_lister/models"
)

// Emit receives step-event labels as the controller progresses; the posting
// machine forwards them to the job record.
type Emit func(label, note string)

type Controller struct {
	Mail        mail.Retriever // nil when mail retrieval is disabled
	Codes       *codes.Store
	Recipient   string
	CookieDir   string
	TFAWait     time.Duration
	TFAAttempts int
	RetryDelay  time.Duration // between mailbox polls, 15s when zero
}

var twoFactorTextHints = []string{
	"verification code",
	"2fa",
	"two-factor",
	"authentication code",
	"verify your identity",
	"enter code",
	"security code",
	"access code required",
}

var commonUserSelectors = []string{
	"input[name='username']",
	"input[name='email']",
	"input[type='email']",
	"input[name='user']",
	"input[id*='user']",
	"input[id*='email']",
}

var commonPassSelectors = []string{
	"input[type='password']",
	"input[name='password']",
	"input[id*='pass']",
}

// Login establishes an authenticated session, reusing persisted cookies when
// the descriptor allows it and falling through to a fresh login when the
// reloaded session is invalid.
func (c *Controller) Login(ctx context.Context, s *browser.Session, desc *models.PlatformDescriptor, creds config.Credentials, jobID string, emit Emit) error {
	page := s.Page()

	if desc.ReuseCookies() {
		if loaded, err := s.LoadCookies(c.CookieDir); err == nil && loaded {
			if c.probeSession(ctx, page, desc) {
				emit("login_success", "session cookies reused")
				return nil
			}
			browser.ClearCookieFile(c.CookieDir, desc.ID)
			log.Printf("auth %s: persisted session invalid, fresh login", desc.ID)
		}
	}

	if _, err := page.Goto(desc.LoginURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("%w: load login page: %v", models.ErrAuthFailed, err)
	}
	browser.DismissPopups(ctx, page, nil)

	userSel, err := firstVisible(ctx, page, append(desc.Login.UserSelectors, commonUserSelectors...))
	if err != nil {
		return fmt.Errorf("%w: username field not found", models.ErrAuthFailed)
	}
	passSel, err := firstVisible(ctx, page, append(desc.Login.PassSelectors, commonPassSelectors...))
	if err != nil {
		return fmt.Errorf("%w: password field not found", models.ErrAuthFailed)
	}

	if err := browser.HumanType(ctx, page, userSel, creds.Username); err != nil {
		return fmt.Errorf("%w: enter username: %v", models.ErrAuthFailed, err)
	}
	if err := browser.HumanType(ctx, page, passSel, creds.Password); err != nil {
		return fmt.Errorf("%w: enter password: %v", models.ErrAuthFailed, err)
	}

	since := time.Now()
	if err := c.submitLogin(ctx, page, desc, passSel); err != nil {
		return err
	}
	emit("login_submitted", "")
	browser.Sleep(ctx, 3*time.Second)
	browser.DismissPopups(ctx, page, nil)

	if c.detectTwoFactor(page, desc) {
		if err := c.resolveTwoFactor(ctx, s, desc, jobID, since, emit); err != nil {
			return err
		}
	}

	if !c.verifySession(ctx, page, desc) {
		return fmt.Errorf("%w: no authenticated landmark after login", models.ErrAuthFailed)
	}
	emit("login_success", "")

	if desc.ReuseCookies() {
		if err := s.SaveCookies(c.CookieDir); err != nil {
			log.Printf("auth %s: cookie save failed: %v", desc.ID, err)
		}
	}
	return nil
}

func (c *Controller) submitLogin(ctx context.Context, page playwright.Page, desc *models.PlatformDescriptor, passSel string) error {
	selectors := append(append([]string{}, desc.Login.SubmitSelectors...),
		"button[type='submit']",
		"input[type='submit']",
		"button:has-text('Log in')",
		"button:has-text('Sign in')",
		"button:has-text('Login')",
	)
	for _, sel := range selectors {
		btn := page.Locator(sel).First()
		if visible, _ := btn.IsVisible(); visible {
			if err := browser.Click(ctx, page, sel); err == nil {
				return nil
			}
		}
	}
	// No button found; Enter in the password field submits most forms.
	if err := page.Locator(passSel).First().Press("Enter"); err != nil {
		return fmt.Errorf("%w: could not submit login form", models.ErrAuthFailed)
	}
	return nil
}

// detectTwoFactor checks the landed URL against descriptor hints and scans
// page text for the prompt phrases. A descriptor that declares no 2FA skips
// straight to session verification.
func (c *Controller) detectTwoFactor(page playwright.Page, desc *models.PlatformDescriptor) bool {
	if desc.TwoFactor.Mode == "" || desc.TwoFactor.Mode == "none" {
		return false
	}

	currentURL := strings.ToLower(page.URL())
	for _, hint := range desc.TwoFactor.URLHints {
		if strings.Contains(currentURL, strings.ToLower(hint)) {
			return true
		}
	}

	content, err := page.Content()
	if err != nil {
		return false
	}
	lower := strings.ToLower(content)
	for _, hint := range twoFactorTextHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func (c *Controller) resolveTwoFactor(ctx context.Context, s *browser.Session, desc *models.PlatformDescriptor, jobID string, since time.Time, emit Emit) error {
	code, err := c.obtainCode(ctx, desc, jobID, since, emit)
	if err != nil {
		return err
	}

	page := s.Page()
	codeSel, err := firstVisible(ctx, page, append(desc.Login.CodeSelectors,
		"input[name*='code']",
		"input[id*='code']",
		"input[type='text'][maxlength='6']",
		"input[type='text'][maxlength='4']",
	))
	if err != nil {
		return fmt.Errorf("%w: code input not found", models.ErrTwoFactorFailed)
	}

	if err := browser.HumanType(ctx, page, codeSel, code); err != nil {
		return fmt.Errorf("%w: enter code: %v", models.ErrTwoFactorFailed, err)
	}
	if err := c.submitLogin(ctx, page, desc, codeSel); err != nil {
		return fmt.Errorf("%w: submit code", models.ErrTwoFactorFailed)
	}
	emit("2fa_submitted", "")
	browser.Sleep(ctx, 3*time.Second)

	if !c.verifySession(ctx, page, desc) {
		return fmt.Errorf("%w: session not established after code entry", models.ErrTwoFactorFailed)
	}
	emit("2fa_success", "")
	return nil
}

// obtainCode applies the per-platform acquisition policy: email, manual, or
// email first with manual fallback. Email retries re-query from the same
// since baseline so a stale code never wins.
func (c *Controller) obtainCode(ctx context.Context, desc *models.PlatformDescriptor, jobID string, since time.Time, emit Emit) (string, error) {
	mode := desc.TwoFactor.Mode

	if mode == "email" || mode == "either" {
		if c.Mail != nil && c.Recipient != "" {
			emit("2fa_wait_email", "")
			if code, ok := c.fetchEmailCode(ctx, desc, since); ok {
				return code, nil
			}
			log.Printf("auth %s: no email code after %d attempts", desc.ID, c.TFAAttempts)
		}
		if mode == "email" {
			return "", fmt.Errorf("%w: email code not received", models.ErrTwoFactorFailed)
		}
	}

	if mode == "manual" || mode == "either" {
		emit("2fa_wait_manual", "")
		c.Codes.Prepare(jobID, desc.ID)
		if code, ok := c.Codes.Wait(jobID, desc.ID, c.TFAWait); ok {
			return code, nil
		}
		return "", fmt.Errorf("%w: manual code not submitted in time", models.ErrTwoFactorFailed)
	}

	return "", fmt.Errorf("%w: no code acquisition mode", models.ErrTwoFactorFailed)
}

func (c *Controller) fetchEmailCode(ctx context.Context, desc *models.PlatformDescriptor, since time.Time) (string, bool) {
	attempts := c.TFAAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryDelay := c.RetryDelay
	if retryDelay == 0 {
		retryDelay = 15 * time.Second
	}
	// First wait gives the mail time to arrive.
	if err := browser.Sleep(ctx, c.TFAWait); err != nil {
		return "", false
	}
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := browser.Sleep(ctx, retryDelay); err != nil {
				return "", false
			}
		}
		if code, ok := c.Mail.Fetch(ctx, desc.TwoFactor, c.Recipient, since); ok {
			return code, true
		}
	}
	return "", false
}

// verifySession demands both a non-login URL and a descriptor-specific
// authenticated landmark; generic words that might appear on public pages
// are never enough. Indicators are tried as selectors first, then as page
// text.
func (c *Controller) verifySession(ctx context.Context, page playwright.Page, desc *models.PlatformDescriptor) bool {
	currentURL := strings.ToLower(page.URL())
	for _, frag := range []string{"login", "signin", "verify", "2fa", "authenticate"} {
		if strings.Contains(currentURL, frag) {
			return false
		}
	}

	var pageText string
	for _, indicator := range desc.Login.SuccessIndicators {
		if visible, err := page.Locator(indicator).First().IsVisible(); err == nil && visible {
			return true
		}
		if pageText == "" {
			content, err := page.Content()
			if err != nil {
				continue
			}
			pageText = strings.ToLower(content)
		}
		if strings.Contains(pageText, strings.ToLower(indicator)) {
			return true
		}
	}
	return false
}

// probeSession loads the login URL with restored cookies; platforms redirect
// authenticated visitors away from it.
func (c *Controller) probeSession(ctx context.Context, page playwright.Page, desc *models.PlatformDescriptor) bool {
	if _, err := page.Goto(desc.LoginURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(30000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return false
	}
	browser.Sleep(ctx, 2*time.Second)
	return c.verifySession(ctx, page, desc)
}

func firstVisible(ctx context.Context, page playwright.Page, selectors []string) (string, error) {
	deadline := time.Now().Add(browser.DefaultContentWait)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		for _, sel := range selectors {
			if sel == "" {
				continue
			}
			if visible, _ := page.Locator(sel).First().IsVisible(); visible {
				return sel, nil
			}
		}
		if err := browser.Sleep(ctx, 300*time.Millisecond); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("none of %d selectors became visible", len(selectors))
}
