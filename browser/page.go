package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

const (
	DefaultElementWait = 20 * time.Second
	DefaultContentWait = 10 * time.Second
)

// Sleep is the cancellable delay every primitive uses. Cancellation must be
// observable at each suspension point.
func Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func humanDelay(ctx context.Context, minMs, maxMs int) error {
	return Sleep(ctx, time.Duration(minMs+rand.Intn(maxMs-minMs))*time.Millisecond)
}

var popupSelectors = []string{
	"button:has-text('Accept')",
	"button:has-text('Accept All')",
	"button:has-text('I Accept')",
	"button:has-text('Agree')",
	"button:has-text('OK')",
	"button:has-text('Continue')",
	"button:has-text('Got it')",
	"button[id*='accept']",
	"button[class*='accept']",
	"button[class*='consent']",
	"#didomi-notice-agree-button",
	"#onetrust-accept-btn-handler",
	".cookie-banner button",
	".modal button.close",
	"[class*='cookie'] button",
}

var popupHideSelectors = []string{
	".modal-backdrop",
	".overlay",
	"[class*='gdpr']",
	"[id*='cookie-banner']",
}

// DismissPopups iterates the popup selector set and clicks whatever accept
// control is visible; stubborn overlays get display:none as a last resort.
// Best effort; returns the count dismissed.
func DismissPopups(ctx context.Context, page playwright.Page, extra []string) int {
	dismissed := 0
	for _, selector := range append(append([]string{}, extra...), popupSelectors...) {
		if ctx.Err() != nil {
			return dismissed
		}
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			if err := btn.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}); err == nil {
				dismissed++
				humanDelay(ctx, 300, 700)
			}
		}
	}
	for _, selector := range popupHideSelectors {
		if ctx.Err() != nil {
			return dismissed
		}
		el := page.Locator(selector).First()
		if visible, _ := el.IsVisible(); visible {
			if _, err := el.Evaluate(`el => el.style.display = 'none'`, nil); err == nil {
				dismissed++
			}
		}
	}
	return dismissed
}

// WaitVisible polls for the selector with the per-op timeout, checking for
// cancellation between polls.
func WaitVisible(ctx context.Context, page playwright.Page, selector string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if visible, _ := page.Locator(selector).First().IsVisible(); visible {
			return nil
		}
		if err := Sleep(ctx, 250*time.Millisecond); err != nil {
			return err
		}
	}
	return fmt.Errorf("element %s not visible after %s", selector, timeout)
}

// Click moves the mouse near the control first so the cursor doesn't appear
// out of nowhere, then clicks.
func Click(ctx context.Context, page playwright.Page, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := page.Locator(selector).First()
	if box, err := loc.BoundingBox(); err == nil && box != nil {
		page.Mouse().Move(box.X+box.Width/2+float64(rand.Intn(9)-4), box.Y+box.Height/2+float64(rand.Intn(5)-2))
		humanDelay(ctx, 60, 180)
	}
	return loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5000)})
}

// HumanType clicks the field and types with 40-110ms between keystrokes and
// an ~8% chance of a longer micro-pause.
func HumanType(ctx context.Context, page playwright.Page, selector, text string) error {
	loc := page.Locator(selector).First()
	if err := loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5000)}); err != nil {
		return err
	}
	if err := loc.Clear(); err != nil {
		loc.Fill("")
	}
	for _, ch := range text {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := page.Keyboard().Type(string(ch)); err != nil {
			return err
		}
		if rand.Float64() < 0.08 {
			humanDelay(ctx, 150, 350)
		} else {
			humanDelay(ctx, 40, 110)
		}
	}
	return nil
}

type selectOption struct {
	value string
	text  string
}

// RelaxedSelect picks the first option matching a candidate label, trying
// exact case-insensitive, then substring, then prefix. When nothing matches
// and the caller opts in, index 1 is selected to skip the placeholder. The
// change event is always dispatched so platform-side validators fire.
func RelaxedSelect(ctx context.Context, page playwright.Page, selector string, candidates []string, placeholderFallback bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sel := page.Locator(selector).First()
	options, err := readOptions(sel)
	if err != nil {
		return fmt.Errorf("read options of %s: %w", selector, err)
	}
	if len(options) == 0 {
		return fmt.Errorf("select %s has no options", selector)
	}

	match := matchOption(options, candidates)
	if match == "" {
		if !placeholderFallback || len(options) < 2 {
			return fmt.Errorf("no option in %s matches %v", selector, candidates)
		}
		match = options[1].value
	}

	if _, err := sel.SelectOption(playwright.SelectOptionValues{Values: &[]string{match}}); err != nil {
		return fmt.Errorf("select %s=%s: %w", selector, match, err)
	}
	sel.DispatchEvent("change", nil)
	return nil
}

func readOptions(sel playwright.Locator) ([]selectOption, error) {
	raw, err := sel.Evaluate(`el => Array.from(el.options).map(o => ({value: o.value, text: o.text}))`, nil)
	if err != nil {
		return nil, err
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected options shape")
	}
	var options []selectOption
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		opt := selectOption{}
		if v, ok := m["value"].(string); ok {
			opt.value = v
		}
		if t, ok := m["text"].(string); ok {
			opt.text = strings.TrimSpace(t)
		}
		options = append(options, opt)
	}
	return options, nil
}

// matchOption applies the relaxed ladder over the whole candidate list per
// tier, so an exact match on a later candidate beats a substring match on an
// earlier one.
func matchOption(options []selectOption, candidates []string) string {
	for _, c := range candidates {
		lc := strings.ToLower(strings.TrimSpace(c))
		for _, o := range options {
			if strings.ToLower(o.text) == lc {
				return o.value
			}
		}
	}
	for _, c := range candidates {
		lc := strings.ToLower(strings.TrimSpace(c))
		if lc == "" {
			continue
		}
		for _, o := range options {
			if strings.Contains(strings.ToLower(o.text), lc) {
				return o.value
			}
		}
	}
	for _, c := range candidates {
		lc := strings.ToLower(strings.TrimSpace(c))
		if lc == "" {
			continue
		}
		for _, o := range options {
			if strings.HasPrefix(strings.ToLower(o.text), lc) {
				return o.value
			}
		}
	}
	return ""
}

// AcceptAutocomplete types into the field, waits for suggestions, and picks
// the best visible one. Prefers a suggestion containing the first two words
// of the desired text; falls back to ArrowDown+Enter.
func AcceptAutocomplete(ctx context.Context, page playwright.Page, selector, desired string) error {
	if err := HumanType(ctx, page, selector, desired); err != nil {
		return err
	}
	if err := humanDelay(ctx, 800, 1500); err != nil {
		return err
	}

	wantWords := strings.Fields(strings.ToLower(desired))
	if len(wantWords) > 2 {
		wantWords = wantWords[:2]
	}
	want := strings.Join(wantWords, " ")

	suggestionSelectors := []string{
		".ui-autocomplete li",
		".autocomplete-suggestion",
		".tt-suggestion",
		"[role='listbox'] [role='option']",
		".dropdown-menu li a",
	}
	for _, ss := range suggestionSelectors {
		items, err := page.Locator(ss).All()
		if err != nil || len(items) == 0 {
			continue
		}
		var first playwright.Locator
		for _, item := range items {
			visible, _ := item.IsVisible()
			if !visible {
				continue
			}
			if first == nil {
				first = item
			}
			if want != "" {
				if text, err := item.TextContent(); err == nil &&
					strings.Contains(strings.ToLower(text), want) {
					return item.Click()
				}
			}
		}
		if first != nil {
			return first.Click()
		}
	}

	if err := page.Keyboard().Press("ArrowDown"); err != nil {
		return err
	}
	humanDelay(ctx, 150, 350)
	return page.Keyboard().Press("Enter")
}

// SetValueDirect assigns the value at the DOM level and fires the
// input/change/blur sequence, the last rung of the fill fallback ladder.
func SetValueDirect(ctx context.Context, page playwright.Page, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := page.Locator(selector).First().Evaluate(`(el, value) => {
		el.value = value;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		el.dispatchEvent(new Event('blur', { bubbles: true }));
	}`, value)
	return err
}

// Screenshot captures a base64 PNG. Capture errors never propagate; the
// caller degrades the step event to note-only.
func Screenshot(page playwright.Page, label string) string {
	data, err := page.Screenshot(playwright.PageScreenshotOptions{Type: playwright.ScreenshotTypePng})
	if err != nil {
		log.Printf("screenshot %s failed: %v", label, err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}
