package poster

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"phone_lister/browser"
	"phone_lister/classify"
	"phone_lister/models"
)

var submitTexts = []string{"save", "submit", "post", "publish"}

// submit walks the attempt ladder: the descriptor's precise selector, any
// in-form control with a submit-looking label, form.requestSubmit, and
// finally the platform's postback target. Popups are dismissed and the
// control scrolled into view between attempts. A JS alert firing during
// submission is auto-accepted and its text kept for the classifier.
func (m *Machine) submit(ctx context.Context) error {
	page := m.session.Page()

	m.setAlert("")
	// The page outlives individual rows; registering per submit would stack
	// handlers that all fire on one dialog.
	m.dialogOnce.Do(func() {
		page.OnDialog(func(dialog playwright.Dialog) {
			m.setAlert(dialog.Message())
			if err := dialog.Accept(); err != nil {
				m.log.Printf("dialog accept failed: %v", err)
			}
		})
	})

	attempts := []func(context.Context) bool{
		m.submitByDescriptor,
		m.submitByText,
		m.submitByRequestSubmit,
		m.submitByPostback,
	}
	for _, attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt(ctx) {
			m.emitShot("submit_clicked", "")
			browser.Sleep(ctx, 3*time.Second)
			return nil
		}
		browser.DismissPopups(ctx, page, nil)
	}

	return fmt.Errorf("%w: no submit control reachable", models.ErrInteractionFailed)
}

func (m *Machine) submitByDescriptor(ctx context.Context) bool {
	page := m.session.Page()
	for _, sel := range m.desc.SubmitSelectors {
		btn := page.Locator(sel).First()
		if visible, _ := btn.IsVisible(); !visible {
			continue
		}
		btn.ScrollIntoViewIfNeeded()
		if err := browser.Click(ctx, page, sel); err == nil {
			return true
		}
	}
	return false
}

// submitByText restricts the search to descendants of a form so a header
// "Post" link can't hijack the submission.
func (m *Machine) submitByText(ctx context.Context) bool {
	page := m.session.Page()
	for _, text := range submitTexts {
		sel := fmt.Sprintf(
			"form button:has-text('%s'), form input[type='submit'][value*='%s' i], form input[type='button'][value*='%s' i]",
			text, text, text,
		)
		btn := page.Locator(sel).First()
		if visible, _ := btn.IsVisible(); !visible {
			continue
		}
		btn.ScrollIntoViewIfNeeded()
		if err := browser.Click(ctx, page, sel); err == nil {
			return true
		}
	}
	return false
}

func (m *Machine) submitByRequestSubmit(ctx context.Context) bool {
	page := m.session.Page()
	result, err := page.Evaluate(`() => {
		const forms = Array.from(document.forms);
		for (const form of forms) {
			const submitter = form.querySelector("button[type='submit'], input[type='submit'], button");
			if (submitter) {
				form.requestSubmit(submitter);
				return true;
			}
		}
		return false;
	}`)
	if err != nil {
		return false
	}
	ok, _ := result.(bool)
	return ok
}

// submitByPostback fires the legacy __doPostBack target some boards still
// use instead of a real submit button.
func (m *Machine) submitByPostback(ctx context.Context) bool {
	if m.desc.PostbackTarget == "" {
		return false
	}
	page := m.session.Page()
	_, err := page.Evaluate(
		`target => { if (typeof __doPostBack === 'function') { __doPostBack(target, ''); return true; } return false; }`,
		m.desc.PostbackTarget,
	)
	return err == nil
}

// classifySnapshot gathers everything visible after submit: banners, inline
// validation (including HTML5 validity messages), error nodes, the accepted
// alert text, and the page body.
func (m *Machine) classifySnapshot(ctx context.Context) classify.Outcome {
	page := m.session.Page()

	snapshot := classify.Snapshot{
		URL:       page.URL(),
		AlertText: m.takeAlert(),
	}

	snapshot.Banners = collectTexts(page,
		".alert", ".message", ".notice", ".banner", "[class*='alert']",
		"[class*='success']", "[class*='warning']", "[role='alert']")
	snapshot.ErrorNodes = collectTexts(page,
		".error", ".field-error", ".validation-summary-errors",
		"[class*='error']", ".invalid-feedback")
	// Inline has-error markers often carry no text at all; surface the
	// class itself so the classifier still sees the failure.
	for _, t := range collectTexts(page, ".has-error") {
		snapshot.ErrorNodes = append(snapshot.ErrorNodes, "has-error "+t)
	}
	if count, err := page.Locator(".has-error").Count(); err == nil && count > 0 && len(snapshot.ErrorNodes) == 0 {
		snapshot.ErrorNodes = append(snapshot.ErrorNodes, "has-error")
	}

	if raw, err := page.Evaluate(`() =>
		Array.from(document.querySelectorAll('input,select,textarea'))
			.filter(el => el.willValidate && !el.checkValidity())
			.map(el => el.validationMessage)
			.filter(msg => msg)`); err == nil {
		if items, ok := raw.([]interface{}); ok {
			for _, item := range items {
				if s, ok := item.(string); ok {
					snapshot.ValidationMessages = append(snapshot.ValidationMessages, s)
				}
			}
		}
	}

	if text, err := page.Evaluate(`() => document.body ? document.body.innerText : ''`); err == nil {
		if s, ok := text.(string); ok {
			snapshot.PageText = s
		}
	}

	return classify.Classify(snapshot)
}

func collectTexts(page playwright.Page, selectors ...string) []string {
	var texts []string
	for _, sel := range selectors {
		items, err := page.Locator(sel).All()
		if err != nil {
			continue
		}
		for _, item := range items {
			if visible, _ := item.IsVisible(); !visible {
				continue
			}
			if t, err := item.TextContent(); err == nil && t != "" {
				texts = append(texts, t)
			}
		}
	}
	return texts
}
