package poster

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"phone_lister/browser"
	"phone_lister/mapper"
	"phone_lister/models"
)

// SectionFor picks the listing-form branch from the product type and
// condition: used and refurbished phones post through a separate section on
// most boards.
func SectionFor(listing *models.ListingRecord) string {
	switch listing.ProductType {
	case models.ProductAccessory, models.ProductGadget, models.ProductPack:
		return "accessories"
	case models.ProductConsumer:
		return "consumer"
	}
	switch listing.Condition {
	case models.ConditionUsed, models.ConditionRefurbished, models.Condition14Day:
		return "used"
	}
	return "phones"
}

var ctaTexts = []string{"add offer", "post offers", "new offer", "sell"}

// navigate tries the section's form URLs in order until the form is
// detected, then falls back to scanning visible CTAs.
func (m *Machine) navigate(ctx context.Context, listing *models.ListingRecord, ops []mapper.Op) error {
	page := m.session.Page()
	section := SectionFor(listing)

	urls := m.desc.FormURLs[section]
	if len(urls) == 0 {
		urls = m.desc.FormURLs["phones"]
	}

	for _, formURL := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := page.Goto(formURL, playwright.PageGotoOptions{
			Timeout:   playwright.Float(45000),
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		}); err != nil {
			m.log.Printf("form url %s: %v", formURL, err)
			continue
		}
		browser.Sleep(ctx, 2*time.Second)
		browser.DismissPopups(ctx, page, nil)

		if m.formDetected(ctx, ops) {
			m.emit("form_found", formURL)
			return nil
		}
	}

	// None of the candidates revealed the form; look for a call-to-action.
	for _, cta := range ctaTexts {
		sel := fmt.Sprintf("a:has-text('%s'), button:has-text('%s')", cta, cta)
		link := page.Locator(sel).First()
		if visible, _ := link.IsVisible(); visible {
			if err := link.Click(); err == nil {
				browser.Sleep(ctx, 2*time.Second)
				if m.formDetected(ctx, ops) {
					m.emit("form_found", "via cta: "+cta)
					return nil
				}
			}
		}
	}

	return fmt.Errorf("%w: no candidate url revealed the %s form", models.ErrNavigationFailed, section)
}

// formDetected checks that the planned fields actually exist here: the
// product-name style text input, or for accessory sections a brand select
// plus a type select.
func (m *Machine) formDetected(ctx context.Context, ops []mapper.Op) bool {
	page := m.session.Page()

	textSeen := 0
	selectSeen := 0
	checked := 0
	for _, op := range ops {
		if checked >= 4 {
			break
		}
		locator := op.Field.Locator()
		if locator == "" {
			continue
		}
		checked++
		visible, _ := page.Locator(locator).First().IsVisible()
		if !visible {
			continue
		}
		switch op.Kind {
		case mapper.OpSetText, mapper.OpAutocomplete:
			textSeen++
		case mapper.OpSelect:
			selectSeen++
		}
	}
	if textSeen > 0 {
		return true
	}
	return selectSeen >= 2
}
