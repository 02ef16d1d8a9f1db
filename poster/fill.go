package poster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"phone_lister/browser"
	"phone_lister/mapper"
	"phone_lister/models"
)

// Hidden inputs that autocomplete widgets populate with the resolved id.
var hiddenCompanionNames = []string{"modelid", "brandid", "itemid", "hdnmodel", "hdnbrand"}

func (m *Machine) fill(ctx context.Context, ops []mapper.Op) error {
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.execOp(ctx, op); err != nil {
			if op.Field.Required {
				return fmt.Errorf("%w: field %s not fillable: %v", models.ErrInteractionFailed, op.Attr, err)
			}
			m.log.Printf("optional field %s skipped: %v", op.Attr, err)
		}
	}
	return nil
}

func (m *Machine) execOp(ctx context.Context, op mapper.Op) error {
	page := m.session.Page()
	locator := op.Field.Locator()
	if locator == "" && op.Kind != mapper.OpCheckbox && op.Kind != mapper.OpRadio {
		return fmt.Errorf("field %s has no locator", op.Attr)
	}

	switch op.Kind {
	case mapper.OpSelect:
		return browser.RelaxedSelect(ctx, page, locator, op.Candidates, op.Field.SkipPlaceholder)

	case mapper.OpRadio:
		return m.setRadio(ctx, op)

	case mapper.OpCheckbox:
		return m.setCheckboxes(ctx, op)

	case mapper.OpAutocomplete:
		return m.acceptAutocomplete(ctx, op, locator)

	case mapper.OpDate:
		// Date inputs reject keystroke simulation more often than not;
		// direct assignment with events is the reliable path.
		return browser.SetValueDirect(ctx, page, locator, op.Value)

	default:
		return m.setText(ctx, locator, op.Value)
	}
}

// setText runs the three-tier ladder: native typing, action-chain click with
// pause and retry, then direct DOM assignment. Escalates only on exception
// or a read-back mismatch.
func (m *Machine) setText(ctx context.Context, locator, value string) error {
	page := m.session.Page()

	if err := browser.HumanType(ctx, page, locator, value); err == nil {
		if readBack(page, locator) == value {
			return nil
		}
	}

	browser.DismissPopups(ctx, page, nil)
	loc := page.Locator(locator).First()
	loc.ScrollIntoViewIfNeeded()
	browser.Sleep(ctx, 400*time.Millisecond)
	if err := loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(4000)}); err == nil {
		if err := loc.Fill(value); err == nil && readBack(page, locator) == value {
			return nil
		}
	}

	if err := browser.SetValueDirect(ctx, page, locator, value); err != nil {
		return err
	}
	if got := readBack(page, locator); got != value {
		return fmt.Errorf("read-back %q != intended %q", got, value)
	}
	return nil
}

func (m *Machine) setRadio(ctx context.Context, op mapper.Op) error {
	page := m.session.Page()
	group := op.Field.Group
	if group == "" {
		group = op.Field.Name
	}
	for _, candidate := range op.Candidates {
		sel := fmt.Sprintf("input[type='radio'][name='%s'][value='%s']", group, candidate)
		radio := page.Locator(sel).First()
		if count, _ := radio.Count(); count > 0 {
			if err := radio.Check(); err == nil {
				return nil
			}
			if err := browser.Click(ctx, page, sel); err == nil {
				return nil
			}
		}
		// Match by label text when values are opaque ids.
		labelSel := fmt.Sprintf("label:has-text('%s')", candidate)
		label := page.Locator(labelSel).First()
		if visible, _ := label.IsVisible(); visible {
			if err := label.Click(); err == nil {
				return nil
			}
		}
	}
	return fmt.Errorf("no radio in group %s matched %v", group, op.Candidates)
}

// setCheckboxes handles both a single boolean box and a candidate set like
// accepted payment methods.
func (m *Machine) setCheckboxes(ctx context.Context, op mapper.Op) error {
	page := m.session.Page()

	if len(op.Candidates) == 0 {
		locator := op.Field.Locator()
		box := page.Locator(locator).First()
		if op.Checked {
			return box.Check()
		}
		return box.Uncheck()
	}

	matched := 0
	for _, candidate := range op.Candidates {
		sel := fmt.Sprintf("input[type='checkbox'][value='%s']", candidate)
		box := page.Locator(sel).First()
		if count, _ := box.Count(); count > 0 {
			if err := box.Check(); err == nil {
				matched++
				continue
			}
		}
		labelSel := fmt.Sprintf("label:has-text('%s')", candidate)
		label := page.Locator(labelSel).First()
		if visible, _ := label.IsVisible(); visible {
			if err := label.Click(); err == nil {
				matched++
			}
		}
	}
	if matched == 0 {
		return fmt.Errorf("no checkbox matched %v", op.Candidates)
	}
	return nil
}

// acceptAutocomplete accepts a suggestion and then checks the hidden id
// companion actually resolved; an empty companion gets one more
// ArrowDown+Enter before giving up.
func (m *Machine) acceptAutocomplete(ctx context.Context, op mapper.Op, locator string) error {
	page := m.session.Page()
	if err := browser.AcceptAutocomplete(ctx, page, locator, op.Value); err != nil {
		return err
	}
	browser.Sleep(ctx, 500*time.Millisecond)

	if m.companionResolved(op) {
		return nil
	}
	page.Locator(locator).First().Click(playwright.LocatorClickOptions{Timeout: playwright.Float(3000)})
	page.Keyboard().Press("ArrowDown")
	browser.Sleep(ctx, 300*time.Millisecond)
	page.Keyboard().Press("Enter")
	browser.Sleep(ctx, 500*time.Millisecond)

	if !m.companionResolved(op) {
		return fmt.Errorf("autocomplete for %s left hidden id empty", op.Attr)
	}
	return nil
}

func (m *Machine) companionResolved(op mapper.Op) bool {
	page := m.session.Page()

	selectors := []string{}
	if op.Field.HiddenCompanion != "" {
		selectors = append(selectors, fmt.Sprintf("input[name='%s']", op.Field.HiddenCompanion))
	}
	for _, name := range hiddenCompanionNames {
		selectors = append(selectors, fmt.Sprintf("input[type='hidden'][name*='%s']", name))
	}

	found := false
	for _, sel := range selectors {
		hidden := page.Locator(sel).First()
		count, _ := hidden.Count()
		if count == 0 {
			continue
		}
		found = true
		if v, err := hidden.InputValue(); err == nil && strings.TrimSpace(v) != "" {
			return true
		}
	}
	// Form without a hidden companion: accepting the suggestion is enough.
	return !found
}

func readBack(page playwright.Page, locator string) string {
	v, err := page.Locator(locator).First().InputValue()
	if err != nil {
		return ""
	}
	return v
}
