// Package verify confirms a submission by independently scanning the
// seller's inventory pages. A success banner is never trusted on its own;
// only a matching inventory row makes a listing Verified.
package verify

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"

	"phone_lister/browser"
	"phone_lister/models"
)

const maxRowsScanned = 60

// Verify walks the descriptor's inventory URLs in order and reports whether
// any recent row matches the submitted listing. The first URL gets one soft
// refresh before giving up on it.
func Verify(ctx context.Context, s *browser.Session, desc *models.PlatformDescriptor, listing *models.ListingRecord) (bool, error) {
	page := s.Page()
	for i, invURL := range desc.InventoryURLs {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		found, err := scanURL(ctx, page, invURL, listing)
		if err != nil {
			log.Printf("verify %s: %s: %v", desc.ID, invURL, err)
			continue
		}
		if found {
			return true, nil
		}

		if i == 0 {
			if err := browser.Sleep(ctx, 2*time.Second); err != nil {
				return false, err
			}
			page.Reload(playwright.PageReloadOptions{Timeout: playwright.Float(30000)})
			if found, err := scanPage(ctx, page, listing); err == nil && found {
				return true, nil
			}
		}
	}
	return false, nil
}

func scanURL(ctx context.Context, page playwright.Page, invURL string, listing *models.ListingRecord) (bool, error) {
	if _, err := page.Goto(invURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(45000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return false, fmt.Errorf("load inventory page: %w", err)
	}
	if err := browser.Sleep(ctx, 2*time.Second); err != nil {
		return false, err
	}
	browser.DismissPopups(ctx, page, nil)
	return scanPage(ctx, page, listing)
}

func scanPage(ctx context.Context, page playwright.Page, listing *models.ListingRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	content, err := page.Content()
	if err != nil {
		return false, fmt.Errorf("read content: %w", err)
	}
	return ScanHTML(content, listing)
}

// ScanHTML finds the listing in rendered inventory markup. Split out from
// the browser so fixtures can exercise it directly.
func ScanHTML(html string, listing *models.ListingRecord) (bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, fmt.Errorf("parse inventory html: %w", err)
	}

	rows := collectRows(doc)
	if len(rows) > maxRowsScanned {
		rows = rows[:maxRowsScanned]
	}
	for _, row := range rows {
		if MatchRow(row, listing) {
			return true, nil
		}
	}
	return false, nil
}

// collectRows narrows to data tables whose id or class mentions grid, offer
// or table, falling back to any table when the platform names nothing.
func collectRows(doc *goquery.Document) []string {
	var rows []string
	seen := make(map[string]bool)

	add := func(sel *goquery.Selection) {
		sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			text := strings.Join(strings.Fields(tr.Text()), " ")
			if text == "" || seen[text] {
				return
			}
			seen[text] = true
			rows = append(rows, text)
		})
	}

	doc.Find("table,div").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("id")
		class, _ := sel.Attr("class")
		marker := strings.ToLower(id + " " + class)
		if strings.Contains(marker, "grid") || strings.Contains(marker, "offer") || strings.Contains(marker, "table") {
			add(sel)
		}
	})
	if len(rows) == 0 {
		doc.Find("table").Each(func(_ int, sel *goquery.Selection) {
			add(sel)
		})
	}
	return rows
}

// MatchRow is the verification predicate: brand must appear, the normalized
// integer price must appear, and at least one of model, product name, or a
// standalone quantity token must appear.
func MatchRow(rowText string, listing *models.ListingRecord) bool {
	lower := strings.ToLower(rowText)

	if listing.Brand == "" || !strings.Contains(lower, strings.ToLower(listing.Brand)) {
		return false
	}

	price := strconv.FormatInt(int64(listing.Price), 10)
	if !strings.Contains(lower, price) {
		return false
	}

	if listing.Model != "" && strings.Contains(lower, strings.ToLower(listing.Model)) {
		return true
	}
	if name := strings.ToLower(listing.DisplayName()); name != "" && strings.Contains(lower, name) {
		return true
	}

	qty := strconv.Itoa(listing.Quantity)
	padded := " " + lower + " "
	if strings.Contains(padded, " "+qty+" ") || strings.Contains(lower, "qty "+qty) {
		return true
	}
	return false
}
