package verify

import (
	"os"
	"path/filepath"
	"testing"

	"phone_lister/models"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return string(data)
}

func fixtureListing() *models.ListingRecord {
	return &models.ListingRecord{
		Brand:    "Apple",
		Model:    "iPhone 15 Pro",
		Memory:   "256 GB",
		Price:    749,
		Currency: "USD",
		Quantity: 50,
		Payments: []string{"Wire Transfer"},
	}
}

func TestScanHTMLFindsListing(t *testing.T) {
	html := loadFixture(t, "inventory_grid.html")
	found, err := ScanHTML(html, fixtureListing())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if !found {
		t.Fatal("expected listing to be found in grid")
	}
}

func TestScanHTMLMissingListing(t *testing.T) {
	html := loadFixture(t, "inventory_grid.html")
	l := fixtureListing()
	l.Model = "Galaxy S24"
	l.Brand = "Samsung"
	found, err := ScanHTML(html, l)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if found {
		t.Fatal("unexpected match for listing not in grid")
	}
}

func TestScanHTMLPlainTableFallback(t *testing.T) {
	html := loadFixture(t, "inventory_plain.html")
	found, err := ScanHTML(html, fixtureListing())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if !found {
		t.Fatal("expected fallback table scan to find listing")
	}
}

func TestMatchRowRequiresBrandAndPrice(t *testing.T) {
	l := fixtureListing()

	if MatchRow("iPhone 15 Pro 749 USD 50 pcs", l) {
		t.Fatal("matched without brand")
	}
	if MatchRow("Apple iPhone 15 Pro USD 50 pcs", l) {
		t.Fatal("matched without price")
	}
	if !MatchRow("Apple iPhone 15 Pro 256 GB 749 USD", l) {
		t.Fatal("brand + price + model should match")
	}
}

func TestMatchRowQuantityToken(t *testing.T) {
	l := fixtureListing()
	l.Model = ""

	if !MatchRow("Apple handset lot 749 USD qty 50", l) {
		t.Fatal("brand + price + qty token should match")
	}
	// 50 buried inside a longer number must not count as the quantity.
	if MatchRow("Apple handset lot 749 USD item 12350x", l) {
		t.Fatal("embedded digits matched as quantity")
	}
}

func TestMatchRowPriceIsIntegerForm(t *testing.T) {
	l := fixtureListing()
	l.Price = 749.99
	if !MatchRow("Apple iPhone 15 Pro 749 USD", l) {
		t.Fatal("integer price form should match a decimal listing price")
	}
}
