package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"phone_lister/models"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeCSV(t, "Platform,Brand,Model,Memory,Condition,Sim Lock,Price,Currency,Qty,Min Order,Payments\n"+
		"acme,Apple,iPhone 15 Pro,256GB,New,Unlocked,749.99,usd,50,5,\"Wire Transfer; PayPal\"\n"+
		",,,,,,,,,,\n"+
		"beta,Samsung,Galaxy S24,512GB,Used,Locked,520,EUR,30,1,Escrow\n")

	rows, err := ReadBatch(path, "")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (blank skipped), got %d", len(rows))
	}

	first := rows[0]
	if first.Platform != "acme" {
		t.Fatalf("expected platform acme, got %s", first.Platform)
	}
	l := first.Listing
	if l.Brand != "Apple" || l.Model != "iPhone 15 Pro" {
		t.Fatalf("unexpected listing %+v", l)
	}
	if l.Memory != "256 GB" {
		t.Fatalf("memory not normalized: %q", l.Memory)
	}
	if l.Price != 749.99 || l.Currency != "USD" {
		t.Fatalf("price/currency wrong: %v %s", l.Price, l.Currency)
	}
	if l.Quantity != 50 || l.MinOrder != 5 {
		t.Fatalf("qty/moq wrong: %d %d", l.Quantity, l.MinOrder)
	}
	if len(l.Payments) != 2 || l.Payments[0] != "Wire Transfer" || l.Payments[1] != "PayPal" {
		t.Fatalf("payments wrong: %v", l.Payments)
	}
	if l.ProductType != models.ProductPhone {
		t.Fatalf("expected default product type phone, got %s", l.ProductType)
	}
	if err := l.Validate(); err != nil {
		t.Fatalf("ingested listing invalid: %v", err)
	}
}

func TestReadCSVDefaultPlatform(t *testing.T) {
	path := writeCSV(t, "Brand,Model,Price,Currency,Qty,Payments\n"+
		"Apple,iPhone 14,400,USD,10,Wire Transfer\n")

	rows, err := ReadBatch(path, "gsmhub")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if rows[0].Platform != "gsmhub" {
		t.Fatalf("expected gsmhub fallback, got %s", rows[0].Platform)
	}
	if rows[0].Listing.MinOrder != 1 {
		t.Fatalf("expected MOQ default 1, got %d", rows[0].Listing.MinOrder)
	}
}

func TestReadCSVNoPlatformAnywhere(t *testing.T) {
	path := writeCSV(t, "Brand,Model,Price,Currency,Qty,Payments\n"+
		"Apple,iPhone 14,400,USD,10,Wire Transfer\n")
	if _, err := ReadBatch(path, ""); err == nil {
		t.Fatal("expected error when no platform can be resolved")
	}
}

func TestReadCSVBadNumber(t *testing.T) {
	path := writeCSV(t, "Platform,Brand,Price\nacme,Apple,cheap\n")
	if _, err := ReadBatch(path, ""); err == nil {
		t.Fatal("expected error for non-numeric price")
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"platform", "brand", "model", "storage", "price", "currency", "quantity", "payments"},
		{"beta", "Xiaomi", "Redmi Note 13", "128GB", 145, "USD", 300, "Wire Transfer"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("build sheet: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "batch.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}

	out, err := ReadBatch(path, "")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	l := out[0].Listing
	if out[0].Platform != "beta" || l.Brand != "Xiaomi" || l.Memory != "128 GB" || l.Price != 145 || l.Quantity != 300 {
		t.Fatalf("unexpected row %+v", out[0])
	}
}

func TestReadBatchUnsupportedExtension(t *testing.T) {
	if _, err := ReadBatch("batch.pdf", "acme"); err == nil {
		t.Fatal("expected unsupported-format error")
	}
}
