package config

import (
	"os"
	"path/filepath"
	"testing"

	"phone_lister/models"
)

const acmeYAML = `
id: acme
name: Acme Wholesale
login_url: https://trade.acme.example/login
form_urls:
  phones:
    - https://trade.acme.example/offers/new
inventory_urls:
  - https://trade.acme.example/my/offers
two_factor:
  mode: none
fields:
  - attr: brand
    field:
      name: brand
      kind: select
      required: true
      translate:
        "Apple": ["Apple", "APPLE"]
submit_selectors:
  - "button[type='submit']"
rate_limit:
  per_hour: 12
  delay_seconds: 15
`

func TestLoadPlatforms(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "acme.yaml"), []byte(acmeYAML), 0644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644); err != nil {
		t.Fatalf("write txt: %v", err)
	}

	cfg := &Config{Platforms: make(map[string]*models.PlatformDescriptor)}
	if err := cfg.loadPlatforms(dir); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.Platforms) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(cfg.Platforms))
	}

	desc := cfg.Platforms["acme"]
	if desc == nil {
		t.Fatal("acme descriptor missing")
	}
	if desc.Name != "Acme Wholesale" {
		t.Fatalf("unexpected name %q", desc.Name)
	}
	if len(desc.FormURLs["phones"]) != 1 {
		t.Fatalf("form urls not parsed: %+v", desc.FormURLs)
	}
	if desc.TwoFactor.Mode != "none" {
		t.Fatalf("2fa mode %q", desc.TwoFactor.Mode)
	}
	if len(desc.Fields) != 1 || desc.Fields[0].Attr != "brand" {
		t.Fatalf("fields not parsed: %+v", desc.Fields)
	}
	if got := desc.Fields[0].Field.Translate["Apple"]; len(got) != 2 {
		t.Fatalf("translate not parsed: %v", got)
	}
	if desc.RateLimit.PerHour != 12 || desc.MaxListingsPerHour() != 12 {
		t.Fatalf("rate limit not parsed: %+v", desc.RateLimit)
	}
}

func TestDescriptorDefaults(t *testing.T) {
	desc := &models.PlatformDescriptor{ID: "bare"}
	if desc.MaxListingsPerHour() != 10 {
		t.Fatalf("default per-hour = %d", desc.MaxListingsPerHour())
	}
	if desc.InterListingDelaySeconds() != 10 {
		t.Fatalf("default delay = %d", desc.InterListingDelaySeconds())
	}
	if desc.PriceMaxLength() != 6 {
		t.Fatalf("default price len = %d", desc.PriceMaxLength())
	}
	if !desc.ReuseCookies() {
		t.Fatal("cookie reuse should default on")
	}
}

func TestCredentialsFor(t *testing.T) {
	t.Setenv("ACME_USERNAME", "dealer")
	t.Setenv("ACME_PASSWORD", "hunter2")
	cfg := &Config{}

	creds, err := cfg.CredentialsFor("acme")
	if err != nil {
		t.Fatalf("credentials lookup failed: %v", err)
	}
	if creds.Username != "dealer" || creds.Password != "hunter2" {
		t.Fatalf("unexpected creds %+v", creds)
	}

	if _, err := cfg.CredentialsFor("missing-site"); err == nil {
		t.Fatal("expected error for absent credentials")
	}
}
