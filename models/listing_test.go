package models

import (
	"errors"
	"testing"
)

func validListing() *ListingRecord {
	return &ListingRecord{
		ProductType: ProductPhone,
		Brand:       "Apple",
		Model:       "iPhone 15 Pro",
		Memory:      "256GB",
		Condition:   ConditionNew,
		SimLock:     SimUnlocked,
		Price:       749,
		Currency:    "USD",
		Quantity:    50,
		MinOrder:    5,
		Payments:    []string{"Wire Transfer"},
	}
}

func TestValidate(t *testing.T) {
	if err := validListing().Validate(); err != nil {
		t.Fatalf("valid listing rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*ListingRecord)
	}{
		{"empty brand", func(l *ListingRecord) { l.Brand = "" }},
		{"negative price", func(l *ListingRecord) { l.Price = -1 }},
		{"zero quantity", func(l *ListingRecord) { l.Quantity = 0 }},
		{"min order over quantity", func(l *ListingRecord) { l.MinOrder = 51 }},
		{"garbage memory", func(l *ListingRecord) { l.Memory = "lots" }},
		{"no payments", func(l *ListingRecord) { l.Payments = nil }},
	}
	for _, c := range cases {
		l := validListing()
		c.mutate(l)
		if err := l.Validate(); !errors.Is(err, ErrFieldUnmappable) {
			t.Fatalf("%s: expected ErrFieldUnmappable, got %v", c.name, err)
		}
	}
}

func TestNormalizeMemory(t *testing.T) {
	cases := []struct{ in, want string }{
		{"256GB", "256 GB"},
		{"256 gb", "256 GB"},
		{"1tb", "1 TB"},
		{"256 GB", "256 GB"},
		{"", ""},
		{"lots", "lots"},
	}
	for _, c := range cases {
		if got := NormalizeMemory(c.in); got != c.want {
			t.Fatalf("NormalizeMemory(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	// Idempotent on its own output.
	if NormalizeMemory(NormalizeMemory("512g b")) != NormalizeMemory("512g b") {
		t.Fatal("not idempotent")
	}
}

func TestDisplayName(t *testing.T) {
	l := validListing()
	if got := l.DisplayName(); got != "Apple iPhone 15 Pro 256 GB" {
		t.Fatalf("unexpected display name %q", got)
	}
	l.Memory = ""
	if got := l.DisplayName(); got != "Apple iPhone 15 Pro" {
		t.Fatalf("unexpected display name without memory %q", got)
	}
}

func TestRetryableKinds(t *testing.T) {
	if !Retryable(ErrInteractionFailed) {
		t.Fatal("interaction failures should be retryable")
	}
	for _, err := range []error{ErrAuthFailed, ErrTwoFactorFailed, ErrFieldUnmappable, ErrSubmissionRejected, ErrCancelled} {
		if Retryable(err) {
			t.Fatalf("%v should not be retryable", err)
		}
	}
}
