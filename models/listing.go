package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type ProductType string

const (
	ProductPhone     ProductType = "phone"
	ProductAccessory ProductType = "accessory"
	ProductGadget    ProductType = "gadget"
	ProductPack      ProductType = "pack"
	ProductConsumer  ProductType = "consumer"
)

type Condition string

const (
	ConditionNew         Condition = "New"
	ConditionUsed        Condition = "Used"
	ConditionRefurbished Condition = "Refurbished"
	ConditionDamaged     Condition = "Damaged"
	Condition14Day       Condition = "14-day"
)

type SimLock string

const (
	SimUnlocked        SimLock = "Unlocked"
	SimLocked          SimLock = "Locked"
	SimFactoryUnlocked SimLock = "Factory Unlocked"
)

// ListingRecord is the platform-agnostic description of one product offer,
// one row of a submitted batch.
type ListingRecord struct {
	ProductType    ProductType `json:"product_type"`
	Brand          string      `json:"brand"`
	Model          string      `json:"model"`
	ModelCode      string      `json:"model_code,omitempty"`
	Memory         string      `json:"memory,omitempty"`
	Color          string      `json:"color,omitempty"`
	Condition      Condition   `json:"condition"`
	ConditionGrade string      `json:"condition_grade,omitempty"` // A..F
	LCDDefects     string      `json:"lcd_defects,omitempty"`
	SimLock        SimLock     `json:"sim_lock"`
	Carrier        string      `json:"carrier,omitempty"`
	MarketSpec     string      `json:"market_spec,omitempty"` // US, EU, UK, Asia, Arabic, Global, Other
	Price          float64     `json:"price"`
	Currency       string      `json:"currency"`
	Quantity       int         `json:"quantity"`
	MinOrder       int         `json:"min_order"`
	Packaging      string      `json:"packaging,omitempty"` // Original Box, Bulk, Refurbished Box, None
	Weight         float64     `json:"weight,omitempty"`
	WeightUnit     string      `json:"weight_unit,omitempty"` // kg, lbs
	Incoterm       string      `json:"incoterm,omitempty"`    // EXW, FOB, CIF, DDP
	LocalPickup    bool        `json:"local_pickup,omitempty"`
	DeliveryDays   int         `json:"delivery_days,omitempty"`
	Country        string      `json:"country,omitempty"`
	State          string      `json:"state,omitempty"`
	Description    string      `json:"description,omitempty"`
	Keywords       []string    `json:"keywords,omitempty"`
	Payments       []string    `json:"payments"`
	AvailableFrom  time.Time   `json:"available_from,omitempty"`
}

var memoryPattern = regexp.MustCompile(`^\d+\s?(GB|TB)$`)

// Validate checks the listing invariants before any browser action is planned.
func (l *ListingRecord) Validate() error {
	if l.Brand == "" {
		return fmt.Errorf("%w: brand is empty", ErrFieldUnmappable)
	}
	if l.Price < 0 {
		return fmt.Errorf("%w: price %.2f is negative", ErrFieldUnmappable, l.Price)
	}
	if l.Quantity < 1 {
		return fmt.Errorf("%w: quantity %d < 1", ErrFieldUnmappable, l.Quantity)
	}
	if l.MinOrder > l.Quantity {
		return fmt.Errorf("%w: minimum order %d exceeds quantity %d", ErrFieldUnmappable, l.MinOrder, l.Quantity)
	}
	if l.Memory != "" && !memoryPattern.MatchString(NormalizeMemory(l.Memory)) {
		return fmt.Errorf("%w: memory %q not normalizable", ErrFieldUnmappable, l.Memory)
	}
	if len(l.Payments) == 0 {
		return fmt.Errorf("%w: accepted payments empty", ErrFieldUnmappable)
	}
	return nil
}

// NormalizeMemory canonicalizes storage size strings to "<n> GB" / "<n> TB".
// Idempotent; returns the input trimmed when no digits are present.
func NormalizeMemory(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	upper := strings.ToUpper(s)
	var digits strings.Builder
	for _, c := range upper {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() == 0 {
		return s
	}
	unit := "GB"
	if strings.Contains(upper, "TB") {
		unit = "TB"
	}
	return digits.String() + " " + unit
}

// DisplayName assembles the marketplace product title from brand, model and
// memory, the way wholesale boards expect it.
func (l *ListingRecord) DisplayName() string {
	parts := []string{l.Brand, l.Model}
	if l.Memory != "" {
		parts = append(parts, NormalizeMemory(l.Memory))
	}
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return strings.Join(out, " ")
}
