// Package mapper translates a generic listing record into the ordered
// sequence of form operations for one platform. Planning is pure: no I/O,
// no browser, and equal inputs always produce equal op sequences.
package mapper

import (
	"fmt"
	"strconv"
	"strings"

	"phone_lister/models"
)

type OpKind string

const (
	OpSetText      OpKind = "set_text"
	OpSetTextArea  OpKind = "set_textarea"
	OpSelect       OpKind = "select"
	OpRadio        OpKind = "radio"
	OpCheckbox     OpKind = "checkbox"
	OpDate         OpKind = "date"
	OpAutocomplete OpKind = "autocomplete"
)

// Op is one executable field instruction. No op implies a submit; submission
// is a distinct state transition in the posting machine.
type Op struct {
	Kind       OpKind
	Attr       string
	Field      models.FieldDescriptor
	Value      string
	Candidates []string
	Checked    bool
}

// Plan maps the listing onto the descriptor's ordered field list. A required
// attribute with no legal platform mapping fails here, before any browser
// action is taken.
func Plan(listing *models.ListingRecord, p *models.PlatformDescriptor) ([]Op, error) {
	if err := listing.Validate(); err != nil {
		return nil, err
	}

	// SIM lock Unlocked forces carrier empty regardless of caller input.
	carrier := listing.Carrier
	if listing.SimLock == models.SimUnlocked {
		carrier = ""
	}

	var ops []Op
	for _, fm := range p.Fields {
		value, ok := attrValue(listing, p, fm.Attr, carrier)
		if !ok {
			return nil, fmt.Errorf("%w: unknown attribute %q", models.ErrFieldUnmappable, fm.Attr)
		}
		if value == "" && !fm.Field.Required {
			continue
		}

		op, err := buildOp(fm, value, listing)
		if err != nil {
			return nil, err
		}
		if op != nil {
			ops = append(ops, *op)
		}
	}
	return ops, nil
}

func buildOp(fm models.FieldMapping, value string, listing *models.ListingRecord) (*Op, error) {
	f := fm.Field
	switch f.Kind {
	case "select", "radio":
		candidates, err := translate(fm, value)
		if err != nil {
			return nil, err
		}
		if fm.Attr == "currency" && len(f.Translate) == 0 {
			candidates = currencyCandidates(value)
		}
		kind := OpSelect
		if f.Kind == "radio" {
			kind = OpRadio
		}
		return &Op{Kind: kind, Attr: fm.Attr, Field: f, Value: value, Candidates: candidates}, nil
	case "checkbox":
		if fm.Attr == "payments" {
			return &Op{Kind: OpCheckbox, Attr: fm.Attr, Field: f, Candidates: listing.Payments, Checked: true}, nil
		}
		return &Op{Kind: OpCheckbox, Attr: fm.Attr, Field: f, Value: value, Checked: value == "true"}, nil
	case "textarea":
		return &Op{Kind: OpSetTextArea, Attr: fm.Attr, Field: f, Value: clip(value, f.MaxLength)}, nil
	case "date":
		return &Op{Kind: OpDate, Attr: fm.Attr, Field: f, Value: value}, nil
	case "autocomplete":
		return &Op{Kind: OpAutocomplete, Attr: fm.Attr, Field: f, Value: value}, nil
	default:
		return &Op{Kind: OpSetText, Attr: fm.Attr, Field: f, Value: clip(value, f.MaxLength)}, nil
	}
}

// translate expands a generic value to the platform-legal visible labels.
// A required select with a translation table that does not know the value
// is a planning failure, not a runtime one.
func translate(fm models.FieldMapping, value string) ([]string, error) {
	f := fm.Field
	if len(f.Translate) == 0 {
		return []string{value}, nil
	}
	if labels, ok := f.Translate[value]; ok {
		return labels, nil
	}
	if labels, ok := f.Translate[strings.ToLower(value)]; ok {
		return labels, nil
	}
	if f.Required {
		return nil, fmt.Errorf("%w: no legal mapping for %s=%q", models.ErrFieldUnmappable, fm.Attr, value)
	}
	return []string{value}, nil
}

func attrValue(l *models.ListingRecord, p *models.PlatformDescriptor, attr, carrier string) (string, bool) {
	switch attr {
	case "display_name":
		return l.DisplayName(), true
	case "product_type":
		return string(l.ProductType), true
	case "brand":
		return l.Brand, true
	case "model":
		return l.Model, true
	case "model_code":
		return l.ModelCode, true
	case "memory":
		return models.NormalizeMemory(l.Memory), true
	case "color":
		return l.Color, true
	case "condition":
		return string(l.Condition), true
	case "condition_grade":
		return l.ConditionGrade, true
	case "lcd_defects":
		return l.LCDDefects, true
	case "sim_lock":
		return string(l.SimLock), true
	case "carrier":
		return carrier, true
	case "market_spec":
		return l.MarketSpec, true
	case "price":
		return NormalizePrice(l.Price, p.PriceMaxLength()), true
	case "currency":
		return l.Currency, true
	case "quantity":
		return strconv.Itoa(l.Quantity), true
	case "min_order":
		return strconv.Itoa(l.MinOrder), true
	case "packaging":
		return l.Packaging, true
	case "weight":
		return NormalizeWeight(l.Weight), true
	case "weight_unit":
		return l.WeightUnit, true
	case "incoterm":
		return l.Incoterm, true
	case "local_pickup":
		return strconv.FormatBool(l.LocalPickup), true
	case "delivery_days":
		return strconv.Itoa(l.DeliveryDays), true
	case "country":
		return l.Country, true
	case "state":
		return l.State, true
	case "description":
		return l.Description, true
	case "keywords":
		return strings.Join(l.Keywords, ", "), true
	case "payments":
		return strings.Join(l.Payments, ", "), true
	case "available_from":
		if l.AvailableFrom.IsZero() {
			return "", true
		}
		return l.AvailableFrom.Format("2006-01-02"), true
	}
	return "", false
}

// clip counts runes so a limit never splits a multi-byte character.
func clip(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return s
}
