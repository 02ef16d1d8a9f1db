package models

// PlatformDescriptor is the static per-platform configuration. Behavior
// differences between marketplaces live here as data; the posting state
// machine is the single consumer.
type PlatformDescriptor struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	LoginURL string `yaml:"login_url"`

	// Listing-form URL candidates per section branch, tried in order.
	FormURLs map[string][]string `yaml:"form_urls"`

	// Inventory pages scanned by the post-submit verifier, in order.
	InventoryURLs []string `yaml:"inventory_urls"`

	Login     LoginSelectors  `yaml:"login"`
	TwoFactor TwoFactorPolicy `yaml:"two_factor"`

	// Ordered generic-attribute → field mappings consumed by the planner.
	Fields []FieldMapping `yaml:"fields"`

	SubmitSelectors []string `yaml:"submit_selectors"`
	PostbackTarget  string   `yaml:"postback_target,omitempty"`

	RateLimit   RateLimit `yaml:"rate_limit"`
	PriceMaxLen int       `yaml:"price_max_len,omitempty"`
	CookieReuse *bool     `yaml:"cookie_reuse,omitempty"`
}

type LoginSelectors struct {
	UserSelectors     []string `yaml:"user_selectors"`
	PassSelectors     []string `yaml:"pass_selectors"`
	SubmitSelectors   []string `yaml:"submit_selectors"`
	CodeSelectors     []string `yaml:"code_selectors"`
	SuccessIndicators []string `yaml:"success_indicators"`
}

// TwoFactorPolicy: mode is one of none | email | manual | either.
type TwoFactorPolicy struct {
	Mode          string   `yaml:"mode"`
	URLHints      []string `yaml:"url_hints"`
	SenderPattern string   `yaml:"sender_pattern"`
	SubjectTerms  []string `yaml:"subject_terms"`
	CodePattern   string   `yaml:"code_pattern"`
}

type RateLimit struct {
	PerHour      int `yaml:"per_hour"`
	DelaySeconds int `yaml:"delay_seconds"`
}

// FieldMapping binds one generic listing attribute to one form field.
type FieldMapping struct {
	Attr  string          `yaml:"attr"`
	Field FieldDescriptor `yaml:"field"`
}

// FieldDescriptor locates a form field and carries its translation rules.
type FieldDescriptor struct {
	Name     string `yaml:"name,omitempty"`
	Selector string `yaml:"selector,omitempty"`
	Kind     string `yaml:"kind"` // text, textarea, select, radio, checkbox, date, autocomplete

	// Translate maps a normalized generic value to the ordered list of
	// acceptable visible labels on this platform.
	Translate map[string][]string `yaml:"translate,omitempty"`

	MaxLength       int    `yaml:"max_length,omitempty"`
	SkipPlaceholder bool   `yaml:"skip_placeholder,omitempty"` // allow index-1 fallback past option 0
	Required        bool   `yaml:"required,omitempty"`
	Group           string `yaml:"group,omitempty"`            // radio group name
	HiddenCompanion string `yaml:"hidden_companion,omitempty"` // hidden id input filled by autocomplete
}

// Locator returns the CSS selector used to find the field.
func (f FieldDescriptor) Locator() string {
	if f.Selector != "" {
		return f.Selector
	}
	if f.Name != "" {
		return `[name="` + f.Name + `"]`
	}
	return ""
}

// MaxListingsPerHour applies the default rate limit when the descriptor is
// silent. The descriptor is the single source of truth otherwise.
func (p *PlatformDescriptor) MaxListingsPerHour() int {
	if p.RateLimit.PerHour > 0 {
		return p.RateLimit.PerHour
	}
	return 10
}

func (p *PlatformDescriptor) InterListingDelaySeconds() int {
	if p.RateLimit.DelaySeconds > 0 {
		return p.RateLimit.DelaySeconds
	}
	return 10
}

func (p *PlatformDescriptor) PriceMaxLength() int {
	if p.PriceMaxLen > 0 {
		return p.PriceMaxLen
	}
	return 6
}

func (p *PlatformDescriptor) ReuseCookies() bool {
	if p.CookieReuse == nil {
		return true
	}
	return *p.CookieReuse
}
