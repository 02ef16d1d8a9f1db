// Package classify decides what actually happened after a listing form was
// submitted. The rule is deliberately pessimistic: platforms have been
// observed to render a success banner while silently rejecting the listing,
// and the reverse (a bare form page with inline has-error classes and no
// banner at all). Ambiguity is failure.
package classify

import "strings"

type Verdict int

const (
	Unknown Verdict = iota
	Verified
	PendingReview
	Rejected
)

func (v Verdict) String() string {
	switch v {
	case Verified:
		return "verified"
	case PendingReview:
		return "pending_review"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

type Outcome struct {
	Verdict Verdict
	Reasons []string
}

// Snapshot is everything visible on the page right after submit.
type Snapshot struct {
	URL                string
	Banners            []string
	ValidationMessages []string // includes HTML5 validationMessage values
	ErrorNodes         []string
	AlertText          string // auto-accepted post-submit JS alert, if any
	PageText           string
}

var failureKeywords = []string{
	"not submitted",
	"validation error",
	"required",
	"missing",
	"failed",
	"blocked by validation",
	"submission failed",
	"error",
	"invalid",
	"blocked",
	"not posted",
	"unsuccessful",
	"no success message",
	"form visible",
	"still on form",
	"has-error",
}

var reviewKeywords = []string{
	"pending moderation",
	"reviewed in 24 hours",
	"submitted for review",
	"will appear after moderation",
}

var successKeywords = []string{
	"success",
	"successfully submitted",
	"confirmation",
	"thank you",
	"listing posted",
	"inventory added",
}

var successURLHints = []string{
	"success",
	"confirmation",
	"thank",
	"inventory/view",
	"my-listings",
	"dashboard",
}

// Classify applies the decision rule in order; first match wins. Failure
// keywords are checked in warnings, current-state text and validation
// messages, not just the page body.
func Classify(s Snapshot) Outcome {
	texts := make([]string, 0, len(s.Banners)+len(s.ValidationMessages)+len(s.ErrorNodes)+2)
	texts = append(texts, s.Banners...)
	texts = append(texts, s.ValidationMessages...)
	texts = append(texts, s.ErrorNodes...)
	if s.AlertText != "" {
		texts = append(texts, s.AlertText)
	}
	texts = append(texts, s.PageText)

	if reasons := matchAll(texts, failureKeywords); len(reasons) > 0 {
		return Outcome{Verdict: Rejected, Reasons: reasons}
	}

	if reasons := matchAll(texts, reviewKeywords); len(reasons) > 0 {
		return Outcome{Verdict: PendingReview, Reasons: reasons}
	}

	lowerURL := strings.ToLower(s.URL)
	if reasons := matchAll(texts, successKeywords); len(reasons) > 0 {
		return Outcome{Verdict: Verified, Reasons: reasons}
	}
	for _, hint := range successURLHints {
		if strings.Contains(lowerURL, hint) {
			return Outcome{Verdict: Verified, Reasons: []string{"url: " + hint}}
		}
	}

	return Outcome{Verdict: Unknown, Reasons: []string{"no clear success indicators"}}
}

func matchAll(texts, keywords []string) []string {
	var hits []string
	seen := make(map[string]bool)
	for _, t := range texts {
		lower := strings.ToLower(t)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) && !seen[kw] {
				seen[kw] = true
				hits = append(hits, kw)
			}
		}
	}
	return hits
}
