package mail

import (
	"regexp"
	"strings"
)

// Trivial false positives that show up in footers, years and test mails.
var codeBlacklist = map[string]bool{
	"1234": true,
	"0000": true,
	"9999": true,
	"ABCD": true,
	"TEST": true,
}

var codeFormat = regexp.MustCompile(`^[A-Z0-9]{4,8}$`)

// Generic numeric verification codes, tried after the platform's own
// patterns. Word-boundary anchored so order numbers and phone digits inside
// longer runs don't match.
var genericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{6})\b`),
	regexp.MustCompile(`\b(\d{8})\b`),
	regexp.MustCompile(`\b(\d{5})\b`),
	regexp.MustCompile(`\b(\d{4})\b`),
	regexp.MustCompile(`\b([A-Z0-9]{6,8})\b`),
}

// AcceptCode validates any candidate, whatever extractor produced it.
func AcceptCode(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !codeFormat.MatchString(code) {
		return false
	}
	return !codeBlacklist[code]
}

// ExtractCode runs the layered extraction over one message body: the
// platform's own pattern first, then the generic numeric fallbacks.
func ExtractCode(body, platformPattern string) string {
	if platformPattern != "" {
		if re, err := regexp.Compile(platformPattern); err == nil {
			if code := firstAccepted(re, body); code != "" {
				return code
			}
		}
	}
	for _, re := range genericPatterns {
		if code := firstAccepted(re, body); code != "" {
			return code
		}
	}
	return ""
}

func firstAccepted(re *regexp.Regexp, body string) string {
	for _, m := range re.FindAllStringSubmatch(body, 10) {
		candidate := m[0]
		if len(m) > 1 {
			candidate = m[1]
		}
		candidate = strings.ToUpper(strings.TrimSpace(candidate))
		if AcceptCode(candidate) {
			return candidate
		}
	}
	return ""
}
