package mapper

// currencyCandidates orders the ISO code first, then the localized labels
// platforms render in their currency dropdowns.
func currencyCandidates(iso string) []string {
	candidates := []string{iso}
	switch iso {
	case "USD":
		candidates = append(candidates, "US Dollar", "$")
	case "EUR":
		candidates = append(candidates, "Euro", "€")
	case "GBP":
		candidates = append(candidates, "British Pound", "£")
	case "AED":
		candidates = append(candidates, "UAE Dirham", "Dirham")
	case "HKD":
		candidates = append(candidates, "Hong Kong Dollar", "HK$")
	}
	return candidates
}
