package contacts

import "strings"

// NormalizeEmail lowercases and trims an email address. Addresses are
// compared byte for byte after this; no plus-suffix stripping, since
// user+tag@ and user@ are different inboxes to most teams.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone reduces a phone number to digits with an optional leading
// plus. Formatting differences between providers must not defeat matching.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}

	out := b.String()
	if out == "" || out == "+" {
		return ""
	}
	return out
}
