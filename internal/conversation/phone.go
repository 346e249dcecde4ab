package conversation

import "strings"

// NormalizePhone reduces a phone number to +digits. Ten-digit numbers are
// taken as North American. It returns "" when too few digits remain.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) < 7:
		return ""
	case len(digits) == 10 && !strings.HasPrefix(strings.TrimSpace(raw), "+"):
		return "+1" + digits
	}
	return "+" + digits
}
