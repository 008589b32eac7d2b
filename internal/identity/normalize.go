package identity

import (
	"strings"
	"unicode"
)

// nameSuffixes are generational suffixes dropped during normalization so
// "Gary Payton II" and "Gary Payton" collide on purpose; team-code
// disambiguation separates them when both are active.
var nameSuffixes = map[string]bool{
	"jr":  true,
	"sr":  true,
	"ii":  true,
	"iii": true,
	"iv":  true,
	"v":   true,
}

// NormalizeName case-folds a display name, strips punctuation and
// generational suffixes, and collapses whitespace. Providers spell the same
// player differently ("P.J. Washington" vs "PJ Washington Jr."); normalized
// forms let them meet.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			b.WriteRune(' ')
		}
		// punctuation is dropped entirely
	}

	fields := strings.Fields(b.String())

	// Trim trailing suffixes only; "van" or "st" mid-name must survive.
	for len(fields) > 1 && nameSuffixes[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}

	return strings.Join(fields, " ")
}

// NormalizeTeamCode upper-cases and trims a team code or team name fragment
// so "bos" and "BOS " compare equal.
func NormalizeTeamCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
