package votemapa

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents removes combining marks after NFD decomposition, so that
// "JOSÉ" and "JOSE" produce the same lookup key. E-26 exports are
// inconsistent about accents and occasionally carry mojibake from
// Latin-1 round trips; matching on the stripped form tolerates both.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeKey produces the canonical lookup form of a station or
// candidate name: accents stripped, upper-cased, surrounding whitespace
// trimmed and internal runs collapsed to single spaces.
//
// Every name comparison in this package (reference lookups, candidate
// matching, landmark inference) goes through this function so that the
// same raw string always lands on the same key.
func NormalizeKey(s string) string {
	stripped, _, err := transform.String(stripAccents, s)
	if err != nil {
		// Invalid UTF-8 sequences pass through untransformed rather
		// than dropping the record.
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(stripped)), " ")
}

// padZone normalizes a zone identifier to the zero-padded two digit
// form used by the reference tables ("1" -> "01"). Empty input stays
// empty so callers can distinguish "zone unknown".
func padZone(zone string) string {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return ""
	}
	for len(zone) < 2 {
		zone = "0" + zone
	}
	return zone
}
