package feed

import (
	"regexp"
	"strings"
)

// highImpactPatterns identify "red folder" events. The upstream feed
// encodes impact as free text inside SUMMARY/DESCRIPTION; matching is
// done against lowercased text. \b on the bare color word keeps it
// from firing inside longer words such as "credit" or "hundred".
var highImpactPatterns = compilePatterns(
	`impact:\s*high`,
	`high\s*impact`,
	`red\s*folder`,
	`red\s*impact`,
	`\bred\b`,
)

// vipPatterns match named speakers and bodies whose appearances move
// markets regardless of the feed's own impact rating. Consulted only
// when FilterOptions.IncludeVIP is set.
var vipPatterns = compilePatterns(
	`\btrump\b`,
	`\bfomc\b`,
	`\bopec\b`,
	`president\s+lagarde`,
	`lagarde\b`,
	`gov\s+bailey`,
	`governor\s+bailey`,
	`\bbailey\b`,
)

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// Classify reports whether the event is high impact. Every event maps
// to exactly one answer: no marker means not high impact.
func Classify(ev Event) bool {
	return matchesAny(highImpactPatterns, ev.Summary) ||
		matchesAny(highImpactPatterns, ev.Description)
}

// IsVIP reports whether the event mentions one of the fixed VIP
// keywords, at any impact level.
func IsVIP(ev Event) bool {
	return matchesAny(vipPatterns, ev.Summary) ||
		matchesAny(vipPatterns, ev.Description)
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}
