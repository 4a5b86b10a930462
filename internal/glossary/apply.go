package glossary

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// ApplyToText substitutes every glossary term found in text (whole word,
// case-insensitive), preserving the matched occurrence's case pattern
// (ALL CAPS / Initial-Cap / lowercase). seriesView terms override globals
// of the same key.
func ApplyToText(text string, seriesView map[string]string) string {
	if text == "" {
		return text
	}

	combined := make(map[string]string, len(GlobalGlossary)+len(seriesView))
	for k, v := range GlobalGlossary {
		combined[k] = v
	}
	for k, v := range seriesView {
		combined[k] = v
	}

	// Longest terms first so multi-word keys are not shadowed by a
	// single-word substring of themselves.
	keys := make([]string, 0, len(combined))
	for k := range combined {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	result := text
	for _, key := range keys {
		replacement := combined[key]
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(key) + `\b`)
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			return matchCase(match, replacement)
		})
	}
	return result
}

// matchCase renders replacement in the case pattern observed in original:
// all-uppercase stays all-uppercase, an initial capital is preserved on the
// replacement's first rune, otherwise the replacement passes through
// unchanged.
func matchCase(original, replacement string) string {
	if replacement == "" {
		return original
	}
	if isAllUpper(original) {
		return strings.ToUpper(replacement)
	}
	runes := []rune(original)
	if len(runes) > 0 && unicode.IsUpper(runes[0]) {
		repRunes := []rune(replacement)
		return strings.ToUpper(string(repRunes[0])) + string(repRunes[1:])
	}
	return replacement
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		hasLetter = true
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return hasLetter
}
