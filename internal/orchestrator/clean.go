package orchestrator

import (
	"regexp"
	"strings"
	"unicode"
)

// Models echo scaffolding, drift into the wrong script, and pick up
// east-asian punctuation from training data. The cleaner normalizes all of
// that before the translation is validated or cached.

var echoMarkers = []string{
	"previous context",
	"note:",
	"english:",
	"portuguese:",
}

var stripPrefixes = []string{
	"translation:",
	"translated:",
	"tradução:",
	"here is the translation:",
	"here is:",
	"the translation is:",
}

var asianPunct = map[rune]string{
	'。': ".", '．': ".", '，': ",", '、': ",",
	'！': "!", '？': "?", '：': ":", '；': ";",
	'「': "\"", '」': "\"", '『': "\"", '』': "\"",
	'“': "\"", '”': "\"", '（': "(", '）': ")",
	'…': "...",
}

var (
	reManyDots    = regexp.MustCompile(`\.{4,}`)
	reCleanSpaces = regexp.MustCompile(`\s+`)
)

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r)
}

// cleanResponse normalizes one raw backend reply into a candidate
// translation line.
func cleanResponse(raw string) string {
	s := strings.TrimSpace(raw)

	// Cut everything from an echo marker onward; the real translation, if
	// any, precedes the echo.
	lower := strings.ToLower(s)
	for _, marker := range echoMarkers {
		if idx := strings.Index(lower, marker); idx > 0 {
			s = strings.TrimSpace(s[:idx])
			lower = strings.ToLower(s)
		}
	}

	for _, prefix := range stripPrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			lower = strings.ToLower(s)
		}
	}

	// Surrounding quotes the model added around the whole line.
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"') {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case asianPunct[r] != "":
			sb.WriteString(asianPunct[r])
		case isCJK(r):
			// drop script residue
		case r == '\t':
			sb.WriteByte(' ')
		case unicode.IsControl(r) && r != '\n':
			// drop
		default:
			sb.WriteRune(r)
		}
	}
	s = sb.String()

	s = reManyDots.ReplaceAllString(s, "...")
	s = strings.TrimSpace(reCleanSpaces.ReplaceAllString(s, " "))
	return s
}

var explanationWords = []string{"translator", "glossary", "context", "subtitle"}

// extractFromExplanation handles the failure mode where the model writes a
// paragraph about translating instead of the translation. It picks the
// first short sentence as the likely real output. Heuristic and fragile,
// which is why it sits behind a flag and defaults off.
func extractFromExplanation(s string) string {
	if len(s) <= 120 {
		return s
	}
	lower := strings.ToLower(s)
	found := false
	for _, w := range explanationWords {
		if strings.Contains(lower, w) {
			found = true
			break
		}
	}
	if !found {
		return s
	}
	for _, sentence := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		short := len(sentence) <= 80
		explains := false
		lowerSentence := strings.ToLower(sentence)
		for _, w := range explanationWords {
			if strings.Contains(lowerSentence, w) {
				explains = true
				break
			}
		}
		if short && !explains {
			return sentence
		}
	}
	return s
}
