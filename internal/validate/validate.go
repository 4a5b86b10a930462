// Package validate runs semantic sanity checks on translated subtitle
// lines and scores whole files. It never rewrites a translation; it only
// reports confidence so the caller can decide to retry or keep the original.
package validate

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// LineResult is the verdict for one translated line. Confidence starts at
// 1.0 and each detected issue subtracts a fixed penalty; Valid is false only
// when the final confidence lands below 0.3.
type LineResult struct {
	Valid      bool
	Confidence float64
	Issues     []string
}

const validThreshold = 0.3

var reWordSplit = regexp.MustCompile(`[^\p{L}']+`)

func words(s string) []string {
	var out []string
	for _, w := range reWordSplit.Split(strings.ToLower(s), -1) {
		if w != "" {
			out = append(out, strings.Trim(w, "'"))
		}
	}
	return out
}

func hasNegation(tokens []string, set map[string]bool, allowSuffix bool) bool {
	for _, w := range tokens {
		if set[w] {
			return true
		}
		if allowSuffix && strings.HasSuffix(w, "n't") {
			return true
		}
	}
	return false
}

func anyIn(tokens []string, set map[string]bool) bool {
	for _, w := range tokens {
		if set[w] {
			return true
		}
	}
	return false
}

func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

// CheckLine validates one translation against its original.
func CheckLine(original, translated string) LineResult {
	original = strings.TrimSpace(original)
	translated = strings.TrimSpace(translated)

	if original == "" || translated == "" {
		return LineResult{Valid: false, Confidence: 0, Issues: []string{"empty input"}}
	}
	if strings.EqualFold(original, translated) {
		return LineResult{Valid: false, Confidence: 0, Issues: []string{"translation equals original"}}
	}

	confidence := 1.0
	var issues []string
	penalize := func(amount float64, issue string) {
		confidence -= amount
		issues = append(issues, issue)
	}

	srcWords := words(original)
	dstWords := words(translated)

	// Semantic inversion: negated source, affirmative translation.
	if hasNegation(srcWords, englishNegations, true) && !hasNegation(dstWords, portugueseNegations, false) {
		penalize(0.4, "negation in original but not in translation")
	}

	// Pronoun gender flip, either direction. Fires only when the
	// translation is exclusively the opposite gender.
	srcFem, srcMasc := anyIn(srcWords, englishFeminine), anyIn(srcWords, englishMasculine)
	dstFem, dstMasc := anyIn(dstWords, portugueseFeminine), anyIn(dstWords, portugueseMasculine)
	if (srcFem && !srcMasc && dstMasc && !dstFem) || (srcMasc && !srcFem && dstFem && !dstMasc) {
		penalize(0.5, "pronoun gender mismatch")
	}

	// Length ratio sanity.
	ratio := float64(len([]rune(translated))) / float64(len([]rune(original)))
	if ratio < 0.2 {
		penalize(0.3, "translation suspiciously short")
	} else if ratio > 4.0 {
		penalize(0.2, "translation suspiciously long")
	}

	// Explanation artifacts leaking into the output.
	lowerDst := strings.ToLower(translated)
	for _, prefix := range artifactPrefixes {
		if strings.HasPrefix(lowerDst, prefix) {
			penalize(0.5, "artifact prefix: "+prefix)
			break
		}
	}

	// CJK residue means the model drifted into the wrong script entirely.
	if hasCJK(translated) {
		penalize(0.6, "CJK characters in translation")
	}

	// Near-identical output that slipped past the case-insensitive equality
	// check (a stray accent or punctuation tweak is not a translation).
	if similarity(original, translated) > 0.92 {
		penalize(0.4, "translation nearly identical to original")
	}

	if confidence < 0 {
		confidence = 0
	}
	return LineResult{Valid: confidence >= validThreshold, Confidence: confidence, Issues: issues}
}

func similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}
