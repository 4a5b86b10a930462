package validate

import (
	"strings"
)

// FileReport is the advisory per-file quality verdict. Score is 0-100. The
// report never causes a finished translation to be discarded.
type FileReport struct {
	Score        int
	LanguageHits float64
	Advice       []string
}

// portugueseCommon is a set of very common Brazilian
// Portuguese words used as a cheap language-detection signal.
var portugueseCommon = map[string]bool{
	"que": true, "não": true, "nao": true, "você": true, "voce": true,
	"ele": true, "ela": true, "isso": true, "aqui": true, "está": true,
	"esta": true, "com": true, "uma": true, "para": true, "por": true,
	"mas": true, "meu": true, "minha": true, "sim": true, "bem": true,
	"vamos": true, "agora": true, "quando": true, "onde": true, "porque": true,
	"muito": true, "também": true, "tambem": true, "então": true, "entao": true,
	"tudo": true, "nada": true, "gente": true, "obrigado": true, "obrigada": true,
}

// portuguesePatterns are orthographic shapes that rarely occur outside
// Portuguese text.
var portuguesePatterns = []string{"ção", "ções", "ão ", "õe", "lh", "nh"}

// CheckFile scores the joined translated dialogue of one file.
func CheckFile(translated []string, targetLang string) FileReport {
	var report FileReport

	joined := strings.ToLower(strings.Join(translated, " "))
	if strings.TrimSpace(joined) == "" {
		report.Advice = append(report.Advice, "no translated dialogue to score")
		return report
	}

	tokens := words(joined)
	if len(tokens) == 0 {
		return report
	}

	hits := 0
	for _, w := range tokens {
		if portugueseCommon[w] {
			hits++
		}
	}
	report.LanguageHits = float64(hits) / float64(len(tokens))

	patternHits := 0
	for _, p := range portuguesePatterns {
		if strings.Contains(joined, p) {
			patternHits++
		}
	}

	// Score: word-hit ratio dominates, pattern hits and CJK absence refine.
	score := int(report.LanguageHits * 250)
	if score > 70 {
		score = 70
	}
	score += patternHits * 5

	if hasCJK(joined) {
		score -= 30
		report.Advice = append(report.Advice, "CJK residue present in output")
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	report.Score = score

	if strings.HasPrefix(strings.ToLower(targetLang), "pt") && report.LanguageHits < 0.05 {
		report.Advice = append(report.Advice, "output does not look like Portuguese")
	}
	return report
}
