package validate

import (
	"strings"
	"testing"
)

func TestCheckLineRefusesEmpty(t *testing.T) {
	r := CheckLine("", "algo")
	if r.Valid || r.Confidence != 0 {
		t.Errorf("empty original: %+v", r)
	}
	r = CheckLine("something", "")
	if r.Valid || r.Confidence != 0 {
		t.Errorf("empty translation: %+v", r)
	}
}

func TestCheckLineRefusesIdentity(t *testing.T) {
	r := CheckLine("Hello there.", "hello THERE.")
	if r.Valid || r.Confidence != 0 {
		t.Errorf("identity: %+v", r)
	}
}

func TestCheckLineDetectsNegationInversion(t *testing.T) {
	r := CheckLine("I don't know.", "Eu sei.")
	if r.Confidence > 0.65 {
		t.Errorf("negation inversion not penalized: %+v", r)
	}
	found := false
	for _, issue := range r.Issues {
		if strings.Contains(issue, "negation") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing negation issue: %v", r.Issues)
	}
}

func TestCheckLineAcceptsPreservedNegation(t *testing.T) {
	r := CheckLine("I don't know.", "Eu não sei.")
	if !r.Valid || r.Confidence != 1.0 {
		t.Errorf("clean negation pair penalized: %+v", r)
	}
}

func TestCheckLinePronounMismatch(t *testing.T) {
	r := CheckLine("She is a doctor.", "Ele é médico.")
	if r.Confidence > 0.5 {
		t.Errorf("feminine->masculine flip not penalized: %+v", r)
	}

	ok := CheckLine("She is a doctor.", "Ela é médica.")
	if !ok.Valid || len(ok.Issues) != 0 {
		t.Errorf("correct pronoun flagged: %+v", ok)
	}
	ok = CheckLine("He is a doctor.", "Ele é médico.")
	if !ok.Valid || len(ok.Issues) != 0 {
		t.Errorf("correct pronoun flagged: %+v", ok)
	}
}

func TestCheckLineLengthRatio(t *testing.T) {
	long := strings.Repeat("palavra ", 30)
	r := CheckLine("Hi and welcome to everything.", long)
	found := false
	for _, issue := range r.Issues {
		if strings.Contains(issue, "long") {
			found = true
		}
	}
	if !found {
		t.Errorf("4x length not flagged: %+v", r)
	}

	r = CheckLine("This is a fairly long sentence about nothing at all, truly.", "Ah, né.")
	found = false
	for _, issue := range r.Issues {
		if strings.Contains(issue, "short") {
			found = true
		}
	}
	if !found {
		t.Errorf("short translation not flagged: %+v", r)
	}
}

func TestCheckLineArtifactPrefix(t *testing.T) {
	r := CheckLine("Good morning.", "Translation: Bom dia.")
	if r.Confidence > 0.5 {
		t.Errorf("artifact prefix not penalized: %+v", r)
	}
}

func TestCheckLineCJKResidue(t *testing.T) {
	r := CheckLine("Good morning.", "Bom dia 朝")
	if r.Confidence > 0.4 {
		t.Errorf("CJK not penalized: %+v", r)
	}
}

func TestCheckLineNearIdenticalPenalized(t *testing.T) {
	r := CheckLine("What an impossible situation!", "What an impossible situation!?")
	if r.Confidence > 0.6 {
		t.Errorf("near-identical output not penalized: %+v", r)
	}
}

func TestCheckLineValidThreshold(t *testing.T) {
	// Negation (0.4) + artifact (0.5) drives confidence to 0.1 < 0.3.
	r := CheckLine("I can't do this.", "Note: eu faço isso.")
	if r.Valid {
		t.Errorf("stacked issues should invalidate: %+v", r)
	}
}

func TestCheckFileScoresPortuguese(t *testing.T) {
	pt := []string{
		"Não acredito que você fez isso.",
		"Vamos embora agora, por favor.",
		"Ele não sabe de nada, mas tudo bem.",
	}
	report := CheckFile(pt, "pt-BR")
	if report.Score < 50 {
		t.Errorf("portuguese text scored %d", report.Score)
	}

	en := []string{
		"I cannot believe you did that thing yesterday.",
		"We should leave right away, please.",
	}
	bad := CheckFile(en, "pt-BR")
	if bad.Score >= report.Score {
		t.Errorf("english output (%d) should score below portuguese (%d)", bad.Score, report.Score)
	}
	if len(bad.Advice) == 0 {
		t.Error("english output should carry advice")
	}
}

func TestCheckFileEmpty(t *testing.T) {
	report := CheckFile(nil, "pt-BR")
	if report.Score != 0 || len(report.Advice) == 0 {
		t.Errorf("empty file: %+v", report)
	}
}
