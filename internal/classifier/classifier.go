// Package classifier triages subtitle lines with zero-cost regex and
// heuristic rules before any of them reach a translation backend.
package classifier

import (
	"regexp"
	"strings"
	"unicode"
)

// LineType is the classification assigned to one subtitle line.
type LineType string

const (
	Dialogue       LineType = "dialogue"
	SoundEffect    LineType = "sound_effect"
	MusicLyrics    LineType = "music_lyrics"
	TechnicalTag   LineType = "technical_tag"
	Untranslatable LineType = "untranslatable"
)

var (
	reMusic         = regexp.MustCompile(`^[♪♫🎵🎶]+.*[♪♫🎵🎶]+$`)
	reSoundBracket  = regexp.MustCompile(`^[\[(]([^\])]+)[\])]$`)
	reSoundAsterisk = regexp.MustCompile(`^\*([^*]+)\*$`)
	reASSFullTag    = regexp.MustCompile(`^\{[^}]+\}$`)
	reOnlyPunct     = regexp.MustCompile(`^[\s\W]+$`)
	reSoundWords    = regexp.MustCompile(`(?i)^[\[(]?\s*(` +
		`sighs?|gasps?|groans?|screams?|laughs?|coughs?|sobs?|sniffs?|` +
		`chuckles?|giggles?|whispers?|shouts?|yells?|cries?|moans?|` +
		`grunts?|snores?|growls?|hums?|whistles?|claps?|knocks?|` +
		`footsteps|gunshots?|explosions?|thunder|wind|rain|door|phone|` +
		`music playing|indistinct chatter|crowd cheering|alarm|siren|` +
		`breathing|panting|stammering|stuttering|` +
		`ringing|beeping|buzzing|ticking|clicking|creaking|` +
		`applause|laughter|silence|static|` +
		`speaking [a-z]+|talking|singing|crying|sobbing|wailing|` +
		`inhales?|exhales?` +
		`)\s*[\])]?\s*$`)
)

// onomatopoeia holds anime/series sound words that must pass through
// unmodified rather than be fed to a backend.
var onomatopoeia = map[string]bool{
	"bang": true, "boom": true, "pow": true, "crash": true, "splash": true,
	"thud": true, "whoosh": true, "buzz": true, "hiss": true, "click": true,
	"clack": true, "snap": true, "crack": true, "pop": true, "thump": true,
	"slam": true, "screech": true, "rumble": true, "clang": true, "swoosh": true,
	"whack": true, "zap": true, "beep": true, "boing": true, "ding": true,
	"dong": true, "wham": true, "zoom": true, "vroom": true,
}

// japaneseKeep holds Japanese terms that must be preserved, not translated.
var japaneseKeep = map[string]bool{
	"bankai": true, "sharingan": true, "rasengan": true, "kamehameha": true,
	"jutsu": true, "chakra": true, "senpai": true, "sensei": true, "sama": true,
	"kun": true, "chan": true, "san": true, "dono": true, "nani": true,
	"baka": true, "sugoi": true, "kawaii": true, "yatta": true, "ganbatte": true,
	"itadakimasu": true, "gochisousama": true, "tadaima": true, "okaeri": true,
	"ohayo": true, "konnichiwa": true, "konbanwa": true, "sayonara": true, "matte": true,
}

// Classifier assigns each subtitle line its handling strategy:
// DIALOGUE goes to the backend, SOUND_EFFECT is resolved via the
// bundled dictionary, MUSIC_LYRICS and UNTRANSLATABLE pass through, and
// TECHNICAL_TAG never leaves the pipeline at all.
type Classifier struct {
	sfx map[string]string
}

// New returns a Classifier loaded with the bundled sound-effect dictionary.
func New() *Classifier {
	return &Classifier{sfx: soundEffectTranslations}
}

// Classify inspects one line of text and returns its type plus the text to
// carry forward: for SOUND_EFFECT that text is already the translation; for
// TECHNICAL_TAG and UNTRANSLATABLE it is the original text; for DIALOGUE and
// MUSIC_LYRICS it is the trimmed text. The rule order below is load-bearing:
// a technical tag must never fall through to the dialogue default.
func (c *Classifier) Classify(text string) (LineType, string) {
	if strings.TrimSpace(text) == "" {
		return Untranslatable, text
	}

	stripped := strings.TrimSpace(text)

	// 1. Pure ASS technical tag, no visible text.
	if reASSFullTag.MatchString(stripped) {
		return TechnicalTag, text
	}

	// 2. Only punctuation/symbols.
	if reOnlyPunct.MatchString(stripped) {
		return Untranslatable, text
	}

	// 3. Music delimited by note glyphs.
	if reMusic.MatchString(stripped) || (strings.HasPrefix(stripped, "♪") && strings.HasSuffix(stripped, "♪")) {
		return MusicLyrics, stripped
	}

	// 4. Sound effect in brackets/parens: [door creaking], (sighs)
	if m := reSoundBracket.FindStringSubmatch(stripped); m != nil {
		inner := strings.ToLower(strings.TrimSpace(m[1]))
		translated := c.translateSoundEffect(inner)
		openCh, closeCh := stripped[:1], stripped[len(stripped)-1:]
		if translated != inner {
			return SoundEffect, openCh + translated + closeCh
		}
		if reSoundWords.MatchString(stripped) {
			return SoundEffect, openCh + c.translateSoundEffect(inner) + closeCh
		}
	}

	// 5. Sound effect between asterisks: *sighs*
	if m := reSoundAsterisk.FindStringSubmatch(stripped); m != nil {
		inner := strings.ToLower(strings.TrimSpace(m[1]))
		return SoundEffect, "*" + c.translateSoundEffect(inner) + "*"
	}

	// 6. Bare sound-effect word, no delimiters.
	if reSoundWords.MatchString(stripped) {
		inner := strings.ToLower(strings.Trim(stripped, "[]() "))
		return SoundEffect, c.translateSoundEffect(inner)
	}

	// 7. Pure onomatopoeia.
	if onomatopoeia[strings.ToLower(strings.Trim(stripped, "!. "))] {
		return Untranslatable, text
	}

	// 8. Preserved Japanese term.
	if japaneseKeep[strings.ToLower(strings.Trim(stripped, "!. "))] {
		return Untranslatable, text
	}

	// 9. Too short to carry translatable content.
	alphaCount := 0
	for _, r := range stripped {
		if unicode.IsLetter(r) {
			alphaCount++
		}
	}
	if alphaCount < 2 {
		return Untranslatable, text
	}

	// 10. Default: dialogue.
	return Dialogue, stripped
}

// translateSoundEffect resolves a sound-effect phrase via direct lookup,
// falling back to word-by-word substitution, and returns the original text
// untouched when no entry matches.
func (c *Classifier) translateSoundEffect(effectText string) string {
	effectLower := strings.ToLower(strings.TrimSpace(effectText))

	if translated, ok := c.sfx[effectLower]; ok {
		return translated
	}

	words := strings.Fields(effectLower)
	changed := false
	for i, w := range words {
		if t, ok := c.sfx[w]; ok {
			words[i] = t
			changed = true
		}
	}
	if changed {
		return strings.Join(words, " ")
	}

	return effectText
}

// ClassifyBatch classifies multiple lines at once.
func (c *Classifier) ClassifyBatch(texts []string) []LineType {
	types := make([]LineType, len(texts))
	for i, t := range texts {
		typ, _ := c.Classify(t)
		types[i] = typ
	}
	return types
}
