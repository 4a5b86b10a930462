package subtitle

import (
	"path/filepath"
	"strings"
)

// Extract parses the named subtitle file's content and returns its format
// and cues, dispatching on file extension.
// Callers handing it anything other than .srt/.ass/.ssa (e.g. .sub, still muxed
// in a container) get FormatMismatch: extraction to .srt/.ass is the
// responsibility of the out-of-scope SubtitleSource collaborator.
func Extract(path string, content string) (*File, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".srt":
		return parseSRT(path, strings.NewReader(content))
	case ".ass", ".ssa":
		return parseASS(path, strings.NewReader(content))
	default:
		return nil, &FormatMismatch{Path: path, Ext: ext}
	}
}

// Emit reconstructs a subtitle document in f's original format, substituting
// translated[i] as the new plain text for f.Entries[i]. len(translated) may
// be less than len(f.Entries); any entries beyond it keep their RawText
// unchanged (used when a batch only covers a subset of a file's lines).
func Emit(f *File, translated []string) string {
	switch f.Format {
	case FormatASS:
		return emitASS(f.Header, f.EventsFormat, f.Entries, translated)
	default:
		return emitSRT(f.Entries, translated)
	}
}
