package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var reSRTTime = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)

// parseSRTTimestamp parses one half of an SRT time range into milliseconds.
func parseSRTTimestamp(h, m, s, ms string) (int64, error) {
	hh, err := strconv.Atoi(h)
	if err != nil {
		return 0, err
	}
	mm, err := strconv.Atoi(m)
	if err != nil {
		return 0, err
	}
	ss, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	mmm, err := strconv.Atoi(ms)
	if err != nil {
		return 0, err
	}
	total := int64(hh)*3600000 + int64(mm)*60000 + int64(ss)*1000 + int64(mmm)
	return total, nil
}

// parseSRT parses SubRip content: blank-line-separated blocks of index,
// time range, and one or more text lines.
func parseSRT(path string, r io.Reader) (*File, error) {
	sf := &File{Format: FormatSRT}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	state := 0 // 0=index, 1=timing, 2=text
	var current Entry
	var textBuilder strings.Builder

	flush := func() {
		current.RawText = strings.TrimRight(textBuilder.String(), "\n")
		current.PlainText, current.Overrides = extractPlainText(current.RawText)
		if current.PlainText == "" && current.RawText != "" {
			current.PlainText = current.RawText
		}
		sf.Entries = append(sf.Entries, current)
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimRight(line, "\r")

		switch state {
		case 0:
			if strings.TrimSpace(trimmed) == "" {
				continue
			}
			idx, err := strconv.Atoi(strings.TrimSpace(trimmed))
			if err != nil {
				return nil, &ParseError{Path: path, Reason: fmt.Sprintf("expected cue index, got %q", trimmed)}
			}
			current = Entry{Index: idx}
			state = 1
		case 1:
			m := reSRTTime.FindStringSubmatch(trimmed)
			if m == nil {
				return nil, &ParseError{Path: path, Reason: fmt.Sprintf("malformed timestamp line %q", trimmed)}
			}
			start, err := parseSRTTimestamp(m[1], m[2], m[3], m[4])
			if err != nil {
				return nil, &ParseError{Path: path, Reason: "malformed start timestamp"}
			}
			end, err := parseSRTTimestamp(m[5], m[6], m[7], m[8])
			if err != nil {
				return nil, &ParseError{Path: path, Reason: "malformed end timestamp"}
			}
			current.StartMS, current.EndMS = start, end
			current.StartRaw = fmt.Sprintf("%s:%s:%s,%s", m[1], m[2], m[3], m[4])
			current.EndRaw = fmt.Sprintf("%s:%s:%s,%s", m[5], m[6], m[7], m[8])
			textBuilder.Reset()
			state = 2
		case 2:
			if strings.TrimSpace(trimmed) == "" {
				flush()
				state = 0
				continue
			}
			if textBuilder.Len() > 0 {
				textBuilder.WriteString("\n")
			}
			textBuilder.WriteString(trimmed)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}
	if state == 2 {
		flush()
	}

	return sf, nil
}

// formatSRTTimestamp renders milliseconds back into SRT's HH:MM:SS,mmm form.
func formatSRTTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// emitSRT reconstructs an SRT document from the original entries and the
// translated plain text to substitute for each (by index, same order).
func emitSRT(entries []Entry, translated []string) string {
	var sb strings.Builder
	for i, e := range entries {
		text := e.RawText
		if i < len(translated) {
			text = Replace(e, translated[i])
		}
		fmt.Fprintf(&sb, "%d\n", i+1)
		if e.StartRaw != "" {
			fmt.Fprintf(&sb, "%s --> %s\n", e.StartRaw, e.EndRaw)
		} else {
			fmt.Fprintf(&sb, "%s --> %s\n", formatSRTTimestamp(e.StartMS), formatSRTTimestamp(e.EndMS))
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
