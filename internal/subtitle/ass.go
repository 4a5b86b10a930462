package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// parseASS parses Advanced SubStation Alpha content: [Script Info]/[V4+
// Styles] material is preserved verbatim as Header, the [Events] Format:
// line is preserved verbatim as EventsFormat, and each Dialogue: row is
// split into its 9 leading comma-delimited fields plus Text (grounded on
// the SplitN(...,10) approach below).
func parseASS(path string, r io.Reader) (*File, error) {
	sf := &File{Format: FormatASS}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var header strings.Builder
	inEvents := false
	idx := 0

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimRight(line, "\r")

		lower := strings.ToLower(strings.TrimSpace(trimmed))
		if lower == "[events]" {
			inEvents = true
			header.WriteString(trimmed)
			header.WriteString("\n")
			continue
		}
		if !inEvents {
			header.WriteString(trimmed)
			header.WriteString("\n")
			continue
		}

		if strings.HasPrefix(trimmed, "Format:") {
			sf.EventsFormat = trimmed
			continue
		}

		if !strings.HasPrefix(trimmed, "Dialogue:") {
			// Comment:, Picture:, blank lines, or a new [Section] after
			// Events are dropped wherever they appear and are not
			// written back; only Dialogue rows round-trip through
			// translation.
			continue
		}

		idx++
		entry, err := parseDialogueLine(path, idx, trimmed)
		if err != nil {
			return nil, err
		}
		sf.Entries = append(sf.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}

	sf.Header = header.String()
	return sf, nil
}

// parseDialogueLine splits one "Dialogue:" row into its fixed fields plus
// Text, mirroring libass's 10-field layout:
// Layer,Start,End,Style,Name,MarginL,MarginR,MarginV,Effect,Text
func parseDialogueLine(path string, idx int, line string) (Entry, error) {
	rest := strings.TrimPrefix(line, "Dialogue:")
	rest = strings.TrimPrefix(rest, " ")
	fields := strings.SplitN(rest, ",", 10)
	if len(fields) != 10 {
		return Entry{}, &ParseError{Path: path, Reason: fmt.Sprintf("dialogue line %d has %d fields, want 10", idx, len(fields))}
	}

	layer, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return Entry{}, &ParseError{Path: path, Reason: fmt.Sprintf("dialogue line %d: bad layer %q", idx, fields[0])}
	}
	startMS, err := parseASSTimestamp(fields[1])
	if err != nil {
		return Entry{}, &ParseError{Path: path, Reason: fmt.Sprintf("dialogue line %d: malformed start timestamp %q", idx, fields[1])}
	}
	endMS, err := parseASSTimestamp(fields[2])
	if err != nil {
		return Entry{}, &ParseError{Path: path, Reason: fmt.Sprintf("dialogue line %d: malformed end timestamp %q", idx, fields[2])}
	}
	marginL, _ := strconv.Atoi(strings.TrimSpace(fields[5]))
	marginR, _ := strconv.Atoi(strings.TrimSpace(fields[6]))
	marginV, _ := strconv.Atoi(strings.TrimSpace(fields[7]))

	rawText := fields[9]
	plain, overrides := extractPlainText(rawText)
	if plain == "" && rawText != "" {
		plain = rawText
	}

	return Entry{
		Index:     idx,
		Layer:     layer,
		Style:     fields[3],
		Name:      fields[4],
		MarginL:   marginL,
		MarginR:   marginR,
		MarginV:   marginV,
		Effect:    fields[8],
		StartMS:   startMS,
		EndMS:     endMS,
		StartRaw:  strings.TrimSpace(fields[1]),
		EndRaw:    strings.TrimSpace(fields[2]),
		RawText:   rawText,
		PlainText: plain,
		Overrides: overrides,
	}, nil
}

// parseASSTimestamp parses ASS's H:MM:SS.cc (centisecond) time format.
func parseASSTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return 0, fmt.Errorf("expected H:MM:SS.cc, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	secParts := strings.SplitN(parts[2], ".", 2)
	sec, err := strconv.Atoi(secParts[0])
	if err != nil {
		return 0, err
	}
	cs := 0
	if len(secParts) == 2 {
		cs, err = strconv.Atoi(secParts[1])
		if err != nil {
			return 0, err
		}
	}
	return int64(h)*3600000 + int64(m)*60000 + int64(sec)*1000 + int64(cs)*10, nil
}

// formatASSTimestamp renders milliseconds back into ASS's H:MM:SS.cc form.
func formatASSTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	cs := ms / 10
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

// emitASS reconstructs an ASS document: the preserved Header (through
// [Events]), the preserved Format: line, then one Dialogue: row per entry
// with Text swapped for the translated plain text (overrides reattached).
func emitASS(header, eventsFormat string, entries []Entry, translated []string) string {
	var sb strings.Builder
	sb.WriteString(header)
	if eventsFormat != "" {
		sb.WriteString(eventsFormat)
		sb.WriteString("\n")
	}

	for i, e := range entries {
		text := e.RawText
		if i < len(translated) {
			text = Replace(e, translated[i])
		}
		start := e.StartRaw
		if start == "" {
			start = formatASSTimestamp(e.StartMS)
		}
		end := e.EndRaw
		if end == "" {
			end = formatASSTimestamp(e.EndMS)
		}
		fmt.Fprintf(&sb, "Dialogue: %d,%s,%s,%s,%s,%d,%d,%d,%s,%s\n",
			e.Layer, start, end, e.Style, e.Name, e.MarginL, e.MarginR, e.MarginV, e.Effect, text)
	}
	return sb.String()
}
