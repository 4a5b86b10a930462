package subtitle

import (
	"strings"
	"testing"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:02,500
Hello there.

2
00:00:03,000 --> 00:00:04,000
[door creaks]
*gasp*

`

const sampleASS = `[Script Info]
Title: sample
ScriptType: v4.00+

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: 0,0:00:01.00,0:00:02.50,Default,,0,0,0,,{\an8}Hello there.
Dialogue: 0,0:00:03.00,0:00:04.00,Default,,0,0,0,,Second line.
`

func TestParseSRTBasic(t *testing.T) {
	f, err := Extract("sample.srt", sampleSRT)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if f.Format != FormatSRT {
		t.Fatalf("expected FormatSRT, got %v", f.Format)
	}
	if len(f.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(f.Entries))
	}
	if f.Entries[0].StartMS != 1000 || f.Entries[0].EndMS != 2500 {
		t.Errorf("unexpected timestamps: %d %d", f.Entries[0].StartMS, f.Entries[0].EndMS)
	}
	if f.Entries[0].PlainText != "Hello there." {
		t.Errorf("unexpected plain text: %q", f.Entries[0].PlainText)
	}
}

func TestParseSRTMalformedTimestamp(t *testing.T) {
	bad := "1\nnot-a-timestamp\ntext\n\n"
	_, err := Extract("bad.srt", bad)
	if err == nil {
		t.Fatal("expected ParseError for malformed timestamp")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("expected *ParseError, got %T", err)
	}
}

func TestSRTRoundTripPreservesCount(t *testing.T) {
	f, err := Extract("sample.srt", sampleSRT)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	translated := make([]string, len(f.Entries))
	for i, e := range f.Entries {
		translated[i] = e.PlainText
	}
	out := Emit(f, translated)

	f2, err := Extract("sample.srt", out)
	if err != nil {
		t.Fatalf("re-Extract failed: %v", err)
	}
	if len(f2.Entries) != len(f.Entries) {
		t.Fatalf("round trip changed entry count: %d vs %d", len(f2.Entries), len(f.Entries))
	}
	for i := range f.Entries {
		if f2.Entries[i].StartMS != f.Entries[i].StartMS || f2.Entries[i].EndMS != f.Entries[i].EndMS {
			t.Errorf("entry %d: timestamps changed on round trip", i)
		}
	}
}

func TestParseASSBasic(t *testing.T) {
	f, err := Extract("sample.ass", sampleASS)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if f.Format != FormatASS {
		t.Fatalf("expected FormatASS, got %v", f.Format)
	}
	if len(f.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(f.Entries))
	}
	if !strings.Contains(f.Header, "[Script Info]") {
		t.Error("expected header to preserve [Script Info]")
	}
	if f.EventsFormat == "" {
		t.Error("expected EventsFormat to be captured")
	}
}

func TestASSOverrideBlockPreservedAndStripped(t *testing.T) {
	f, err := Extract("sample.ass", sampleASS)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	first := f.Entries[0]
	if first.PlainText != "Hello there." {
		t.Errorf("expected override block stripped from plain text, got %q", first.PlainText)
	}
	if len(first.Overrides) != 1 || first.Overrides[0] != `{\an8}` {
		t.Errorf("expected override block preserved, got %v", first.Overrides)
	}

	replaced := Replace(first, "Ola.")
	if replaced != `{\an8}Ola.` {
		t.Errorf("expected override block reattached as prefix, got %q", replaced)
	}
}

func TestASSRoundTripPreservesTimestampsAndFields(t *testing.T) {
	f, err := Extract("sample.ass", sampleASS)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	translated := make([]string, len(f.Entries))
	for i, e := range f.Entries {
		translated[i] = e.PlainText
	}
	out := Emit(f, translated)

	f2, err := Extract("sample.ass", out)
	if err != nil {
		t.Fatalf("re-Extract failed: %v", err)
	}
	if len(f2.Entries) != len(f.Entries) {
		t.Fatalf("round trip changed entry count: %d vs %d", len(f2.Entries), len(f.Entries))
	}
	for i := range f.Entries {
		if f2.Entries[i].StartMS != f.Entries[i].StartMS {
			t.Errorf("entry %d: start timestamp changed on round trip", i)
		}
		if f2.Entries[i].Style != f.Entries[i].Style {
			t.Errorf("entry %d: style changed on round trip", i)
		}
	}
}

func TestExtractRejectsUnknownFormat(t *testing.T) {
	_, err := Extract("video.sub", "whatever")
	if err == nil {
		t.Fatal("expected FormatMismatch for .sub")
	}
	if _, ok := err.(*FormatMismatch); !ok {
		t.Errorf("expected *FormatMismatch, got %T", err)
	}
}

func TestEmitPartialTranslationKeepsRemainingRaw(t *testing.T) {
	f, err := Extract("sample.srt", sampleSRT)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	out := Emit(f, []string{"Ola ai."})
	if !strings.Contains(out, "Ola ai.") {
		t.Errorf("expected translated first line present, got:\n%s", out)
	}
	if !strings.Contains(out, "door creaks") {
		t.Errorf("expected untranslated second entry preserved raw, got:\n%s", out)
	}
}
