package matcher

import (
	"strings"
	"testing"
)

const sampleSRT = "1\n00:00:01,000 --> 00:00:03,000\nHello there.\n\n2\n00:00:04,500 --> 00:00:06,000\nGeneral Kenobi.\n\n3\n00:00:07,000 --> 00:00:09,000\nSubtitles by OpenSubtitles.org\n"

func TestCleanSRTDropsAdvertisementBlock(t *testing.T) {
	cleaned := cleanSRT([]byte(sampleSRT))
	if strings.Contains(string(cleaned), "OpenSubtitles") {
		t.Error("advertisement block survived cleaning")
	}
	if !strings.Contains(string(cleaned), "General Kenobi") {
		t.Error("dialogue block was dropped by cleaning")
	}
}

func TestPlainTextFromSRT(t *testing.T) {
	text := plainTextFromSRT(cleanSRT([]byte(sampleSRT)))
	if !strings.Contains(text, "Hello there.") || !strings.Contains(text, "General Kenobi.") {
		t.Errorf("plainTextFromSRT = %q, missing expected dialogue", text)
	}
}

func TestParseSRTTimestamp(t *testing.T) {
	got, err := parseSRTTimestamp("00:01:02,500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 62.5
	if got != want {
		t.Errorf("parseSRTTimestamp = %v, want %v", got, want)
	}
}

func TestCueStartSeconds(t *testing.T) {
	starts := cueStartSeconds([]byte(sampleSRT))
	if len(starts) != 3 {
		t.Fatalf("len(starts) = %d, want 3", len(starts))
	}
	if starts[0] != 1 {
		t.Errorf("starts[0] = %v, want 1", starts[0])
	}
}
