package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestFields_SkipsBadKeysAndOddTail(t *testing.T) {
	t.Parallel()

	got := fields("rule_id", 7, 42, "ignored", "dangling")
	if len(got) != 1 {
		t.Fatalf("expected 1 field, got %d (%v)", len(got), got)
	}
	if got["rule_id"] != 7 {
		t.Fatalf("unexpected rule_id: %v", got["rule_id"])
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]Level{
		"debug":  LevelDebug,
		" ERROR": LevelError,
		"info":   LevelInfo,
		"trace":  LevelInfo,
		"":       LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelError)
	t.Cleanup(func() {
		SetLevel(LevelInfo)
		SetOutput(os.Stderr)
	})

	Info("hidden", "k", "v")
	Error("shown", errors.New("boom"), "rule_id", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "rule_id=3") || !strings.Contains(out, "boom") {
		t.Fatalf("missing error line content: %s", out)
	}
}
