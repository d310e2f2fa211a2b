package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, c := range cases {
		if got := ParseLevel(c.in); got != c.want {
			t.Errorf("ParseLevel(%q): want %s, got %s", c.in, c.want, got)
		}
	}
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Output: &buf})

	log.Debug().Msg("hidden")
	log.Warn().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line must be filtered at warn level")
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn line must be emitted, got %q", out)
	}
}

func TestNew_EmitsJSONWithTimestamp(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf})

	log.Info().Str("flag_key", "beta").Msg("flag evaluated")

	out := buf.String()
	for _, field := range []string{`"time"`, `"flag_key":"beta"`, `"message":"flag evaluated"`} {
		if !strings.Contains(out, field) {
			t.Errorf("expected %s in output, got %q", field, out)
		}
	}
}
