package sysutil

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetLogLevel_AllVariants(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"  DeBuG  ", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tc := range cases {
		got := SetLogLevel(tc.in)
		if got != tc.want || zerolog.GlobalLevel() != tc.want {
			t.Fatalf("SetLogLevel(%q) -> %v (global %v); want %v", tc.in, got, zerolog.GlobalLevel(), tc.want)
		}
	}
}

func restoreLogging(t *testing.T) {
	t.Helper()
	lvl, global, def := zerolog.GlobalLevel(), log.Logger, zerolog.DefaultContextLogger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(lvl)
		log.Logger = global
		zerolog.DefaultContextLogger = def
	})
}

func TestConfigureLogger_JSONFieldsAndContextFallback(t *testing.T) {
	restoreLogging(t)

	var buf bytes.Buffer
	ConfigureLogger(LoggerOptions{Level: "info", Service: "lms", Version: "v1.2.0", Out: &buf})

	zerolog.Ctx(context.Background()).Info().Msg("sweeper tick")
	log.Debug().Msg("filtered out")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %d; want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["service"] != "lms" || entry["version"] != "v1.2.0" || entry["message"] != "sweeper tick" {
		t.Fatalf("entry = %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatalf("missing timestamp: %v", entry)
	}
}

func TestConfigureLogger_Pretty(t *testing.T) {
	restoreLogging(t)

	var buf bytes.Buffer
	l := ConfigureLogger(LoggerOptions{Level: "debug", Pretty: true, Out: &buf})
	l.Debug().Str("order", "order_1").Msg("settled")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("pretty output looks like JSON: %q", out)
	}
	if !strings.Contains(out, "settled") || !strings.Contains(out, "order_1") {
		t.Fatalf("output = %q", out)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty(); got != "" {
		t.Fatalf("FirstNonEmpty() = %q; want \"\"", got)
	}
	if got := FirstNonEmpty(" ", "\t", "\n"); got != "" {
		t.Fatalf("FirstNonEmpty(blanks) = %q; want \"\"", got)
	}
	// the winner is returned as given
	if got := FirstNonEmpty("   ", "  v1.0.0  ", "dev"); got != "  v1.0.0  " {
		t.Fatalf("FirstNonEmpty(...) = %q", got)
	}
	if got := FirstNonEmpty("v2", "dev"); got != "v2" {
		t.Fatalf("FirstNonEmpty(...) = %q", got)
	}
}
