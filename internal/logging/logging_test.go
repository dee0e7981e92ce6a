package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", "json", &buf)

	log.Info().Str("run", "s1").Msg("started")

	out := buf.String()
	if !strings.Contains(out, `"level":"info"`) || !strings.Contains(out, `"run":"s1"`) {
		t.Errorf("JSON output = %q, want level and field encoded", out)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", "json", &buf)

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line emitted at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn line missing")
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New("verbose", "json", &buf)

	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info fallback", log.GetLevel())
	}
}
