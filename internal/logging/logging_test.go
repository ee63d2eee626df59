// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{"", zerolog.InfoLevel, false},
		{"trace", zerolog.TraceLevel, true},
		{" DEBUG ", zerolog.DebugLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"error", zerolog.ErrorLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "trace")
	t.Setenv(EnvLogNoColor, "true")

	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.TraceLevel {
		t.Errorf("Level = %v, want trace", cfg.Level)
	}
	if !cfg.NoColor {
		t.Error("NoColor should be set from environment")
	}
	if !cfg.Timestamp {
		t.Error("runtime profile should keep timestamps")
	}
}

func TestApplyEnvOverrides_IgnoresGarbage(t *testing.T) {
	t.Setenv(EnvLogLevel, "loud")
	t.Setenv(EnvLogNoColor, "maybe")

	cfg := defaultConfig(ProfileTest)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.DebugLevel {
		t.Errorf("Level = %v, want debug", cfg.Level)
	}
	if !cfg.NoColor {
		t.Error("test profile disables color")
	}
}

func TestNew_WritesToOut(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: zerolog.InfoLevel, NoColor: true, Out: &buf})

	logger.Debug().Msg("hidden")
	logger.Info().Str("port", "/dev/ttyUSB0").Msg("line open")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message leaked at info level: %q", out)
	}
	if !strings.Contains(out, "line open") || !strings.Contains(out, "port=/dev/ttyUSB0") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestConfigureTests(t *testing.T) {
	saved := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(saved)
	t.Setenv(EnvLogLevel, "warn")

	logger := ConfigureTests()
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("logger level = %v, want warn from env", logger.GetLevel())
	}
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Errorf("global level = %v, want warn", zerolog.GlobalLevel())
	}

	// Later calls keep the first configuration
	if again := ConfigureRuntime(); again.GetLevel() != zerolog.WarnLevel {
		t.Errorf("second Configure changed level to %v", again.GetLevel())
	}
}
