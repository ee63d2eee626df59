// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bitlink.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_OverlaysDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
period = "5ms"

[line]
backend = "GPIO"
tx_pin = 35
rx_pin = 34

[trace]
path = "/tmp/rx.cbor"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	def := Default()
	if cfg.Period != 5*time.Millisecond {
		t.Errorf("Period = %v, want 5ms", cfg.Period)
	}
	if cfg.QueueDepth != def.QueueDepth {
		t.Errorf("QueueDepth = %d, want default %d", cfg.QueueDepth, def.QueueDepth)
	}
	if cfg.Line.Backend != BackendGPIO {
		t.Errorf("Backend = %q, want gpio", cfg.Line.Backend)
	}
	if cfg.Line.TxPin != 35 || cfg.Line.RxPin != 34 {
		t.Errorf("pins = %d/%d, want 35/34", cfg.Line.TxPin, cfg.Line.RxPin)
	}
	if cfg.Line.Baud != def.Line.Baud {
		t.Errorf("Baud = %d, want default %d", cfg.Line.Baud, def.Line.Baud)
	}
	if cfg.Trace.Path != "/tmp/rx.cbor" {
		t.Errorf("Trace.Path = %q", cfg.Trace.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad duration", `period = "fast"`, "parse period"},
		{"unknown key", "colour = \"blue\"", "unknown key"},
		{"bad syntax", "period = ", "load config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"serial without port", func(c *Config) {}, false},
		{"serial with port", func(c *Config) { c.Line.Port = "/dev/ttyUSB0" }, true},
		{"sim", func(c *Config) { c.Line.Backend = BackendSim }, true},
		{"zero period", func(c *Config) { c.Line.Backend = BackendSim; c.Period = 0 }, false},
		{"short queue", func(c *Config) { c.Line.Backend = BackendSim; c.QueueDepth = 4 }, false},
		{"gpio same pins", func(c *Config) { c.Line.Backend = BackendGPIO }, false},
		{"gpio", func(c *Config) { c.Line.Backend = BackendGPIO; c.Line.TxPin = 3 }, true},
		{"ws without url", func(c *Config) { c.Line.Backend = BackendWS }, false},
		{"ws", func(c *Config) { c.Line.Backend = BackendWS; c.Line.URL = "ws://localhost/wire" }, true},
		{"unknown backend", func(c *Config) { c.Line.Backend = "pigeon" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLinkConfig(t *testing.T) {
	cfg := Default()
	cfg.Period = 3 * time.Millisecond
	cfg.QueueDepth = 32

	lc := cfg.LinkConfig()
	if lc.Period != cfg.Period || lc.QueueDepth != 32 {
		t.Errorf("LinkConfig = %+v", lc)
	}
	if err := lc.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}
