// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads bitlink settings from a TOML file over built-in
// defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/Thermoquad/bitlink/pkg/link"
)

// Line backends
const (
	BackendSim    = "sim"
	BackendSerial = "serial"
	BackendGPIO   = "gpio"
	BackendWS     = "ws"
)

// Config holds everything needed to open a line and run a link
type Config struct {
	Period     time.Duration
	QueueDepth int
	Line       LineConfig
	Trace      TraceConfig
}

type LineConfig struct {
	Backend     string
	Port        string // serial device
	Baud        int
	TxPin       int // sysfs GPIO numbers
	RxPin       int
	URL         string // relay URL for the ws backend
	Username    string
	NoSSLVerify bool
}

type TraceConfig struct {
	Path string // CBOR sample trace, disabled when empty
}

type fileConfig struct {
	Period     string    `toml:"period"`
	QueueDepth int       `toml:"queue_depth"`
	Line       fileLine  `toml:"line"`
	Trace      fileTrace `toml:"trace"`
}

type fileLine struct {
	Backend     string `toml:"backend"`
	Port        string `toml:"port"`
	Baud        int    `toml:"baud"`
	TxPin       int    `toml:"tx_pin"`
	RxPin       int    `toml:"rx_pin"`
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	NoSSLVerify bool   `toml:"no_ssl_verify"`
}

type fileTrace struct {
	Path string `toml:"path"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Period:     link.DefaultPeriod,
		QueueDepth: bitlink.DefaultQueueCap,
		Line: LineConfig{
			Backend: BackendSerial,
			Baud:    115200,
		},
	}
}

// Load reads path and overlays the keys it defines on Default()
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("period") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Period))
		if err != nil {
			return Config{}, fmt.Errorf("parse period: %w", err)
		}
		cfg.Period = d
	}

	if meta.IsDefined("queue_depth") {
		cfg.QueueDepth = raw.QueueDepth
	}

	if meta.IsDefined("line", "backend") {
		cfg.Line.Backend = strings.ToLower(strings.TrimSpace(raw.Line.Backend))
	}

	if meta.IsDefined("line", "port") {
		cfg.Line.Port = strings.TrimSpace(raw.Line.Port)
	}

	if meta.IsDefined("line", "baud") {
		cfg.Line.Baud = raw.Line.Baud
	}

	if meta.IsDefined("line", "tx_pin") {
		cfg.Line.TxPin = raw.Line.TxPin
	}

	if meta.IsDefined("line", "rx_pin") {
		cfg.Line.RxPin = raw.Line.RxPin
	}

	if meta.IsDefined("line", "url") {
		cfg.Line.URL = strings.TrimSpace(raw.Line.URL)
	}

	if meta.IsDefined("line", "username") {
		cfg.Line.Username = strings.TrimSpace(raw.Line.Username)
	}

	if meta.IsDefined("line", "no_ssl_verify") {
		cfg.Line.NoSSLVerify = raw.Line.NoSSLVerify
	}

	if meta.IsDefined("trace", "path") {
		cfg.Trace.Path = strings.TrimSpace(raw.Trace.Path)
	}

	return cfg, nil
}

// Validate checks the settings needed by the selected backend
func (c Config) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("period must be positive, got %v", c.Period)
	}
	if c.QueueDepth < bitlink.MaxFrameSize {
		return fmt.Errorf("queue_depth must be at least %d, got %d", bitlink.MaxFrameSize, c.QueueDepth)
	}

	switch c.Line.Backend {
	case BackendSim:
	case BackendSerial:
		if c.Line.Port == "" {
			return fmt.Errorf("serial backend requires a port")
		}
		if c.Line.Baud <= 0 {
			return fmt.Errorf("baud must be positive, got %d", c.Line.Baud)
		}
	case BackendGPIO:
		if c.Line.TxPin < 0 || c.Line.RxPin < 0 {
			return fmt.Errorf("GPIO pins must not be negative")
		}
		if c.Line.TxPin == c.Line.RxPin {
			return fmt.Errorf("tx_pin and rx_pin must differ (both %d)", c.Line.TxPin)
		}
	case BackendWS:
		if c.Line.URL == "" {
			return fmt.Errorf("ws backend requires a url")
		}
	default:
		return fmt.Errorf("unknown line backend %q (use sim, serial, gpio or ws)", c.Line.Backend)
	}
	return nil
}

// LinkConfig returns the link settings. Logger, handler and tap are left
// for the caller.
func (c Config) LinkConfig() link.Config {
	lc := link.DefaultConfig()
	lc.Period = c.Period
	lc.QueueDepth = c.QueueDepth
	return lc
}
