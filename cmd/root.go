// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/bitlink/internal/config"
	"github.com/Thermoquad/bitlink/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	// Line selection flags
	backend string

	// Serial connection flags
	portName string
	baudRate int

	// GPIO flags
	txPin int
	rxPin int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Link timing flags
	period     time.Duration
	queueDepth int
	tracePath  string

	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bitlink",
	Short: "Single-wire text messaging link",
	Long: `Bitlink - Send short text messages between two boards over one signal line.

Each board drives its own output line and oversamples the peer's line. Lines
of up to 7 characters are framed, sent MSB first and decoded by a counter
driven frame validator on the other side.

Line backends:
  sim:     in-memory loopback, the board hears itself
  serial:  --port /dev/ttyUSB0 (RTS drives the line, CTS samples it)
  gpio:    --tx-pin 3 --rx-pin 2 (Linux sysfs GPIO)
  ws:      --url ws://host/wire [--username user] (virtual wire, see wire_serve)

Settings can also come from a TOML file (--config). Flags given on the
command line override the file.

For WebSocket authentication, the password is read from the BITLINK_PASSWORD
environment variable, or prompted interactively if not set.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.ConfigureRuntime()
		if cmd.Flags().Changed("log-level") {
			lvl, ok := logging.ParseLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}
			logging.SetLevel(lvl)
			logger = logger.Level(lvl)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, off)")

	rootCmd.PersistentFlags().StringVar(&backend, "backend", config.BackendSerial, "Line backend (sim, serial, gpio, ws)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// GPIO flags
	rootCmd.PersistentFlags().IntVar(&txPin, "tx-pin", 0, "GPIO number driving the line (gpio only)")
	rootCmd.PersistentFlags().IntVar(&rxPin, "rx-pin", 0, "GPIO number sampling the line (gpio only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "Wire relay URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Link flags
	rootCmd.PersistentFlags().DurationVar(&period, "period", 20*time.Millisecond, "Sample period T (bits are held 4T)")
	rootCmd.PersistentFlags().IntVar(&queueDepth, "queue-depth", 16, "Transmit byte queue capacity")
	rootCmd.PersistentFlags().StringVar(&tracePath, "trace", "", "Record received samples to a CBOR trace file")
}

// ExitError carries a process exit code out of a command
type ExitError struct {
	Code int
	Err  error
}

// Error returns the wrapped error text
func (e *ExitError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error
func (e *ExitError) Unwrap() error {
	return e.Err
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads --config when given, then applies flags the user set
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("period") {
		cfg.Period = period
	}
	if flags.Changed("queue-depth") {
		cfg.QueueDepth = queueDepth
	}
	if flags.Changed("port") {
		cfg.Line.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Line.Baud = baudRate
	}
	if flags.Changed("tx-pin") {
		cfg.Line.TxPin = txPin
	}
	if flags.Changed("rx-pin") {
		cfg.Line.RxPin = rxPin
	}
	if flags.Changed("url") {
		cfg.Line.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Line.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Line.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("trace") {
		cfg.Trace.Path = tracePath
	}

	// --url or --port alone pick their backend
	switch {
	case flags.Changed("backend"):
		cfg.Line.Backend = backend
	case flags.Changed("url"):
		cfg.Line.Backend = config.BackendWS
	case flags.Changed("port"):
		cfg.Line.Backend = config.BackendSerial
	}

	return cfg, nil
}
