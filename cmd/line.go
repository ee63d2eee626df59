// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/bitlink/internal/config"
	"github.com/Thermoquad/bitlink/pkg/trace"
	"github.com/Thermoquad/bitlink/pkg/wire"
	"golang.org/x/term"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("BITLINK_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// stdinIsTerminal reports whether the operator is typing on a terminal
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// OpenLine opens the line selected by cfg and describes it
func OpenLine(ctx context.Context, cfg config.LineConfig) (wire.Line, string, error) {
	switch cfg.Backend {
	case config.BackendSim:
		return wire.NewSimLine(), "Simulated loopback line", nil

	case config.BackendSerial:
		line, err := wire.OpenSerialLine(cfg.Port, cfg.Baud)
		if err != nil {
			return nil, "", err
		}
		return line, fmt.Sprintf("Serial: %s (RTS out, CTS in)", cfg.Port), nil

	case config.BackendGPIO:
		line, err := wire.OpenGPIOLine(cfg.TxPin, cfg.RxPin)
		if err != nil {
			return nil, "", err
		}
		return line, fmt.Sprintf("GPIO: tx=%d rx=%d", cfg.TxPin, cfg.RxPin), nil

	case config.BackendWS:
		password := ""
		if cfg.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		line, err := wire.DialWSLine(ctx, cfg.URL, cfg.Username, password, cfg.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return line, fmt.Sprintf("WebSocket: %s", cfg.URL), nil
	}

	return nil, "", fmt.Errorf("unknown line backend %q", cfg.Backend)
}

// openTrace creates the sample trace when a path is configured. The
// returned close function flushes and closes the file.
func openTrace(cfg config.Config) (*trace.Recorder, func() error, error) {
	if cfg.Trace.Path == "" {
		return nil, func() error { return nil }, nil
	}

	f, err := os.Create(cfg.Trace.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	rec, err := trace.NewRecorder(f, cfg.Period)
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	closeFn := func() error {
		flushErr := rec.Flush()
		closeErr := f.Close()
		if flushErr != nil {
			return flushErr
		}
		return closeErr
	}
	return rec, closeFn, nil
}
