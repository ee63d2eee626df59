// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/Thermoquad/bitlink/pkg/link"
	"github.com/Thermoquad/bitlink/pkg/wire"
	"github.com/spf13/cobra"
)

var (
	loopbackTimeout int
	loopbackText    string
	loopbackNoise   float64
	loopbackSeed    int64
)

var loopbackCmd = &cobra.Command{
	Use:   "loopback",
	Short: "Self-test the link over a simulated line",
	Long: `Send one message over an in-memory line looped back to the same board and
wait for the validator to decode it.

--noise flips each sample with the given probability to exercise the
oversampling decision and resynchronization.

Exit codes:
  0 - Message decoded before timeout
  1 - Timeout reached without decoding the message
  2 - Setup error`,
	RunE:          runLoopback,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(loopbackCmd)
	loopbackCmd.Flags().IntVar(&loopbackTimeout, "timeout", 10, "Timeout in seconds to wait for the message")
	loopbackCmd.Flags().StringVar(&loopbackText, "text", "HI", "Message to send (up to 7 characters)")
	loopbackCmd.Flags().Float64Var(&loopbackNoise, "noise", 0, "Probability of flipping each sample (0 to 1)")
	loopbackCmd.Flags().Int64Var(&loopbackSeed, "seed", 1, "Noise random seed")
}

func runLoopback(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Setup error: %v\n", err)
		return &ExitError{Code: 2, Err: err}
	}
	if loopbackNoise < 0 || loopbackNoise > 1 {
		err := fmt.Errorf("noise must be between 0 and 1")
		fmt.Fprintf(os.Stderr, "Setup error: %v\n", err)
		return &ExitError{Code: 2, Err: err}
	}

	frame, err := bitlink.BuildFrame([]byte(loopbackText))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Setup error: %v\n", err)
		return &ExitError{Code: 2, Err: err}
	}

	line := wire.NewSimLine()
	if loopbackNoise > 0 {
		line.SetNoise(loopbackNoise, loopbackSeed)
	}
	defer line.Close()

	msgChan := make(chan *bitlink.Message, 1)
	lc := cfg.LinkConfig()
	lc.Logger = logger.With().Str("line", "loopback").Logger()
	lc.Handler = link.HandleMessageFunc(func(m *bitlink.Message) {
		select {
		case msgChan <- m:
		default:
		}
	})

	l, err := link.New(line, line, lc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Setup error: %v\n", err)
		return &ExitError{Code: 2, Err: err}
	}

	fmt.Printf("Bitlink - Loopback Test\n")
	fmt.Printf("Period: %v (bit time %v)\n", cfg.Period, cfg.Period*bitlink.SamplesPerBit)
	fmt.Printf("Noise: %.3f\n", loopbackNoise)
	fmt.Printf("Timeout: %d seconds\n", loopbackTimeout)
	fmt.Printf("Sending %q...\n\n", loopbackText)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- l.Run(ctx)
	}()

	start := time.Now()
	if err := l.Submit(ctx, frame); err != nil {
		fmt.Fprintf(os.Stderr, "Setup error: %v\n", err)
		return &ExitError{Code: 2, Err: err}
	}

	select {
	case m := <-msgChan:
		cancel()
		fmt.Printf("%s\n\n", bitlink.FormatMessage(m))
		fmt.Print(l.Statistics().String())
		if m.Text != loopbackText {
			fmt.Fprintf(os.Stderr, "MISMATCH: sent %q, decoded %q after %v\n", loopbackText, m.Text, time.Since(start).Round(time.Millisecond))
			return &ExitError{Code: 1, Err: fmt.Errorf("decoded %q", m.Text)}
		}
		fmt.Printf("SUCCESS: decoded after %v\n", time.Since(start).Round(time.Millisecond))
		return nil

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Link error: %v\n", err)
		return &ExitError{Code: 2, Err: err}

	case <-time.After(time.Duration(loopbackTimeout) * time.Second):
		fmt.Print(l.Statistics().String())
		fmt.Fprintf(os.Stderr, "TIMEOUT: No message decoded within %d seconds\n", loopbackTimeout)
		return &ExitError{Code: 1, Err: fmt.Errorf("no message within %d seconds", loopbackTimeout)}
	}
}
