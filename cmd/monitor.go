// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/Thermoquad/bitlink/pkg/link"
	"github.com/spf13/cobra"
)

var monitorStatsInterval int

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Passively decode frames seen on the line",
	Long: `Continuously sample the line and print every frame the validator decodes,
without ever transmitting.

Unlike chat, the receiver never parks after a message and never realigns its
sampling to a transmission, so frames are only decoded while the sampling
phase stays inside each bit. Use --log-level debug to see resyncs.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 0, "Print statistics every N seconds (0 disables)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	line, connInfo, err := OpenLine(cmd.Context(), cfg.Line)
	if err != nil {
		return err
	}
	defer line.Close()

	rec, closeTrace, err := openTrace(cfg)
	if err != nil {
		return err
	}
	defer closeTrace()

	fmt.Printf("Bitlink - Line Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := link.NewStatistics()
	lc := cfg.LinkConfig()
	lc.Logger = logger.With().Str("line", cfg.Line.Backend).Logger()
	lc.Handler = link.HandleMessageFunc(func(m *bitlink.Message) {
		fmt.Printf("[%s] %s\n", m.Timestamp.Format("15:04:05.000"), bitlink.FormatMessage(m))
	})
	if rec != nil {
		lc.Tap = rec
	}

	ctx, cancel := signalContext()
	defer cancel()

	if monitorStatsInterval > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(monitorStatsInterval) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					fmt.Println()
					fmt.Print(stats.String())
					fmt.Println()
				}
			}
		}()
	}

	err = link.Monitor(ctx, line, lc, stats)
	if errors.Is(err, context.Canceled) {
		fmt.Println()
		fmt.Print(stats.String())
		return nil
	}
	return err
}
