// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/Thermoquad/bitlink/pkg/trace"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay TRACE",
	Short: "Decode a recorded sample trace",
	Long: `Run the samples recorded with --trace back through the bit decision and the
frame validator and print every message found.

Useful for diagnosing a noisy line after the fact: the summary shows how many
sample groups were ambiguous and how often the validator had to resync.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer f.Close()

	out := cmd.OutOrStdout()
	sum, err := trace.Replay(bufio.NewReader(f), func(m *bitlink.Message) {
		fmt.Fprintf(out, "[%s] %s\n", m.Timestamp.Local().Format("15:04:05.000"), bitlink.FormatMessage(m))
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n=== Trace Summary ===\n")
	fmt.Fprintf(out, "Recorded:        %s\n", sum.Header.Started.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "Period:          %v\n", time.Duration(sum.Header.Period))
	fmt.Fprintf(out, "Sample Groups:   %8d\n", sum.Groups)
	fmt.Fprintf(out, "Ambiguous:       %8d\n", sum.Ambiguous)
	fmt.Fprintf(out, "Epochs:          %8d\n", sum.Epochs)
	fmt.Fprintf(out, "Resyncs:         %8d\n", sum.Resyncs)
	fmt.Fprintf(out, "Messages:        %8d\n", sum.Messages)
	return nil
}
