// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/spf13/cobra"
)

var encodeCmd = &cobra.Command{
	Use:   "encode TEXT...",
	Short: "Show the frame bytes and line bits for text",
	Long: `Frame each argument the way chat would and print the bytes and the bit
sequence driven onto the line, MSB first.

Example:
  bitlink encode HI
  HI
  bytes: 55 41 42 D2 48 49 43
  bits:  01010101 01000001 ...`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
}

func runEncode(cmd *cobra.Command, args []string) error {
	framer := bitlink.NewFramer()
	out := cmd.OutOrStdout()

	for _, text := range args {
		frame, err := framer.FeedLine(text)
		if err != nil {
			return fmt.Errorf("%q: %w", text, err)
		}
		if frame == nil {
			return fmt.Errorf("empty line is never sent")
		}

		id, length := bitlink.ParseHeader(frame[3])
		fmt.Fprintf(out, "%s (id=%d, len=%d, %d bits, %d samples)\n",
			text, id, length, len(frame)*bitlink.BitsPerByte, len(frame)*bitlink.BitsPerByte*bitlink.SamplesPerBit)
		fmt.Fprint(out, bitlink.FormatFrame(frame))
	}
	return nil
}
