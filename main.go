// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Bitlink - Single-wire text messaging link
//
// Sends short text messages between two boards over one signal line using
// a framed, oversampled bit protocol.

package main

import (
	"errors"
	"os"

	"github.com/Thermoquad/bitlink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
