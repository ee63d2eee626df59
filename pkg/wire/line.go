// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package wire provides the single signal line used by a bitlink.
//
// A board drives one Output and samples one Input. Backends cover an
// in-memory line, the RTS/CTS modem lines of a serial adapter, sysfs GPIO
// pins and a WebSocket virtual wire shared through a Relay.
package wire

import (
	"errors"
	"io"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
)

// ErrLineClosed is returned when using a line after Close or after its
// transport went away
var ErrLineClosed = errors.New("line closed")

// Output drives the line level
type Output interface {
	Set(level bitlink.Bit) error
}

// Input samples the line level
type Input interface {
	Get() (bitlink.Bit, error)
}

// Line is a closable line with both directions
type Line interface {
	Output
	Input
	io.Closer
}

func levelOf(v bool) bitlink.Bit {
	if v {
		return bitlink.High
	}
	return bitlink.Low
}
