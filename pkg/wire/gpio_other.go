// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package wire

import (
	"errors"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
)

// GPIOLine is only available on Linux
type GPIOLine struct{}

// OpenGPIOLine always fails outside Linux
func OpenGPIOLine(txPin, rxPin int) (*GPIOLine, error) {
	return nil, errors.New("gpio lines require linux sysfs")
}

func (g *GPIOLine) Set(level bitlink.Bit) error { return ErrLineClosed }

func (g *GPIOLine) Get() (bitlink.Bit, error) { return bitlink.Low, ErrLineClosed }

func (g *GPIOLine) Close() error { return nil }
