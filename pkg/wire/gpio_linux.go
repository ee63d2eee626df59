// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package wire

import (
	"fmt"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/davecheney/gpio"
)

// GPIOLine drives one sysfs GPIO pin and samples another
type GPIOLine struct {
	tx gpio.Pin
	rx gpio.Pin
}

// OpenGPIOLine exports txPin as output (initially low) and rxPin as input
func OpenGPIOLine(txPin, rxPin int) (*GPIOLine, error) {
	tx, err := gpio.OpenPin(txPin, gpio.ModeOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to open tx pin %d: %w", txPin, err)
	}
	rx, err := gpio.OpenPin(rxPin, gpio.ModeInput)
	if err != nil {
		tx.Close()
		return nil, fmt.Errorf("failed to open rx pin %d: %w", rxPin, err)
	}
	tx.Clear()
	return &GPIOLine{tx: tx, rx: rx}, nil
}

// Set drives the tx pin
func (g *GPIOLine) Set(level bitlink.Bit) error {
	if level == bitlink.High {
		g.tx.Set()
	} else {
		g.tx.Clear()
	}
	if err := g.tx.Err(); err != nil {
		return fmt.Errorf("set tx pin: %w", err)
	}
	return nil
}

// Get samples the rx pin
func (g *GPIOLine) Get() (bitlink.Bit, error) {
	v := g.rx.Get()
	if err := g.rx.Err(); err != nil {
		return bitlink.Low, fmt.Errorf("read rx pin: %w", err)
	}
	return levelOf(v), nil
}

// Close unexports both pins
func (g *GPIOLine) Close() error {
	errTx := g.tx.Close()
	errRx := g.rx.Close()
	if errTx != nil {
		return errTx
	}
	return errRx
}
