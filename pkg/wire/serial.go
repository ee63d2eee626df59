// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"fmt"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"go.bug.st/serial"
)

// SerialLine uses the modem control lines of a serial adapter as the signal
// line: RTS is driven and CTS is sampled. Wire one board's RTS to the other
// board's CTS. No UART framing is involved.
type SerialLine struct {
	port serial.Port
}

// OpenSerialLine opens a serial port for modem-line signalling
func OpenSerialLine(portName string, baudRate int) (*SerialLine, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	line := &SerialLine{port: port}
	if err := line.Set(bitlink.Low); err != nil {
		port.Close()
		return nil, err
	}
	return line, nil
}

// Set drives RTS
func (s *SerialLine) Set(level bitlink.Bit) error {
	if err := s.port.SetRTS(level == bitlink.High); err != nil {
		return fmt.Errorf("set RTS: %w", err)
	}
	return nil
}

// Get samples CTS
func (s *SerialLine) Get() (bitlink.Bit, error) {
	bits, err := s.port.GetModemStatusBits()
	if err != nil {
		return bitlink.Low, fmt.Errorf("read modem status: %w", err)
	}
	return levelOf(bits.CTS), nil
}

// Close releases the port
func (s *SerialLine) Close() error {
	return s.port.Close()
}
