// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitlink

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPayloadTooLong is returned when a payload does not fit in a frame.
var ErrPayloadTooLong = errors.New("payload too long")

// Header builds the HEADER byte for a payload of n bytes.
func Header(n int) byte {
	return byte(HeaderID<<HeaderLengthBits | n&HeaderLengthMask)
}

// ParseHeader splits a HEADER byte into its ID and length fields.
func ParseHeader(h byte) (id uint8, length int) {
	return h >> HeaderLengthBits, int(h & HeaderLengthMask)
}

// BuildFrame creates the wire bytes for a payload of at most MaxPayloadSize bytes.
func BuildFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLong, len(payload), MaxPayloadSize)
	}

	frame := make([]byte, 0, len(payload)+FrameOverhead)
	frame = append(frame, PreambleByte, SyncByte, STXByte, Header(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, EndByte)
	return frame, nil
}

// FrameBits expands frame bytes into line levels, MSB first.
func FrameBits(frame []byte) []Bit {
	bits := make([]Bit, 0, len(frame)*BitsPerByte)
	for _, b := range frame {
		for i := BitsPerByte - 1; i >= 0; i-- {
			bits = append(bits, Bit(b>>uint(i)&1))
		}
	}
	return bits
}

// FormatFrame renders frame bytes as hex followed by their bit groups.
func FormatFrame(frame []byte) string {
	var hex, bits strings.Builder
	for i, b := range frame {
		if i > 0 {
			hex.WriteByte(' ')
			bits.WriteByte(' ')
		}
		fmt.Fprintf(&hex, "%02X", b)
		fmt.Fprintf(&bits, "%08b", b)
	}
	return fmt.Sprintf("bytes: %s\nbits:  %s\n", hex.String(), bits.String())
}
