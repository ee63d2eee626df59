// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitlink

import (
	"errors"
	"fmt"
)

// ErrLineTooLong is returned by the Framer when a typed line exceeds MaxPayloadSize.
var ErrLineTooLong = errors.New("line too long")

// Framer accumulates typed characters and turns each completed line into a frame.
type Framer struct {
	buf   [MaxPayloadSize]byte
	typed int // characters typed on the current line, including ones not stored
}

// NewFramer creates an empty framer
func NewFramer() *Framer {
	return &Framer{}
}

// Reset discards the current line
func (f *Framer) Reset() {
	f.buf = [MaxPayloadSize]byte{}
	f.typed = 0
}

// Pending returns the characters buffered for the current line
func (f *Framer) Pending() []byte {
	n := f.typed
	if n > MaxPayloadSize {
		n = MaxPayloadSize
	}
	return append([]byte(nil), f.buf[:n]...)
}

// Feed processes one character from the line reader.
// Returns the frame when c terminates a non-empty line of at most
// MaxPayloadSize characters, ErrLineTooLong when the line was longer,
// and nil otherwise.
func (f *Framer) Feed(c byte) ([]byte, error) {
	if c != '\n' && c != '\r' {
		if f.typed < MaxPayloadSize {
			f.buf[f.typed] = c
		}
		f.typed++
		return nil, nil
	}

	if f.typed == 0 {
		return nil, nil
	}

	if f.typed > MaxPayloadSize {
		typed := f.typed
		f.Reset()
		return nil, fmt.Errorf("%w: %d characters (max %d)", ErrLineTooLong, typed, MaxPayloadSize)
	}

	frame, err := BuildFrame(f.buf[:f.typed])
	f.Reset()
	return frame, err
}

// FeedLine frames a complete line without its terminator.
func (f *Framer) FeedLine(line string) ([]byte, error) {
	f.Reset()
	for i := 0; i < len(line); i++ {
		f.Feed(line[i])
	}
	return f.Feed('\n')
}
