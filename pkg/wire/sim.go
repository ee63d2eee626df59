// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"math/rand"
	"sync"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
)

// SimLine is an in-memory line. Whatever is Set is seen by Get, optionally
// with random sample flips to model noise.
type SimLine struct {
	mu     sync.Mutex
	level  bitlink.Bit
	closed bool
	noise  float64
	rng    *rand.Rand
}

// NewSimLine creates an idle (low) simulated line
func NewSimLine() *SimLine {
	return &SimLine{}
}

// SetNoise makes each Get flip the level with probability p
func (l *SimLine) SetNoise(p float64, seed int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.noise = p
	l.rng = rand.New(rand.NewSource(seed))
}

// Set drives the line
func (l *SimLine) Set(level bitlink.Bit) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLineClosed
	}
	l.level = level & 1
	return nil
}

// Get samples the line
func (l *SimLine) Get() (bitlink.Bit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return bitlink.Low, ErrLineClosed
	}
	level := l.level
	if l.noise > 0 && l.rng.Float64() < l.noise {
		level ^= 1
	}
	return level, nil
}

// Close marks the line closed
func (l *SimLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
