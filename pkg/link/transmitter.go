// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/Thermoquad/bitlink/pkg/wire"
	"github.com/rs/zerolog"
)

// Transmitter drives queued bytes onto the line, MSB first, holding each
// level for one bit period.
type Transmitter struct {
	line wire.Output
	hold time.Duration
	log  zerolog.Logger
}

// NewTransmitter creates a transmitter for sample period t (bit period 4t)
func NewTransmitter(line wire.Output, t time.Duration, logger zerolog.Logger) *Transmitter {
	return &Transmitter{
		line: line,
		hold: t * bitlink.SamplesPerBit,
		log:  logger,
	}
}

// Run pops bytes from queue until ctx is done. One ticker paces every bit
// of a burst, so back-to-back bytes keep their edges on the bit grid. The
// grid is restarted when a byte arrives after the queue ran empty.
func (t *Transmitter) Run(ctx context.Context, queue <-chan byte) error {
	ticker := time.NewTicker(t.hold)
	defer ticker.Stop()

	idle := true
	for {
		var b byte
		if idle {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case b = <-queue:
			}
			ticker.Reset(t.hold)
			idle = false
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case b = <-queue:
			default:
				idle = true
				continue
			}
		}

		if err := t.sendBits(ctx, ticker.C, b); err != nil {
			return err
		}
	}
}

// SendByte drives one byte on its own bit grid
func (t *Transmitter) SendByte(ctx context.Context, b byte) error {
	ticker := time.NewTicker(t.hold)
	defer ticker.Stop()
	return t.sendBits(ctx, ticker.C, b)
}

// sendBits drives b MSB first, holding each level until the next tick
func (t *Transmitter) sendBits(ctx context.Context, tick <-chan time.Time, b byte) error {
	t.log.Trace().Str("byte", fmt.Sprintf("0x%02X", b)).Msg("tx")
	for i := bitlink.BitsPerByte - 1; i >= 0; i-- {
		if err := t.line.Set(bitlink.Bit(b >> uint(i) & 1)); err != nil {
			return fmt.Errorf("drive line: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
		}
	}
	return nil
}
