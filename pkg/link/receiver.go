// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/Thermoquad/bitlink/pkg/wire"
	"github.com/rs/zerolog"
)

// SampleTap observes every raw sample group before the bit decision.
// Tap is called from the receiver goroutine and must not block.
type SampleTap interface {
	Tap(epoch uint64, s bitlink.Samples)
}

// decided is a bit tagged with the sampling epoch that produced it
type decided struct {
	epoch uint64
	bit   bitlink.Bit
}

// gate controls when the receiver samples. A nil begin or reset means the
// receiver never waits on it.
type gate struct {
	begin   <-chan struct{}
	restart <-chan struct{}
	reset   *atomic.Bool
}

// Receiver oversamples the line 4 times per bit period and publishes the
// bits it can decide.
type Receiver struct {
	line   wire.Input
	period time.Duration
	log    zerolog.Logger
	stats  *Statistics
	tap    SampleTap
}

// NewReceiver creates a receiver sampling every period. stats and tap may
// be nil.
func NewReceiver(line wire.Input, period time.Duration, logger zerolog.Logger, stats *Statistics, tap SampleTap) *Receiver {
	return &Receiver{
		line:   line,
		period: period,
		log:    logger,
		stats:  stats,
		tap:    tap,
	}
}

// Sample takes one group of samples spaced by the ticker
func (r *Receiver) Sample(ctx context.Context, tick <-chan time.Time) (bitlink.Samples, error) {
	var s bitlink.Samples
	for i := range s {
		v, err := r.line.Get()
		if err != nil {
			return s, fmt.Errorf("sample line: %w", err)
		}
		s[i] = v
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-tick:
		}
	}
	return s, nil
}

func (r *Receiver) run(ctx context.Context, g gate, out chan<- decided) error {
	if g.begin != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.begin:
		}
	}
	r.log.Debug().Dur("period", r.period).Msg("sampling started")

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	var epoch uint64
	for {
		if g.reset != nil && g.reset.Load() {
			r.log.Debug().Uint64("epoch", epoch).Msg("sampling parked")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-g.restart:
			}
			g.reset.Store(false)
			epoch++
			ticker.Reset(r.period)
			r.log.Debug().Uint64("epoch", epoch).Msg("sampling restarted")
		}

		s, err := r.Sample(ctx, ticker.C)
		if err != nil {
			return err
		}
		if r.tap != nil {
			r.tap.Tap(epoch, s)
		}

		bit, ok := bitlink.Decide(s)
		if r.stats != nil {
			r.stats.sampleGroup(ok)
		}
		if !ok {
			r.log.Trace().Str("samples", formatSamples(s)).Msg("ambiguous sample pair dropped")
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- decided{epoch: epoch, bit: bit}:
		}
	}
}

func formatSamples(s bitlink.Samples) string {
	b := make([]byte, len(s))
	for i, v := range s {
		b[i] = '0' + byte(v)
	}
	return string(b)
}
