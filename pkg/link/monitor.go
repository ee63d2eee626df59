// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"time"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/Thermoquad/bitlink/pkg/wire"
)

// Monitor samples in continuously and reports every frame it decodes. It
// never parks, so back-to-back frames are all seen. Returns when ctx is
// cancelled or the line fails.
func Monitor(ctx context.Context, in wire.Input, cfg Config, stats *Statistics) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if stats == nil {
		stats = NewStatistics()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rx := NewReceiver(in, cfg.Period, cfg.Logger, stats, cfg.Tap)
	bits := make(chan decided, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- rx.run(ctx, gate{}, bits)
	}()

	var state bitlink.State
	for {
		select {
		case <-ctx.Done():
			cancel()
			<-errc
			return ctx.Err()
		case err := <-errc:
			return err
		case d := <-bits:
			var res bitlink.StepResult
			state, res = bitlink.Step(state, d.bit)
			stats.step(res)
			if res.Mismatch != bitlink.MismatchNone {
				cfg.Logger.Debug().Stringer("marker", res.Mismatch).Msg("resync")
			}
			if res.Message != nil {
				res.Message.Timestamp = time.Now()
				if cfg.Handler != nil {
					cfg.Handler.HandleMessage(res.Message)
				}
			}
		}
	}
}
