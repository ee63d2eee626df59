// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link runs the bitlink pipeline on a line: a transmitter draining
// the byte queue, an oversampling receiver, the frame validator and the
// coordinator that starts, parks and restarts them.
package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/Thermoquad/bitlink/pkg/wire"
	"github.com/rs/zerolog"
)

// DefaultPeriod is the sample period T. Each bit is held for 4T.
const DefaultPeriod = 20 * time.Millisecond

// eventBuffer is the capacity of the event channel
const eventBuffer = 8

// ErrAlreadyRunning is returned by Run when the link is already running
var ErrAlreadyRunning = errors.New("link already running")

// Event is a notification read by the coordinator
type Event int

const (
	EventFrameEnqueued Event = iota
	EventFrameDisplayed
)

// String returns the event name
func (e Event) String() string {
	switch e {
	case EventFrameEnqueued:
		return "FRAME_ENQUEUED"
	case EventFrameDisplayed:
		return "FRAME_DISPLAYED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(e))
	}
}

// MessageHandler receives decoded messages
type MessageHandler interface {
	HandleMessage(m *bitlink.Message)
}

// HandleMessageFunc adapts a function to MessageHandler
type HandleMessageFunc func(m *bitlink.Message)

// HandleMessage calls f(m)
func (f HandleMessageFunc) HandleMessage(m *bitlink.Message) {
	f(m)
}

// Config configures a Link
type Config struct {
	Period     time.Duration // sample period T
	QueueDepth int           // byte queue capacity
	Logger     zerolog.Logger
	Handler    MessageHandler // called from the validator goroutine
	Tap        SampleTap      // optional raw sample observer
}

// DefaultConfig returns the default link configuration
func DefaultConfig() Config {
	return Config{
		Period:     DefaultPeriod,
		QueueDepth: bitlink.DefaultQueueCap,
		Logger:     zerolog.Nop(),
	}
}

// Validate checks the timing and queue settings
func (c Config) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("period must be positive, got %v", c.Period)
	}
	if c.QueueDepth < bitlink.MaxFrameSize {
		return fmt.Errorf("queue depth %d is smaller than a frame (%d bytes)", c.QueueDepth, bitlink.MaxFrameSize)
	}
	return nil
}

// coordinator phases
type phase int

const (
	phaseIdle phase = iota
	phaseRunning
	phaseDisplayed
)

// Link is one board's end of a bitlink
type Link struct {
	cfg   Config
	log   zerolog.Logger
	stats *Statistics
	tx    *Transmitter
	rx    *Receiver

	queue   chan byte
	bits    chan decided
	events  chan Event
	begin   chan struct{}
	restart chan struct{}
	resume  chan struct{}
	reset   atomic.Bool
	running atomic.Bool
	phase   atomic.Int32 // coordinator phase, for observers
}

// New creates a link driving out and sampling in
func New(out wire.Output, in wire.Input, cfg Config) (*Link, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stats := NewStatistics()
	return &Link{
		cfg:     cfg,
		log:     cfg.Logger,
		stats:   stats,
		tx:      NewTransmitter(out, cfg.Period, cfg.Logger.With().Str("component", "tx").Logger()),
		rx:      NewReceiver(in, cfg.Period, cfg.Logger.With().Str("component", "rx").Logger(), stats, cfg.Tap),
		queue:   make(chan byte, cfg.QueueDepth),
		bits:    make(chan decided, 1),
		events:  make(chan Event, eventBuffer),
		begin:   make(chan struct{}),
		restart: make(chan struct{}, 1),
		resume:  make(chan struct{}, 1),
	}, nil
}

// Statistics returns the link counters
func (l *Link) Statistics() *Statistics {
	return l.stats
}

// Submit enqueues a frame for transmission. It blocks while the queue is
// full and then notifies the coordinator.
func (l *Link) Submit(ctx context.Context, frame []byte) error {
	for _, b := range frame {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l.queue <- b:
		}
	}
	l.stats.frameSent(len(frame))
	return l.emit(ctx, EventFrameEnqueued)
}

// SendText frames text and submits it
func (l *Link) SendText(ctx context.Context, text string) error {
	frame, err := bitlink.BuildFrame([]byte(text))
	if err != nil {
		return err
	}
	return l.Submit(ctx, frame)
}

func (l *Link) emit(ctx context.Context, ev Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case l.events <- ev:
		return nil
	}
}

// Run starts the transmitter, receiver and validator and coordinates them
// until ctx is cancelled or a line error occurs.
func (l *Link) Run(ctx context.Context) error {
	if l.running.Swap(true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err != nil && ctx.Err() == nil {
				errOnce.Do(func() {
					firstErr = fmt.Errorf("%s: %w", name, err)
					l.log.Error().Err(err).Str("component", name).Msg("link stopped")
				})
				cancel()
			}
		}()
	}

	start("tx", func(ctx context.Context) error { return l.tx.Run(ctx, l.queue) })
	start("rx", func(ctx context.Context) error {
		return l.rx.run(ctx, gate{begin: l.begin, restart: l.restart, reset: &l.reset}, l.bits)
	})
	start("validator", l.validate)

	l.coordinate(ctx)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// coordinate is the only reader of the event channel
func (l *Link) coordinate(ctx context.Context) {
	p := phaseIdle
	defer l.phase.Store(int32(phaseIdle))
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-l.events:
			l.log.Debug().Stringer("event", ev).Int("phase", int(p)).Msg("event")
			switch ev {
			case EventFrameEnqueued:
				switch p {
				case phaseIdle:
					close(l.begin)
					p = phaseRunning
				case phaseDisplayed:
					notify(l.restart)
					notify(l.resume)
					p = phaseRunning
				}
				// A frame enqueued while running does not restart anything
			case EventFrameDisplayed:
				p = phaseDisplayed
			}
			l.phase.Store(int32(p))
		}
	}
}

// notify posts a signal without blocking. Pending signals coalesce.
func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// validate feeds decided bits through the frame validator. After a message
// it parks the receiver and waits to be resumed. Bits from the epoch that
// produced the message are discarded.
func (l *Link) validate(ctx context.Context) error {
	var (
		state  bitlink.State
		epoch  uint64
		parked bool
	)

	for {
		var d decided
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.resume:
			if parked {
				parked = false
				epoch++
			}
			continue
		case d = <-l.bits:
		}

		if d.epoch < epoch || (parked && d.epoch == epoch) {
			continue
		}
		if d.epoch > epoch {
			// receiver restarted before the resume signal was read
			epoch = d.epoch
			parked = false
		}

		var res bitlink.StepResult
		state, res = bitlink.Step(state, d.bit)
		l.stats.step(res)

		if l.log.GetLevel() <= zerolog.TraceLevel {
			l.log.Trace().Uint8("bit", uint8(d.bit)).Stringer("phase", res.Phase).Int("count", state.Count).Msg("bit")
		}
		if res.Mismatch != bitlink.MismatchNone {
			l.log.Debug().Stringer("marker", res.Mismatch).Msg("resync")
		}
		if res.Message == nil {
			continue
		}

		res.Message.Timestamp = time.Now()
		l.log.Info().Uint8("id", res.Message.ID).Int("length", res.Message.Length).Msg("message received")
		if l.cfg.Handler != nil {
			l.cfg.Handler.HandleMessage(res.Message)
		}

		l.reset.Store(true)
		parked = true
		if err := l.emit(ctx, EventFrameDisplayed); err != nil {
			return err
		}
	}
}
