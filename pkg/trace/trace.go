// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package trace records raw receiver sample groups to a CBOR stream and
// replays them through the bit decision and frame validator offline.
//
// A trace is a sequence of CBOR items: one Header followed by one Record
// per sample group.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/fxamacker/cbor/v2"
)

// Magic identifies a bitlink trace stream
const Magic = "bitlink-trace"

// Version is the trace format version written by Recorder
const Version = 1

// ErrBadTrace is returned when a stream does not start with a trace header
var ErrBadTrace = errors.New("not a bitlink trace")

// Header is the first item of a trace
type Header struct {
	Magic   string    `cbor:"1,keyasint"`
	Version uint      `cbor:"2,keyasint"`
	Period  int64     `cbor:"3,keyasint"` // sample period in nanoseconds
	Started time.Time `cbor:"4,keyasint"`
}

// Record is one sample group as seen by the receiver
type Record struct {
	Epoch   uint64          `cbor:"1,keyasint"`
	Offset  int64           `cbor:"2,keyasint"` // nanoseconds since Started
	Samples bitlink.Samples `cbor:"3,keyasint"`
}

// Recorder writes sample groups to a trace. It implements link.SampleTap.
type Recorder struct {
	mu      sync.Mutex
	w       *bufio.Writer
	enc     *cbor.Encoder
	started time.Time
	count   int
	err     error
}

// NewRecorder writes the trace header to w and returns a recorder
func NewRecorder(w io.Writer, period time.Duration) (*Recorder, error) {
	bw := bufio.NewWriter(w)
	r := &Recorder{
		w:       bw,
		enc:     cbor.NewEncoder(bw),
		started: time.Now(),
	}
	h := Header{
		Magic:   Magic,
		Version: Version,
		Period:  int64(period),
		Started: r.started.UTC(),
	}
	if err := r.enc.Encode(h); err != nil {
		return nil, fmt.Errorf("failed to write trace header: %w", err)
	}
	return r, nil
}

// Tap records one sample group. After the first write error further
// groups are dropped; see Err.
func (r *Recorder) Tap(epoch uint64, s bitlink.Samples) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	rec := Record{
		Epoch:   epoch,
		Offset:  int64(time.Since(r.started)),
		Samples: s,
	}
	if err := r.enc.Encode(rec); err != nil {
		r.err = fmt.Errorf("failed to write trace record: %w", err)
		return
	}
	r.count++
}

// Count returns the number of records written
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Err returns the first write error
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Flush writes buffered records to the underlying writer
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if err := r.w.Flush(); err != nil {
		r.err = fmt.Errorf("failed to flush trace: %w", err)
	}
	return r.err
}

// Summary describes a replayed trace
type Summary struct {
	Header    Header
	Groups    int
	Ambiguous int
	Epochs    int
	Messages  int
	Resyncs   int
}

// Replay decodes a trace and calls fn for every message it contains.
// Groups recorded after a message in the same epoch are skipped, as the
// live receiver is parked at that point.
func Replay(r io.Reader, fn func(*bitlink.Message)) (Summary, error) {
	var sum Summary
	dec := cbor.NewDecoder(r)

	if err := dec.Decode(&sum.Header); err != nil {
		return sum, fmt.Errorf("%w: %v", ErrBadTrace, err)
	}
	if sum.Header.Magic != Magic {
		return sum, ErrBadTrace
	}
	if sum.Header.Version != Version {
		return sum, fmt.Errorf("unsupported trace version %d", sum.Header.Version)
	}

	var (
		state     bitlink.State
		epoch     uint64
		haveEpoch bool
		parked    bool
	)
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return sum, nil
		}
		if err != nil {
			return sum, fmt.Errorf("failed to decode record %d: %w", sum.Groups, err)
		}
		sum.Groups++

		if !haveEpoch || rec.Epoch != epoch {
			epoch = rec.Epoch
			haveEpoch = true
			parked = false
			state = bitlink.State{}
			sum.Epochs++
		}
		if parked {
			continue
		}

		bit, ok := bitlink.Decide(rec.Samples)
		if !ok {
			sum.Ambiguous++
			continue
		}

		var res bitlink.StepResult
		state, res = bitlink.Step(state, bit)
		if res.Mismatch != bitlink.MismatchNone {
			sum.Resyncs++
		}
		if res.Message == nil {
			continue
		}
		res.Message.Timestamp = sum.Header.Started.Add(time.Duration(rec.Offset))
		sum.Messages++
		parked = true
		if fn != nil {
			fn(res.Message)
		}
	}
}
