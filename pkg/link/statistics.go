// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
)

// Statistics tracks link counters. Safe for concurrent use.
type Statistics struct {
	mu sync.Mutex
	s  Snapshot
}

// Snapshot is a copy of the counters at one point in time
type Snapshot struct {
	StartTime time.Time

	// Sender side
	FramesSent    uint64
	BytesSent     uint64
	RejectedLines uint64

	// Receiver side
	SampleGroups     uint64
	AmbiguousSamples uint64
	DecidedBits      uint64

	// Validator side
	SyncMismatches uint64
	STXMismatches  uint64
	EndMismatches  uint64
	Messages       uint64
	LastMessage    time.Time
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{s: Snapshot{StartTime: time.Now()}}
}

// Snapshot returns a copy of the current counters
func (st *Statistics) Snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// Reset clears all counters
func (st *Statistics) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = Snapshot{StartTime: time.Now()}
}

func (st *Statistics) frameSent(n int) {
	st.mu.Lock()
	st.s.FramesSent++
	st.s.BytesSent += uint64(n)
	st.mu.Unlock()
}

// LineRejected counts an oversized operator line
func (st *Statistics) LineRejected() {
	st.mu.Lock()
	st.s.RejectedLines++
	st.mu.Unlock()
}

func (st *Statistics) sampleGroup(decided bool) {
	st.mu.Lock()
	st.s.SampleGroups++
	if decided {
		st.s.DecidedBits++
	} else {
		st.s.AmbiguousSamples++
	}
	st.mu.Unlock()
}

func (st *Statistics) step(r bitlink.StepResult) {
	st.mu.Lock()
	defer st.mu.Unlock()
	switch r.Mismatch {
	case bitlink.MismatchSync:
		st.s.SyncMismatches++
	case bitlink.MismatchSTX:
		st.s.STXMismatches++
	case bitlink.MismatchEnd:
		st.s.EndMismatches++
	}
	if r.Message != nil {
		st.s.Messages++
		st.s.LastMessage = time.Now()
	}
}

// String returns a formatted statistics summary
func (st *Statistics) String() string {
	return st.Snapshot().String()
}

// String returns a formatted statistics summary
func (s Snapshot) String() string {
	elapsed := time.Since(s.StartTime)

	var ambiguousPercent float64
	if s.SampleGroups > 0 {
		ambiguousPercent = float64(s.AmbiguousSamples) * 100.0 / float64(s.SampleGroups)
	}

	result := fmt.Sprintf("=== Link Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Frames Sent:     %8d (%d bytes)\n", s.FramesSent, s.BytesSent)
	if s.RejectedLines > 0 {
		result += fmt.Sprintf("Rejected Lines:  %8d\n", s.RejectedLines)
	}
	result += fmt.Sprintf("Sample Groups:   %8d\n", s.SampleGroups)
	result += fmt.Sprintf("Decided Bits:    %8d\n", s.DecidedBits)
	if s.AmbiguousSamples > 0 {
		result += fmt.Sprintf("Ambiguous:       %8d (%.1f%%)\n", s.AmbiguousSamples, ambiguousPercent)
	}
	if resyncs := s.SyncMismatches + s.STXMismatches + s.EndMismatches; resyncs > 0 {
		result += fmt.Sprintf("Resyncs:         %8d\n", resyncs)
		result += fmt.Sprintf("  SYNC:             %5d\n", s.SyncMismatches)
		result += fmt.Sprintf("  STX:              %5d\n", s.STXMismatches)
		result += fmt.Sprintf("  END:              %5d\n", s.EndMismatches)
	}
	result += fmt.Sprintf("Messages:        %8d\n", s.Messages)
	result += "================================\n"

	return result
}
