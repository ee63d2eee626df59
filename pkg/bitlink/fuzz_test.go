// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitlink

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// newFuzzRng creates a random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomPrintable returns n random printable ASCII bytes
func randomPrintable(rng *rand.Rand, n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(0x20 + rng.Intn(0x5F))
	}
	return p
}

func TestFuzz_RoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		payload := randomPrintable(rng, 1+rng.Intn(MaxPayloadSize))
		frame, err := NewFramer().FeedLine(string(payload))
		if err != nil {
			t.Fatalf("round %d: FeedLine(%q): %v", i, payload, err)
		}

		msgs := receive(frame)
		if len(msgs) != 1 {
			t.Fatalf("round %d: payload %q decoded to %d messages", i, payload, len(msgs))
		}
		if !bytes.Equal([]byte(msgs[0].Text), payload) {
			t.Fatalf("round %d: decoded %q, want %q", i, msgs[0].Text, payload)
		}
	}
}

func TestFuzz_RandomBitsStayBounded(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	s := State{}
	for i := 0; i < rounds*64; i++ {
		var r StepResult
		s, r = Step(s, Bit(rng.Intn(2)))
		if s.Count > payloadStart+MaxPayloadBits+endCheckBits {
			t.Fatalf("step %d: count %d out of range", i, s.Count)
		}
		if s.PayloadIndex > MaxPayloadBits || s.LengthIndex > HeaderLengthBits || s.EndIndex > endCheckBits {
			t.Fatalf("step %d: sub-index out of range: %+v", i, s)
		}
		if r.Message != nil && r.Message.Length > MaxPayloadSize {
			t.Fatalf("step %d: message length %d", i, r.Message.Length)
		}
	}
}

func TestFuzz_LongLinesRejected(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	f := NewFramer()
	for i := 0; i < rounds; i++ {
		line := randomPrintable(rng, MaxPayloadSize+1+rng.Intn(32))
		frame, err := f.FeedLine(string(line))
		if frame != nil || err == nil {
			t.Fatalf("round %d: %d-char line produced frame=%v err=%v", i, len(line), frame, err)
		}
	}
}
