// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitlink

// Samples holds one oversampled bit period
type Samples [SamplesPerBit]Bit

// Decide returns the bit for one sample group.
// Only the 2nd and 3rd samples are compared; when they disagree the group
// is discarded and ok is false. This is not a majority vote.
func Decide(s Samples) (bit Bit, ok bool) {
	if s[1] != s[2] {
		return 0, false
	}
	return s[1], true
}

// Oversample expands levels into sample groups, each level repeated
// SamplesPerBit times. It models a noiseless receiver aligned to the sender.
func Oversample(levels []Bit) []Samples {
	groups := make([]Samples, len(levels))
	for i, l := range levels {
		for j := range groups[i] {
			groups[i][j] = l
		}
	}
	return groups
}
