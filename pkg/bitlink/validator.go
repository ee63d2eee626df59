// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitlink

import "fmt"

// Phase identifies which part of a frame the validator is matching
type Phase int

// Validator phases, in frame order
const (
	PhaseSync Phase = iota
	PhaseSTX
	PhaseID
	PhaseLength
	PhasePayload
	PhaseEnd
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseSync:
		return "SYNC"
	case PhaseSTX:
		return "STX"
	case PhaseID:
		return "ID"
	case PhaseLength:
		return "LENGTH"
	case PhasePayload:
		return "PAYLOAD"
	case PhaseEnd:
		return "END"
	case PhaseComplete:
		return "COMPLETE"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Mismatch reports which marker rejected a bit
type Mismatch int

// Mismatch kinds
const (
	MismatchNone Mismatch = iota
	MismatchSync
	MismatchSTX
	MismatchEnd
)

func (m Mismatch) String() string {
	switch m {
	case MismatchNone:
		return "none"
	case MismatchSync:
		return "sync"
	case MismatchSTX:
		return "stx"
	case MismatchEnd:
		return "end"
	default:
		return fmt.Sprintf("Mismatch(%d)", int(m))
	}
}

// State is the complete validator state. The zero value is the initial state.
//
// Count is the primary bit index across the frame. The per-phase indices
// select the marker bit to compare or the buffer slot to fill. They are not
// all cleared on a mismatch: a SYNC mismatch clears Count only, an STX
// mismatch clears Count and STXIndex, and an END mismatch clears Count and
// the LENGTH, PAYLOAD and END indices while the ID capture survives.
type State struct {
	Count        int
	STXIndex     int
	IDIndex      int
	LengthIndex  int
	PayloadIndex int
	EndIndex     int

	ID          [HeaderIDBits]Bit
	Length      [HeaderLengthBits]Bit
	Payload     [MaxPayloadBits]Bit
	PayloadBits int
}

// Phase returns the phase that will consume the next bit
func (s State) Phase() Phase {
	switch {
	case s.Count < stxStart:
		return PhaseSync
	case s.Count < idStart:
		return PhaseSTX
	case s.Count < lengthStart:
		return PhaseID
	case s.Count < payloadStart:
		return PhaseLength
	case s.Count < payloadStart+s.PayloadBits:
		return PhasePayload
	case s.Count < payloadStart+s.PayloadBits+endCheckBits:
		return PhaseEnd
	default:
		return PhaseComplete
	}
}

// IsInitial reports whether s equals the zero state
func (s State) IsInitial() bool {
	return s == State{}
}

// StepResult describes what one decided bit did to the validator
type StepResult struct {
	Phase    Phase // phase that consumed the bit
	Mismatch Mismatch
	Message  *Message // set when the bit completed a frame
}

// Step applies one decided bit to the validator state.
// It returns the new state and, when a frame completes, the decoded message.
// The bit that triggers completion is the one after the 7 checked END bits;
// its value is not examined.
func Step(s State, bit Bit) (State, StepResult) {
	r := StepResult{Phase: s.Phase()}

	switch r.Phase {
	case PhaseSync:
		if markerMatches(SyncByte, s.Count, bit) {
			s.Count++
		} else {
			s.Count = 0
			r.Mismatch = MismatchSync
		}

	case PhaseSTX:
		if markerMatches(STXByte, s.STXIndex, bit) {
			s.STXIndex++
			s.Count++
		} else {
			s.Count = 0
			s.STXIndex = 0
			r.Mismatch = MismatchSTX
		}

	case PhaseID:
		// Writes past the buffer keep the ID captured by an earlier attempt
		if s.IDIndex < len(s.ID) {
			s.ID[s.IDIndex] = bit
		}
		s.IDIndex++
		s.Count++

	case PhaseLength:
		if s.LengthIndex < len(s.Length) {
			s.Length[s.LengthIndex] = bit
		}
		s.LengthIndex++
		s.Count++
		if s.Count == payloadStart {
			s.PayloadBits = int(bitsToUint(s.Length[:])) * BitsPerByte
		}

	case PhasePayload:
		if s.PayloadIndex < len(s.Payload) {
			s.Payload[s.PayloadIndex] = bit
		}
		s.PayloadIndex++
		s.Count++

	case PhaseEnd:
		if markerMatches(EndByte, s.EndIndex, bit) {
			s.EndIndex++
			s.Count++
		} else {
			s.Count = 0
			s.LengthIndex = 0
			s.PayloadIndex = 0
			s.EndIndex = 0
			r.Mismatch = MismatchEnd
		}

	case PhaseComplete:
		r.Message = s.message()
		s = State{}
	}

	return s, r
}

// message decodes the captured ID and payload
func (s State) message() *Message {
	n := s.PayloadBits / BitsPerByte
	text := make([]byte, n)
	for i := range text {
		text[i] = byte(bitsToUint(s.Payload[i*BitsPerByte : (i+1)*BitsPerByte]))
	}
	return &Message{
		ID:     uint8(bitsToUint(s.ID[:])),
		Length: n,
		Text:   string(text),
	}
}

// markerMatches compares bit with bit idx (MSB first) of a marker byte.
// An index outside the byte never matches.
func markerMatches(marker byte, idx int, bit Bit) bool {
	if idx < 0 || idx >= BitsPerByte {
		return false
	}
	return Bit(marker>>uint(BitsPerByte-1-idx)&1) == bit
}

// bitsToUint reads bits as a big-endian unsigned integer
func bitsToUint(bits []Bit) uint {
	var v uint
	for _, b := range bits {
		v = v<<1 | uint(b&1)
	}
	return v
}
