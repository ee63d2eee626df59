// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bitlink implements the bitlink single-wire text protocol.
//
// A frame is a short byte sequence sent MSB first as line levels:
//
//	U  SYNC  STX  HEADER  payload...  END
//
// The package provides frame construction, the line-oriented framer, the
// oversample bit decision and the frame validator state machine. Timing and
// goroutines live in package link.
package bitlink

// Bit is a single line level or decided bit value.
type Bit uint8

// Line levels
const (
	Low  Bit = 0
	High Bit = 1
)

// Frame marker bytes
const (
	PreambleByte = 0x55 // U, never matched by the validator
	SyncByte     = 0x41
	STXByte      = 0x42
	EndByte      = 0x43
)

// Header layout: (HeaderID << HeaderLengthBits) | length
const (
	HeaderID         = 0x1A // 0b11010
	HeaderIDBits     = 5
	HeaderLengthBits = 3
	HeaderLengthMask = 1<<HeaderLengthBits - 1
)

// Size limits
const (
	MaxPayloadSize  = 7
	FrameOverhead   = 5 // U, SYNC, STX, HEADER, END
	MaxFrameSize    = MaxPayloadSize + FrameOverhead
	BitsPerByte     = 8
	MaxPayloadBits  = MaxPayloadSize * BitsPerByte
	SamplesPerBit   = 4
	DefaultQueueCap = MaxFrameSize + 4
)

// Validator count boundaries: SYNC 0-7, STX 8-15, ID 16-20, LENGTH 21-23,
// payload from 24. END is verified on 7 bits only.
const (
	syncStart    = 0
	stxStart     = syncStart + BitsPerByte
	idStart      = stxStart + BitsPerByte
	lengthStart  = idStart + HeaderIDBits
	payloadStart = lengthStart + HeaderLengthBits
	endCheckBits = BitsPerByte - 1
)

// Operator-facing text
const (
	StartPrompt = "Digite algo no teclado para começar: "
	NextPrompt  = "Envie outra mensagem: "
	ErrorText   = "ERRO"
)
