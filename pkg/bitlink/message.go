// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bitlink

import (
	"fmt"
	"time"
)

// Message is a text message decoded from a complete frame
type Message struct {
	ID        uint8  // upper 5 bits of HEADER
	Length    int    // payload length in bytes
	Text      string // payload bytes
	Timestamp time.Time
}

// FormatMessage returns the display line for a decoded message
func FormatMessage(m *Message) string {
	return fmt.Sprintf("Seu amigo (ID = %d) enviou esta mensagem: %s", m.ID, m.Text)
}
