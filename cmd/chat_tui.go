// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/Thermoquad/bitlink/pkg/link"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Chat log entry
type chatEntry struct {
	timestamp time.Time
	text      string
	kind      entryKind
}

type entryKind int

const (
	entryReceived entryKind = iota
	entrySent
	entryError
	entryInfo
)

// TUI model
type chatModel struct {
	ctx           context.Context
	submit        func(ctx context.Context, frame []byte) error
	stats         *link.Statistics
	connInfo      string
	input         textinput.Model
	framer        *bitlink.Framer
	log           []chatEntry
	maxLogEntries int
	snapshot      link.Snapshot
	width         int
	height        int
	quitting      bool
}

// Messages
type chatTickMsg time.Time
type receivedMsg struct {
	msg *bitlink.Message
}
type submittedMsg struct {
	text string
	err  error
}
type linkStoppedMsg struct {
	err error
}

func initialChatModel(ctx context.Context, l *link.Link, connInfo string) chatModel {
	ti := textinput.New()
	ti.Placeholder = "up to 7 characters"
	ti.CharLimit = 32
	ti.Width = 20
	ti.Prompt = "> "
	ti.Focus()

	m := chatModel{
		ctx:           ctx,
		connInfo:      connInfo,
		input:         ti,
		framer:        bitlink.NewFramer(),
		log:           make([]chatEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	if l != nil {
		m.submit = l.Submit
		m.stats = l.Statistics()
		m.snapshot = m.stats.Snapshot()
	}
	return m
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		chatTickCmd(),
		textinput.Blink,
	)
}

func chatTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return chatTickMsg(t)
	})
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.sendLine()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case chatTickMsg:
		if m.stats != nil {
			m.snapshot = m.stats.Snapshot()
		}
		return m, chatTickCmd()

	case receivedMsg:
		m.addEntry(bitlink.FormatMessage(msg.msg), entryReceived)
		return m, nil

	case submittedMsg:
		if msg.err != nil {
			m.addEntry(fmt.Sprintf("send failed: %v", msg.err), entryError)
		} else {
			m.addEntry(msg.text, entrySent)
		}
		return m, nil

	case linkStoppedMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.addEntry(fmt.Sprintf("link stopped: %v", msg.err), entryError)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sendLine frames the input line and submits it in the background
func (m chatModel) sendLine() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	m.input.Reset()

	frame, err := m.framer.FeedLine(text)
	if errors.Is(err, bitlink.ErrLineTooLong) {
		if m.stats != nil {
			m.stats.LineRejected()
		}
		m.addEntry(bitlink.ErrorText, entryError)
		return m, nil
	}
	if frame == nil || m.submit == nil {
		return m, nil
	}

	submit, ctx := m.submit, m.ctx
	return m, func() tea.Msg {
		return submittedMsg{text: text, err: submit(ctx, frame)}
	}
}

func (m *chatModel) addEntry(text string, kind entryKind) {
	m.log = append(m.log, chatEntry{
		timestamp: time.Now(),
		text:      text,
		kind:      kind,
	})

	// Keep only last N entries
	if len(m.log) > m.maxLogEntries {
		m.log = m.log[len(m.log)-m.maxLogEntries:]
	}
}

func (m chatModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	sentStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("BITLINK - CHAT"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Enter to send | Esc to quit", m.connInfo)))
	s.WriteString("\n\n")

	// Statistics
	snap := m.snapshot
	resyncs := snap.SyncMismatches + snap.STXMismatches + snap.EndMismatches
	s.WriteString(boxStyle.Render(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
		labelStyle.Render("Sent:"), valueStyle.Render(fmt.Sprintf("%d", snap.FramesSent)),
		labelStyle.Render("Received:"), valueStyle.Render(fmt.Sprintf("%d", snap.Messages)),
		labelStyle.Render("Resyncs:"), valueStyle.Render(fmt.Sprintf("%d", resyncs)),
		labelStyle.Render("Ambiguous:"), func() string {
			if snap.AmbiguousSamples > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", snap.AmbiguousSamples))
			}
			return valueStyle.Render("0")
		}(),
	)))
	s.WriteString("\n\n")

	// Conversation
	s.WriteString(labelStyle.Render("Conversation:"))
	s.WriteString("\n")

	logHeight := m.height - 12
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.log) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	logContent := strings.Builder{}
	if len(m.log) == 0 {
		logContent.WriteString(headerStyle.Render("  " + strings.TrimSpace(bitlink.StartPrompt)))
	} else {
		for i := startIdx; i < len(m.log); i++ {
			entry := m.log[i]
			timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05"))
			switch entry.kind {
			case entryReceived:
				logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, valueStyle.Render("← "+entry.text)))
			case entrySent:
				logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, sentStyle.Render("→ "+entry.text)))
			case entryError:
				logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.text)))
			default:
				logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, headerStyle.Render("ℹ "+entry.text)))
			}
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))
	s.WriteString("\n")
	s.WriteString(m.input.View())

	return s.String()
}

// runChatTUI runs the chat in TUI mode
func runChatTUI(cmd *cobra.Command) error {
	var p *tea.Program
	s, err := startSession(cmd, link.HandleMessageFunc(func(msg *bitlink.Message) {
		p.Send(receivedMsg{msg: msg})
	}))
	if err != nil {
		return err
	}
	defer s.cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	m := initialChatModel(ctx, s.link, s.connInfo)
	m.addEntry("Connected: "+s.connInfo, entryInfo)
	p = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		err := s.link.Run(ctx)
		p.Send(linkStoppedMsg{err: err})
	}()

	// Run TUI
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
