// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/bitlink/internal/config"
	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/Thermoquad/bitlink/pkg/link"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// ============================================================
// encode
// ============================================================

func TestRunEncode(t *testing.T) {
	var out bytes.Buffer
	encodeCmd.SetOut(&out)
	defer encodeCmd.SetOut(nil)

	if err := runEncode(encodeCmd, []string{"HI"}); err != nil {
		t.Fatalf("runEncode failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "HI (id=26, len=2, 56 bits, 224 samples)") {
		t.Errorf("missing summary line in %q", got)
	}
	if !strings.Contains(got, "55 41 42 D2 48 49 43") {
		t.Errorf("missing frame bytes in %q", got)
	}
}

func TestRunEncode_Rejects(t *testing.T) {
	encodeCmd.SetOut(io.Discard)
	defer encodeCmd.SetOut(nil)

	if err := runEncode(encodeCmd, []string{"12345678"}); err == nil {
		t.Error("expected error for 8 characters")
	}
	if err := runEncode(encodeCmd, []string{""}); err == nil {
		t.Error("expected error for empty line")
	}
}

// ============================================================
// loopback
// ============================================================

// silenceOutput points stdout and stderr at the null device for the test
func silenceOutput(t *testing.T) {
	t.Helper()
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return
	}
	stdout, stderr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = devNull, devNull
	t.Cleanup(func() {
		os.Stdout, os.Stderr = stdout, stderr
		devNull.Close()
	})
}

func TestRunLoopback_SetupErrorCode(t *testing.T) {
	silenceOutput(t)
	saved := loopbackText
	loopbackText = "12345678"
	defer func() { loopbackText = saved }()

	err := runLoopback(&cobra.Command{}, nil)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 2 {
		t.Errorf("exit code = %d, want 2", exitErr.Code)
	}
	if !errors.Is(err, bitlink.ErrPayloadTooLong) {
		t.Errorf("expected ErrPayloadTooLong in chain, got %v", err)
	}
}

func TestRunLoopback_Decodes(t *testing.T) {
	if testing.Short() {
		t.Skip("real-time loopback test")
	}
	silenceOutput(t)

	path := filepath.Join(t.TempDir(), "bitlink.toml")
	if err := os.WriteFile(path, []byte("period = \"2ms\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	saved := configPath
	configPath = path
	defer func() { configPath = saved }()

	if err := runLoopback(&cobra.Command{}, nil); err != nil {
		t.Fatalf("loopback failed: %v", err)
	}
}

// ============================================================
// Operator input
// ============================================================

func TestReadOperator(t *testing.T) {
	// Prompts go to stdout; keep test output clean
	stdout := os.Stdout
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err == nil {
		os.Stdout = devNull
		defer func() {
			os.Stdout = stdout
			devNull.Close()
		}()
	}

	stats := link.NewStatistics()
	lines := make(chan []byte, 8)
	errc := make(chan error, 1)
	readOperator(strings.NewReader("HI\n12345678\n\nOK\r\n"), stats, lines, errc)

	if err := <-errc; err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
	close(lines)

	var got []string
	for frame := range lines {
		_, n := bitlink.ParseHeader(frame[3])
		got = append(got, string(frame[4:4+n]))
	}
	if len(got) != 2 || got[0] != "HI" || got[1] != "OK" {
		t.Errorf("frames = %q, want [HI OK]", got)
	}
	if stats.Snapshot().RejectedLines != 1 {
		t.Errorf("RejectedLines = %d, want 1", stats.Snapshot().RejectedLines)
	}
}

// ============================================================
// Chat TUI model
// ============================================================

func typeLine(m chatModel, text string) (chatModel, tea.Cmd) {
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(chatModel), cmd
}

func TestChatModel_SendLine(t *testing.T) {
	var sent [][]byte
	m := initialChatModel(context.Background(), nil, "test")
	m.stats = link.NewStatistics()
	m.submit = func(ctx context.Context, frame []byte) error {
		sent = append(sent, frame)
		return nil
	}

	m, cmd := typeLine(m, "HI")
	if cmd == nil {
		t.Fatal("expected a submit command")
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}

	next, _ := m.Update(cmd())
	m = next.(chatModel)
	if len(sent) != 1 {
		t.Fatalf("submitted %d frames, want 1", len(sent))
	}
	if len(m.log) != 1 || m.log[0].kind != entrySent || m.log[0].text != "HI" {
		t.Errorf("log = %+v", m.log)
	}
}

func TestChatModel_RejectsLongLine(t *testing.T) {
	m := initialChatModel(context.Background(), nil, "test")
	m.stats = link.NewStatistics()
	m.submit = func(ctx context.Context, frame []byte) error {
		t.Error("long line must not be submitted")
		return nil
	}

	m, cmd := typeLine(m, "12345678")
	if cmd != nil {
		t.Error("expected no command for a rejected line")
	}
	if len(m.log) != 1 || m.log[0].text != bitlink.ErrorText || m.log[0].kind != entryError {
		t.Errorf("log = %+v", m.log)
	}
	if m.stats.Snapshot().RejectedLines != 1 {
		t.Error("rejected line not counted")
	}

	// Empty lines are ignored
	m, cmd = typeLine(m, "")
	if cmd != nil || len(m.log) != 1 {
		t.Error("empty line should be ignored")
	}
}

func TestChatModel_ReceivedAndView(t *testing.T) {
	m := initialChatModel(context.Background(), nil, "Simulated loopback line")
	next, _ := m.Update(receivedMsg{msg: &bitlink.Message{ID: 26, Length: 2, Text: "HI", Timestamp: time.Now()}})
	m = next.(chatModel)

	view := m.View()
	if !strings.Contains(view, "Seu amigo (ID = 26) enviou esta mensagem: HI") {
		t.Errorf("view missing message:\n%s", view)
	}
	if !strings.Contains(view, "Simulated loopback line") {
		t.Errorf("view missing connection info:\n%s", view)
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil || !next.(chatModel).quitting {
		t.Error("Esc should quit")
	}
}

// ============================================================
// Config and flags
// ============================================================

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bitlink.toml")
	body := "period = \"10ms\"\n[line]\nbackend = \"serial\"\nport = \"/dev/ttyUSB0\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	saved := configPath
	configPath = path
	defer func() { configPath = saved }()

	c := &cobra.Command{}
	c.Flags().DurationVar(&period, "period", 20*time.Millisecond, "")
	c.Flags().StringVar(&wsURL, "url", "", "")
	if err := c.Flags().Set("url", "ws://localhost:8080/wire"); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Period != 10*time.Millisecond {
		t.Errorf("Period = %v, want file value 10ms", cfg.Period)
	}
	if cfg.Line.Backend != config.BackendWS {
		t.Errorf("Backend = %q, want ws from --url", cfg.Line.Backend)
	}
	if cfg.Line.URL != "ws://localhost:8080/wire" {
		t.Errorf("URL = %q", cfg.Line.URL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestOpenLine_Sim(t *testing.T) {
	line, info, err := OpenLine(context.Background(), config.LineConfig{Backend: config.BackendSim})
	if err != nil {
		t.Fatalf("OpenLine failed: %v", err)
	}
	defer line.Close()

	if info == "" {
		t.Error("expected connection info")
	}
	if err := line.Set(bitlink.High); err != nil {
		t.Fatal(err)
	}
	if v, _ := line.Get(); v != bitlink.High {
		t.Error("sim line should loop back")
	}

	if _, _, err := OpenLine(context.Background(), config.LineConfig{Backend: "pigeon"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestOpenTrace(t *testing.T) {
	cfg := config.Default()
	rec, closeFn, err := openTrace(cfg)
	if err != nil || rec != nil {
		t.Fatalf("disabled trace: rec=%v err=%v", rec, err)
	}
	if err := closeFn(); err != nil {
		t.Error(err)
	}

	cfg.Trace.Path = filepath.Join(t.TempDir(), "rx.cbor")
	rec, closeFn, err = openTrace(cfg)
	if err != nil {
		t.Fatalf("openTrace failed: %v", err)
	}
	rec.Tap(0, bitlink.Samples{1, 1, 1, 1})
	if err := closeFn(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	info, err := os.Stat(cfg.Trace.Path)
	if err != nil || info.Size() == 0 {
		t.Errorf("trace file not written: %v", err)
	}
}
