// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/bitlink/pkg/bitlink"
	"github.com/Thermoquad/bitlink/pkg/link"
	"github.com/spf13/cobra"
)

var (
	chatTUI           bool
	chatStatsInterval int
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Exchange text messages with the other board",
	Long: `Type lines of up to 7 characters and send them over the line.

Each line is framed and queued for the transmitter. Messages decoded from the
other board are printed as they arrive. Lines longer than 7 characters are
rejected with ERRO and nothing is sent.

After a message is displayed the receiver parks until you send the next line,
so a conversation alternates between the two boards.

Use --tui for a full-screen interface with link statistics.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().BoolVar(&chatTUI, "tui", false, "Use terminal UI")
	chatCmd.Flags().IntVar(&chatStatsInterval, "stats-interval", 0, "Print link statistics every N seconds (0 disables, text mode only)")
}

// session is a running link on an open line
type session struct {
	link     *link.Link
	connInfo string
	cleanup  func()
}

// startSession opens the configured line and builds a link delivering
// messages to handler
func startSession(cmd *cobra.Command, handler link.MessageHandler) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	line, connInfo, err := OpenLine(cmd.Context(), cfg.Line)
	if err != nil {
		return nil, err
	}

	rec, closeTrace, err := openTrace(cfg)
	if err != nil {
		line.Close()
		return nil, err
	}

	lc := cfg.LinkConfig()
	lc.Logger = logger.With().Str("line", cfg.Line.Backend).Logger()
	lc.Handler = handler
	if rec != nil {
		lc.Tap = rec
	}

	l, err := link.New(line, line, lc)
	if err != nil {
		closeTrace()
		line.Close()
		return nil, err
	}

	return &session{
		link:     l,
		connInfo: connInfo,
		cleanup: func() {
			if err := closeTrace(); err != nil {
				logger.Error().Err(err).Msg("trace not saved")
			}
			line.Close()
		},
	}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatTUI {
		if !stdinIsTerminal() {
			return errors.New("--tui needs an interactive terminal")
		}
		return runChatTUI(cmd)
	}

	s, err := startSession(cmd, link.HandleMessageFunc(func(m *bitlink.Message) {
		fmt.Printf("\n%s\n%s", bitlink.FormatMessage(m), bitlink.NextPrompt)
	}))
	if err != nil {
		return err
	}
	defer s.cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("Bitlink - Chat\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	runErr := make(chan error, 1)
	go func() {
		runErr <- s.link.Run(ctx)
	}()

	lines := make(chan []byte, 1)
	readErr := make(chan error, 1)
	go readOperator(os.Stdin, s.link.Statistics(), lines, readErr)

	var statsC <-chan time.Time
	if chatStatsInterval > 0 {
		statsTicker := time.NewTicker(time.Duration(chatStatsInterval) * time.Second)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	fmt.Print(bitlink.StartPrompt)
	for {
		select {
		case frame := <-lines:
			if err := s.link.Submit(ctx, frame); err != nil {
				continue
			}

		case err := <-readErr:
			// End of input: keep the link up so queued frames finish
			if !errors.Is(err, io.EOF) {
				logger.Error().Err(err).Msg("stdin read failed")
			}
			readErr = nil

		case <-statsC:
			fmt.Println()
			fmt.Print(s.link.Statistics().String())
			fmt.Println()

		case err := <-runErr:
			fmt.Println()
			if errors.Is(err, context.Canceled) {
				fmt.Print(s.link.Statistics().String())
				return nil
			}
			return err
		}
	}
}

// readOperator frames operator input. Rejected lines print ERRO and the
// next prompt without sending anything.
func readOperator(r io.Reader, stats *link.Statistics, lines chan<- []byte, errc chan<- error) {
	framer := bitlink.NewFramer()
	br := bufio.NewReader(r)
	for {
		c, err := br.ReadByte()
		if err != nil {
			errc <- err
			return
		}

		frame, err := framer.Feed(c)
		if errors.Is(err, bitlink.ErrLineTooLong) {
			stats.LineRejected()
			fmt.Printf("%s\n%s", bitlink.ErrorText, bitlink.NextPrompt)
			continue
		}
		if frame != nil {
			lines <- frame
		}
	}
}
