// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Thermoquad/bitlink/pkg/wire"
	"github.com/spf13/cobra"
)

var (
	wireListen   string
	wirePath     string
	wireAuthUser string
)

var wireServeCmd = &cobra.Command{
	Use:   "wire_serve",
	Short: "Serve a virtual wire for boards using the ws backend",
	Long: `Run a WebSocket relay that joins every connected board into one shared line.

Each level a board drives is forwarded to every other board. A board that
joins late sees the current level.

Boards connect with:
  bitlink chat --url ws://HOST:PORT/wire

With --auth-user, clients must present HTTP Basic credentials. The password
is read from BITLINK_PASSWORD or prompted interactively.`,
	RunE: runWireServe,
}

func init() {
	rootCmd.AddCommand(wireServeCmd)
	wireServeCmd.Flags().StringVar(&wireListen, "listen", ":8080", "Address to listen on")
	wireServeCmd.Flags().StringVar(&wirePath, "path", "/wire", "HTTP path of the wire")
	wireServeCmd.Flags().StringVar(&wireAuthUser, "auth-user", "", "Require HTTP Basic auth with this username")
}

func runWireServe(cmd *cobra.Command, args []string) error {
	relay := wire.NewRelay(logger.With().Str("component", "relay").Logger())
	if wireAuthUser != "" {
		password, err := GetPassword()
		if err != nil {
			return err
		}
		if password == "" {
			return fmt.Errorf("empty password for --auth-user")
		}
		relay.Username = wireAuthUser
		relay.Password = password
	}

	mux := http.NewServeMux()
	mux.Handle(wirePath, relay)
	srv := &http.Server{
		Addr:              wireListen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	fmt.Printf("Bitlink - Wire Relay\n")
	fmt.Printf("Listening: %s%s\n", wireListen, wirePath)
	fmt.Printf("Press Ctrl+C to exit\n\n")
	logger.Info().Str("addr", wireListen).Str("path", wirePath).Bool("auth", relay.Username != "").Msg("wire relay listening")

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("relay server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	return nil
}
