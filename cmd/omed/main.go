// Command omed runs the order matching engine's HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ome/internal/api"
	"ome/internal/engine"
	"ome/internal/executioner"
)

const snapshotInterval = 30 * time.Second

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		listen             string
		port               uint16
		dumpfile           string
		executionerAddress string
	)

	root := &cobra.Command{
		Use:   "omed",
		Short: "Order matching engine daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), listen, port, dumpfile, executionerAddress)
		},
	}

	root.Flags().StringVar(&listen, "listen", "0.0.0.0", "address to listen on")
	root.Flags().Uint16Var(&port, "port", 8989, "TCP port to listen on")
	root.Flags().StringVar(&dumpfile, "dumpfile", ".omedump.json", "path to the state dump file")
	root.Flags().StringVar(&executionerAddress, "executioner_address", "", "address of the on-chain executioner (required)")
	if err := root.MarkFlagRequired("executioner_address"); err != nil {
		log.Fatal().Err(err).Msg("unable to register required flag")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("omed exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, listen string, port uint16, dumpfile, executionerAddress string) error {
	state := engine.RestoreFrom(dumpfile)
	exec := executioner.New(executionerAddress)
	server := api.NewServer(state, exec)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", listen, port),
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go runSnapshotLoop(ctx, state, dumpfile, done)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("listening")
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}

	<-done
	if err := state.SnapshotTo(dumpfile); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	}
	return nil
}

// runSnapshotLoop periodically dumps the engine state to disk until ctx is
// cancelled, then signals done. A snapshot write failure is logged and
// does not abort the engine (spec.md §4.3/§7).
func runSnapshotLoop(ctx context.Context, state *engine.State, path string, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := state.SnapshotTo(path); err != nil {
				log.Error().Err(err).Str("path", path).Msg("periodic snapshot failed")
			}
		}
	}
}
