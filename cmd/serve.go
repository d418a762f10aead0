package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/grnfit/internal/server"
	"github.com/cwbudde/grnfit/internal/store"
)

var (
	serveAddr    string
	serveDataDir string
	serveDBPath  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fitting job server",
	Long: `Runs the HTTP server that accepts fitting jobs, streams progress over
SSE and serves fitted solutions and trajectories.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Base directory for checkpoint storage")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "SQLite checkpoint database (overrides --data-dir)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	checkpointStore, err := openCheckpointStore(serveDBPath, serveDataDir)
	if err != nil {
		return err
	}

	srv := server.NewServer(serveAddr, checkpointStore)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("Received signal, shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// openCheckpointStore picks the SQLite store when a database path is
// given, the filesystem store otherwise.
func openCheckpointStore(dbPath, dataDir string) (store.Store, error) {
	if dbPath != "" {
		s, err := store.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
		}
		return s, nil
	}
	s, err := store.NewFSStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint store: %w", err)
	}
	return s, nil
}
