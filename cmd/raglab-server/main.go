// Package main provides the RAG Lab server binary: the REST API, the
// comparison dashboard, and the background snapshot refresher in one
// process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raglab/raglab/internal/config"
	"github.com/raglab/raglab/internal/pkg/logger"
	"github.com/raglab/raglab/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "raglab-server",
		Short: "RAG Lab Server - retrieval technique comparison laboratory",
		Long: `RAG Lab Server runs every retrieval-augmented generation technique
side by side, records each execution, and serves a live comparison
dashboard.

The server exposes:
  - REST API on :8080 (configurable) for queries, uploads, and results
  - Dashboard on /dashboard with live comparison updates

Examples:
  raglab-server                         # Start with defaults
  raglab-server --port 9090             # Custom HTTP port
  raglab-server --config raglab.yaml    # Load settings from a file
  raglab-server --no-web                # API only, no dashboard`,
		RunE:         runServer,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringP("config", "c", "", "config file path")
	rootCmd.Flags().BoolP("verbose", "v", false, "verbose logging")
	rootCmd.Flags().IntP("port", "p", 0, "HTTP server port (overrides config)")
	rootCmd.Flags().String("host", "", "server host (overrides config)")
	rootCmd.Flags().Bool("no-web", false, "disable the dashboard")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("raglab-server %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")
	noWeb, _ := cmd.Flags().GetBool("no-web")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Port = port
	}
	if host != "" {
		cfg.Host = host
	}
	if noWeb {
		cfg.EnableWeb = false
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info("starting RAG Lab server",
		"version", version,
		"addr", cfg.Address(),
		"store", cfg.Store.Type,
		"cache", cfg.Cache.Type,
		"bus", cfg.Bus.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.New(ctx, cfg, version, log)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

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
		log.Info("received signal, shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}
