package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/omochice/chat-relay/internal/logging"
	"github.com/omochice/chat-relay/internal/server"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg := server.NewConfigFromEnv()
	var logLevel, logFormat string

	cmd := &cobra.Command{
		Use:   "chat-relay",
		Short: "Single-process TCP chat relay",
		Long: `chat-relay accepts TCP clients and relays every chat line to all other
connected clients. Clients may send /nick <name> to rename themselves
and /quit to leave.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Configure(log.StandardLogger(), logLevel, logFormat, nil); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Address, "addr", "a", cfg.Address, "address to bind")
	flags.IntVarP(&cfg.Port, "port", "p", cfg.Port, "TCP port to listen on")
	flags.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "listen backlog")
	flags.IntVar(&cfg.MaxClients, "max-clients", cfg.MaxClients, "maximum concurrent connections")
	flags.IntVar(&cfg.MaxEvents, "max-events", cfg.MaxEvents, "readiness events handled per wait")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve /metrics and /healthz on this address")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	cmd.AddCommand(versionCmd())
	return cmd
}

func run(cfg *server.Config) error {
	srv := server.New(cfg)
	if err := srv.Listen(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		log.Infof("Received signal %v, shutting down...", sig)
		srv.Stop()
	}()

	if err := srv.Serve(); err != nil && !errors.Is(err, server.ErrServerStopped) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chat-relay %s (%s) %s %s/%s\n", version, commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
