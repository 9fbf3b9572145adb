package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/omochice/chat-relay/internal/gateway"
	"github.com/omochice/chat-relay/internal/logging"
)

func main() {
	var (
		listenAddr string
		relayAddr  string
		logLevel   string
		logFormat  string
	)

	cmd := &cobra.Command{
		Use:           "ws-gateway",
		Short:         "Bridge WebSocket clients onto a chat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Configure(log.StandardLogger(), logLevel, logFormat, nil); err != nil {
				return err
			}
			return run(listenAddr, relayAddr)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&listenAddr, "listen", "l", ":8080", "HTTP address serving /ws and /healthz")
	flags.StringVarP(&relayAddr, "relay", "r", "127.0.0.1:6699", "chat relay address")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(listenAddr, relayAddr string) error {
	g := gateway.New(relayAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- g.Start(listenAddr)
	}()

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Infof("Received signal %v, shutting down...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.Stop(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errChan
}
