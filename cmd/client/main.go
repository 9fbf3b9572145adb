package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/omochice/chat-relay/internal/client/tcp"
	"github.com/omochice/chat-relay/internal/logging"
	"github.com/omochice/chat-relay/pkg/protocol"
)

func main() {
	var (
		serverAddr string
		nick       string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "chat-client",
		Short:         "Line-mode client for the chat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Configure(log.StandardLogger(), logLevel, "text", os.Stderr); err != nil {
				return err
			}
			return run(serverAddr, nick)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&serverAddr, "server", "s", "127.0.0.1:6699", "relay address")
	flags.StringVarP(&nick, "nick", "n", "", "nickname to set after connecting")
	flags.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(serverAddr, nick string) error {
	c := tcp.New(serverAddr)
	if err := c.Connect(); err != nil {
		return err
	}
	defer c.Disconnect()

	if nick != "" {
		if err := c.SetNick(nick); err != nil {
			return err
		}
	}

	lost := make(chan struct{})
	go func() {
		defer close(lost)
		for env := range c.Envelopes() {
			printEnvelope(env)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-lost:
			if err := c.Err(); err != nil {
				return err
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				return c.Quit()
			}
			line = strings.TrimRight(line, "\r")
			if line == "" {
				continue
			}
			if err := c.Send(line); err != nil {
				if errors.Is(err, tcp.ErrNotConnected) {
					return tcp.ErrConnectionLost
				}
				log.Warnf("Failed to send message: %v", err)
				continue
			}
			if strings.HasPrefix(line, "/quit") {
				<-lost
				return nil
			}
		}
	}
}

func printEnvelope(env protocol.Envelope) {
	body := strings.TrimRight(env.Body, "\r\n")
	if env.IsSystem() {
		fmt.Printf("*** %s ***\n", body)
		return
	}
	fmt.Printf("[%s]: %s\n", env.Label, body)
}
