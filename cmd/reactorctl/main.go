// Command reactorctl is a manual smoke-test driver for the reactor core:
// it wires the real syssock/sysselect pair into a reactor.Loop and prints
// connect/message/disconnect events to stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/readysock/reactor"
	"github.com/readysock/reactor/internal/sysselect"
	"github.com/readysock/reactor/internal/syssock"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reactorctl",
		Short: "Drive a MessageServer or MessageClient over real sockets",
	}
	root.AddCommand(newListenCmd(), newConnectCmd())
	return root
}

func newListenCmd() *cobra.Command {
	var port uint16

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Start a MessageServer and print events as clients connect",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd.Context(), port)
		},
	}
	addPortFlag(cmd.Flags(), &port, "port to listen on")
	return cmd
}

func newConnectCmd() *cobra.Command {
	var port uint16
	var message string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect a MessageClient to localhost:port and queue one message",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd.Context(), port, message)
		},
	}
	addPortFlag(cmd.Flags(), &port, "port to connect to")
	cmd.Flags().StringVar(&message, "message", "", "message to send (a trailing null terminator is appended automatically)")
	return cmd
}

func addPortFlag(fs *pflag.FlagSet, port *uint16, usage string) {
	fs.Uint16Var(port, "port", 4145, usage)
}

func runListen(ctx context.Context, port uint16) error {
	sockets := syssock.NewProvider()

	events := reactor.ServerEvents{
		ClientConnected: func(id reactor.ClientID) {
			fmt.Printf("client %d connected\n", id)
		},
		GotMessage: func(id reactor.ClientID, message []byte) {
			fmt.Printf("client %d: %q\n", id, message)
		},
		ClientDisconnected: func(id reactor.ClientID) {
			fmt.Printf("client %d disconnected\n", id)
		},
	}

	server := reactor.NewMessageServer(sockets, events)
	defer server.Close()

	if err := server.StartListening(port); err != nil {
		return fmt.Errorf("reactorctl: failed to listen on port %d: %w", port, err)
	}
	fmt.Printf("listening on port %d\n", port)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	loop := reactor.NewLoop(sysselect.NewSelector(), server)
	return loop.Run(ctx)
}

func runConnect(ctx context.Context, port uint16, message string) error {
	sockets := syssock.NewProvider()

	done := make(chan struct{})

	events := reactor.ClientEvents{
		Connected: func() {
			fmt.Println("connected")
		},
		GotMessage: func(message []byte) {
			fmt.Printf("received: %q\n", message)
		},
		ConnectionRefused: func() {
			fmt.Println("connection refused")
			close(done)
		},
	}

	client := reactor.NewMessageClient(sockets, events)
	defer func() {
		if client.IsConnected() {
			_ = client.Disconnect()
		}
	}()

	if err := client.StartConnecting(port); err != nil {
		return fmt.Errorf("reactorctl: failed to connect to port %d: %w", port, err)
	}

	if message != "" {
		client.QueueMessage(append([]byte(message), 0))
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	sel := sysselect.NewSelector()
	loop := reactor.NewLoop(sel, client)

	for client.IsActive() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		default:
		}
		if err := loop.Step(); err != nil {
			return err
		}
	}

	return nil
}
