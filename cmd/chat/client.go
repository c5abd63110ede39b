package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"

	"rental-messenger/config"
	"rental-messenger/event"
	"rental-messenger/model"
	"rental-messenger/session"
	"rental-messenger/store"
	"rental-messenger/unread"
)

func NewClientCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "client",
		Aliases: []string{"c"},
		Short:   "Run the interactive messaging client",
		Long: `client logs in with CHAT_TOKEN as CHAT_IDENTITY_KIND:CHAT_IDENTITY_ID, keeps the
conversation list and unread counters live, and reads commands from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClient(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runClient(parent context.Context, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	self, err := model.ParseIdentity(cfg.IdentityKind, strconv.FormatInt(cfg.IdentityID, 10))
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport := event.NewTransport(cfg.RabbitMQURL, cfg.Token, cfg.Heartbeat, cfg.ConnectTimeout, log)
	client := store.NewClient(cfg.StoreURL, cfg.Token, cfg.RequestTimeout, log)

	s, err := session.Login(ctx, self, transport, client, log, session.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}
	defer s.Logout()

	s.Subscribe(func(conversations []model.Conversation) { printConversations(out, conversations) })
	s.SubscribeUnread(func(snapshot unread.Snapshot) { fmt.Fprintf(out, "unread: %d\n", snapshot.Total) })
	fmt.Fprintln(out, NewShellCommand(ctx, s, out).UsageString())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := Execute(ctx, s, out, line); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}

func printConversations(w io.Writer, conversations []model.Conversation) {
	fmt.Fprintln(w, "conversations:")
	for _, c := range conversations {
		fmt.Fprintf(w, "  %-20s %-14s %3d unread  %s\n",
			c.Name, c.Counterpart, c.UnreadCount, c.LastMessage.Preview())
	}
}
