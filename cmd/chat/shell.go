package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"rental-messenger/messenger"
	"rental-messenger/model"
)

// ErrQuit ends the interactive loop.
var ErrQuit = errors.New("quit")

// Shell is the part of a session the interactive commands drive.
type Shell interface {
	Reconnect(ctx context.Context) error
	Close()
	State() messenger.State
	Open(ctx context.Context, counterpart model.Identity) error
	Thread(counterpart model.Identity) []model.Message
	Send(ctx context.Context, to model.Identity, content string) (model.Message, error)
	Publish(ctx context.Context, to model.Identity, content string) error
}

// Execute runs one input line against a fresh command tree. Blank lines are ignored.
func Execute(ctx context.Context, s Shell, out io.Writer, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	cmd := NewShellCommand(ctx, s, out)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// NewShellCommand builds the tree of interactive commands typed at the client prompt.
func NewShellCommand(ctx context.Context, s Shell, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "client",
		Short:         "Interactive client commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(out)
	root.SetErr(out)

	root.AddCommand(
		&cobra.Command{
			Use:   "r",
			Short: "Reconnect",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return s.Reconnect(ctx)
			},
		},
		&cobra.Command{
			Use:   "c",
			Short: "Close the open conversation",
			Args:  cobra.NoArgs,
			Run: func(_ *cobra.Command, _ []string) {
				s.Close()
			},
		},
		&cobra.Command{
			Use:   "s",
			Short: "Connection state",
			Args:  cobra.NoArgs,
			Run: func(_ *cobra.Command, _ []string) {
				state := s.State()
				fmt.Fprintf(out, "%s %s retries=%d exhausted=%t\n", state.Identity, state.Status, state.RetryCount, state.Exhausted)
			},
		},
		&cobra.Command{
			Use:   "o <kind:id>",
			Short: "Open a conversation",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				counterpart, err := parseTarget(args[0])
				if err != nil {
					return err
				}
				err = s.Open(ctx, counterpart)
				printThread(out, s.Thread(counterpart))
				return err
			},
		},
		&cobra.Command{
			Use:   "t <kind:id>",
			Short: "Show a conversation",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				counterpart, err := parseTarget(args[0])
				if err != nil {
					return err
				}
				printThread(out, s.Thread(counterpart))
				return nil
			},
		},
		&cobra.Command{
			Use:                "m <kind:id> <text>",
			Short:              "Send through the store",
			Args:               cobra.MinimumNArgs(2),
			DisableFlagParsing: true,
			RunE: func(_ *cobra.Command, args []string) error {
				counterpart, err := parseTarget(args[0])
				if err != nil {
					return err
				}
				_, err = s.Send(ctx, counterpart, strings.Join(args[1:], " "))
				return err
			},
		},
		&cobra.Command{
			Use:                "p <kind:id> <text>",
			Short:              "Publish through the transport",
			Args:               cobra.MinimumNArgs(2),
			DisableFlagParsing: true,
			RunE: func(_ *cobra.Command, args []string) error {
				counterpart, err := parseTarget(args[0])
				if err != nil {
					return err
				}
				return s.Publish(ctx, counterpart, strings.Join(args[1:], " "))
			},
		},
		&cobra.Command{
			Use:   "q",
			Short: "Quit",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return ErrQuit
			},
		},
	)

	return root
}

func parseTarget(arg string) (model.Identity, error) {
	kind, id, ok := strings.Cut(arg, ":")
	if !ok {
		return model.Identity{}, fmt.Errorf("expected kind:id, got %q", arg)
	}
	return model.ParseIdentity(kind, id)
}

func printThread(out io.Writer, thread []model.Message) {
	for _, msg := range thread {
		fmt.Fprintf(out, "  [%s] %s: %s\n", msg.CreatedAt.Format("2006-01-02 15:04"), msg.Sender(), msg.Preview())
	}
}
