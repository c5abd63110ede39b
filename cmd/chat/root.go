package main

import (
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Rental marketplace messaging tools",
		Long: `chat signs access tokens for local testing and runs the interactive
messaging client against the message store and the broker.`,
		SilenceUsage: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddCommand(
		NewTokenCommand(),
		NewClientCommand(),
	)

	return cmd
}
