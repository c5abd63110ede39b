package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rental-messenger/config"
	"rental-messenger/model"
	"rental-messenger/utils"
)

func NewTokenCommand() *cobra.Command {
	var (
		kind string
		id   int64
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token for one participant",
		Args:  cobra.NoArgs,
		Example: `  chat token --kind user --id 42
  chat token --kind merchant --id 7`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			identity, err := model.ParseIdentity(kind, strconv.FormatInt(id, 10))
			if err != nil {
				return err
			}
			cfg, err := config.LoadToken()
			if err != nil {
				return err
			}
			token, err := utils.GenerateToken(identity, cfg.JWTAccessKey, time.Duration(cfg.JWTAccessExpire)*time.Minute)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(model.KindUser), "Participant kind: user or merchant")
	cmd.Flags().Int64Var(&id, "id", 0, "Participant id")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
