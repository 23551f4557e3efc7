package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/starford/quill/internal"
	"github.com/starford/quill/internal/api"
)

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a JWT for the API (auth.mode: jwt)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Value: "quill-cli", Usage: "Token subject"},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "Token lifetime"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth.Mode != internal.AuthModeJWT {
				return fmt.Errorf("auth.mode is %q, tokens are only used in %q mode", cfg.Auth.Mode, internal.AuthModeJWT)
			}
			token, err := api.IssueToken(cfg.Auth.Secret(), cmd.String("subject"), cmd.Duration("ttl"))
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Println(token)
			return nil
		},
	}
}
