package main

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/starford/quill/internal"
	"github.com/starford/quill/internal/kv"
	"github.com/starford/quill/internal/mcpserver"
)

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)

	svc, store, closeStore, err := internal.OpenService(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if fsStore, ok := store.(*kv.FS); ok && cfg.Storage.Watch {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := fsStore.Watch(watchCtx, logger, svc.Reload); err != nil {
				logger.Warn("watcher unavailable", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc).ServeStdio()
}
