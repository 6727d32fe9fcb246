package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fyuchan/pkg/console"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with Fyu-chan in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := buildOrchestrator()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return console.NewREPL(core, os.Stdin, os.Stdout, cfg.Reflection.Enabled, logger).Run(ctx)
	},
}
