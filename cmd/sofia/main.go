package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ent0n29/sofia/internal/app"
	"github.com/ent0n29/sofia/internal/config"
	"github.com/ent0n29/sofia/internal/logging"
)

var version = "dev"

type rootOptions struct {
	bundlePath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "sofia",
		Short:         "Sofia, the conversational assistant for files, boards and company knowledge",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.bundlePath, "bundle", "", "YAML file overriding the embedded keyword bundle (default $SOFIA_BUNDLE_PATH)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (default $APP_LOG_LEVEL)")

	root.AddCommand(newChatCmd(opts), newServeCmd(opts), newExplainCmd(opts))
	return root
}

// build loads configuration from the environment, applies flag overrides
// and wires the application.
func build(ctx context.Context, opts *rootOptions, quiet bool) (*app.BuildResult, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}
	if opts.bundlePath != "" {
		cfg.BundlePath = opts.bundlePath
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if quiet && opts.logLevel == "" {
		// Keep the terminal for the conversation.
		cfg.LogLevel = "warn"
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return nil, nil, err
	}
	res, err := app.Build(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return res, logger, nil
}
