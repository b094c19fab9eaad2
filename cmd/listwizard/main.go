package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions are the persistent flags that override loaded config.
type rootOptions struct {
	dbPath   string
	logLevel string
	mode     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "listwizard",
		Short:        "Guided listing creation wizard",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "draft database path (overrides db_path)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides log_level)")
	root.PersistentFlags().StringVar(&opts.mode, "mode", "", "development or production (overrides mode)")

	root.AddCommand(
		serveCmd(opts),
		mcpCmd(opts),
		fillCmd(opts),
		draftsCmd(opts),
		catalogCmd(opts),
		versionCmd(),
	)
	return root
}

func (o *rootOptions) config() (Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, err
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.mode != "" {
		cfg.Mode = o.mode
	}
	return cfg, nil
}

func (o *rootOptions) open(ctx context.Context) (*app, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}
