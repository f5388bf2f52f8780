package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"Vid2News/internal/app"
	"Vid2News/internal/config"
	"Vid2News/internal/logging"
)

type commandContext struct {
	configFlag *string
	deskFlag   *string

	configOnce sync.Once
	config     config.Config
}

func (c *commandContext) ensureConfig() config.Config {
	c.configOnce.Do(func() {
		c.config = config.LoadFrom(strings.TrimSpace(*c.configFlag))
	})
	return c.config
}

func (c *commandContext) logger() *slog.Logger {
	cfg := c.ensureConfig()
	return logging.NewWithFormat(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
}

func (c *commandContext) desk() string {
	return strings.TrimSpace(*c.deskFlag)
}

// withApp validates the configuration, builds the application and closes it afterwards.
func (c *commandContext) withApp(ctx context.Context, fn func(*app.Application) error) error {
	cfg := c.ensureConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	application, err := app.New(ctx, cfg, c.logger())
	if err != nil {
		return err
	}
	defer application.Close()
	return fn(application)
}

func newRootCommand() *cobra.Command {
	var configFlag, deskFlag string
	ctx := &commandContext{configFlag: &configFlag, deskFlag: &deskFlag}

	rootCmd := &cobra.Command{
		Use:           "vid2news",
		Short:         "Turn video transcripts into reviewed news posts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "YAML configuration file (defaults to $VID2NEWS_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&deskFlag, "desk", "d", "", "Run only this desk")

	rootCmd.AddCommand(newJobCommand(ctx, "generate", "Fetch, extract, cluster and write posts for review"))
	rootCmd.AddCommand(newJobCommand(ctx, "analyze", "Score pending posts and approve or reject them"))
	rootCmd.AddCommand(newJobCommand(ctx, "publish", "Publish the best approved post of each desk"))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))

	return rootCmd
}
