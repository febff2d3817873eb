package main

import (
	"context"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"actionfigure/internal/bootstrap"
	"actionfigure/internal/infra"
	"actionfigure/internal/infra/credentials"
)

type commandContext struct {
	envFile  *string
	logLevel *string
	noColor  *bool

	once       sync.Once
	cfg        *infra.Config
	logger     infra.Logger
	components *bootstrap.Components
	err        error
	closers    []func()
}

func newRootCommand() *cobra.Command {
	var envFile, logLevel string
	var noColor bool
	ctx := &commandContext{envFile: &envFile, logLevel: &logLevel, noColor: &noColor}

	rootCmd := &cobra.Command{
		Use:           "figure",
		Short:         "Turn a photo into an action figure render",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newTraitsCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newMemeCommand(ctx))
	return rootCmd
}

func (c *commandContext) styles() styles {
	return newStyles(!*c.noColor)
}

// ensure loads configuration and builds the pipeline once per invocation.
func (c *commandContext) ensure(ctx context.Context) (*bootstrap.Components, error) {
	c.once.Do(func() {
		if path := strings.TrimSpace(*c.envFile); path != "" {
			_ = godotenv.Load(path)
		}
		cfg, err := infra.LoadConfig()
		if err != nil {
			c.err = err
			return
		}
		c.cfg = cfg
		c.logger = infra.NewLoggerWithLevel("cli", *c.logLevel)

		var store bootstrap.KeySource
		if cfg.DatabaseURL != "" && (cfg.OpenAIAPIKey == "" || cfg.LetzAIAPIKey == "") {
			pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
			if err != nil {
				c.logger.Warn().Err(err).Msg("credential store unavailable")
			} else {
				c.closers = append(c.closers, pool.Close)
				store = credentials.NewStore(infra.NewSQLRunner(pool, c.logger))
			}
		}
		keys := bootstrap.ResolveKeys(ctx, cfg, store, &c.logger)
		c.components, c.err = bootstrap.Build(cfg, keys, &c.logger)
	})
	return c.components, c.err
}

func (c *commandContext) close() {
	for _, fn := range c.closers {
		fn()
	}
	c.closers = nil
}
