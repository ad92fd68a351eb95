package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkhead/internal/config"
	"github.com/rshade/bulkhead/internal/logging"
)

// ctxKey is the type for values this package stores on the command context.
type ctxKey string

// configKey carries the loaded config.Config on the command context.
const configKey ctxKey = "config"

// setupLogging loads the configuration, configures the root logger from it
// (honoring the --debug flag), and stores both on the command context.
func setupLogging(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	loggingCfg := cfg.Logging
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		loggingCfg.Level = "debug"
		loggingCfg.Format = "console"
	}

	root := logging.NewLogger(loggingCfg.ToLoggingConfig())
	logger = logging.ComponentLogger(root, "cli")

	ctx := logging.WithContext(cmd.Context(), root)
	ctx = context.WithValue(ctx, configKey, cfg)
	cmd.SetContext(ctx)

	logger.Debug().Str("command", cmd.Name()).Msg("command started")
	return nil
}

// configFromCmd returns the config loaded during setupLogging, or the
// defaults when none was stored (direct RunE invocation in tests).
func configFromCmd(cmd *cobra.Command) config.Config {
	if cfg, ok := cmd.Context().Value(configKey).(config.Config); ok {
		return cfg
	}
	return config.Default()
}
