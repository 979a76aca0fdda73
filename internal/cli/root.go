// Package cli implements the stepflow command line.
package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vnykmshr/stepflow/internal/plan"
	"github.com/vnykmshr/stepflow/pkg/logging"
)

// Config keys. Nested keys map to STEPFLOW_* environment variables with dots
// replaced by underscores, e.g. STEPFLOW_REDIS_ADDR for redis.addr.
const (
	keyConfig       = "config"
	keyMode         = "mode"
	keyTimeout      = "timeout"
	keyLogLevel     = "log.level"
	keyLogFormat    = "log.format"
	keyMetricsAddr  = "metrics.addr"
	keyRedisAddr    = "redis.addr"
	keyRedisDB      = "redis.db"
	keyRedisChannel = "redis.channel"
)

type app struct {
	v        *viper.Viper
	executor plan.Executor
}

// NewRootCmd builds the stepflow command tree with its own configuration.
func NewRootCmd() *cobra.Command {
	return newRootCmd(plan.ShellExecutor{})
}

// Execute runs the stepflow command line.
func Execute() error {
	return NewRootCmd().Execute()
}

func newRootCmd(exe plan.Executor) *cobra.Command {
	a := &app{v: viper.New(), executor: exe}

	root := &cobra.Command{
		Use:   "stepflow",
		Short: "Run queues of shell steps in parallel or in sequence",
		Long: `stepflow loads a YAML plan of shell commands into a task queue and runs
it in parallel or one step at a time, with optional per-step and queue-wide
advisory timeouts, Prometheus metrics and Redis event fan-out.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.initConfig()
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default is ./stepflow.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")
	_ = a.v.BindPFlag(keyConfig, root.PersistentFlags().Lookup("config"))
	_ = a.v.BindPFlag(keyLogLevel, root.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag(keyLogFormat, root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(
		a.newRunCmd(),
		a.newListCmd(),
		a.newScheduleCmd(),
		a.newWatchCmd(),
	)
	return root
}

func (a *app) initConfig() {
	a.v.SetDefault(keyTimeout, "0s")
	a.v.SetDefault(keyLogLevel, "info")
	a.v.SetDefault(keyLogFormat, "text")
	a.v.SetDefault(keyRedisDB, 0)
	a.v.SetDefault(keyRedisChannel, "stepflow:events")

	if cfgFile := a.v.GetString(keyConfig); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		a.v.SetConfigName("stepflow")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		a.v.AddConfigPath("$HOME/.config/stepflow")
	}

	a.v.AutomaticEnv()
	a.v.SetEnvPrefix("STEPFLOW")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// Missing config files are fine; flags and env still apply.
	_ = a.v.ReadInConfig()
}

// bindFlags binds the command's flags to config keys. Commands share keys,
// so binding happens when the command runs rather than at construction.
func (a *app) bindFlags(cmd *cobra.Command, flags map[string]string) error {
	for key, name := range flags {
		if err := a.v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (a *app) logger(cmd *cobra.Command) *slog.Logger {
	return logging.New(cmd.ErrOrStderr(), a.v.GetString(keyLogFormat), a.v.GetString(keyLogLevel))
}
