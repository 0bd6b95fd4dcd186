package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/livefir/livelist/internal/config"
	"github.com/livefir/livelist/internal/logger"
)

// Version information (can be overridden at build time with -ldflags)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "livelist",
	Short: "livelist - a live, incrementally reconciled list of people",
	Long: `livelist keeps a list view in step with a SQLite table and announces
every change as a small set of row operations.

Available commands:
  migrate  - Apply database migrations
  seed     - Insert fake people
  churn    - Insert, delete and rename people at an interval
  serve    - Serve the list to browsers over WebSocket
  watch    - Follow the list in the terminal

Configuration is read from livelist.yaml, LIVELIST_* environment variables
and flags, in increasing order of precedence.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "livelist version %s\n", version)
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					if commit == "unknown" {
						commit = setting.Value
					}
				case "vcs.time":
					if date == "unknown" {
						date = setting.Value
					}
				}
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n  built:  %s\n", commit, date)
	},
}

// settings holds flags, environment and defaults for the config file layer.
var settings = newSettings()

func newSettings() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("LIVELIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", config.FileName, "Path of the config file")
	pf.String("db", "", "Path of the SQLite database (overrides config)")
	pf.String("driver", "", "SQLite driver: sqlite or sqlite3")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	pf.Bool("log-json", false, "Log JSON lines")

	if err := bindFlags(pf, map[string]string{
		"config":    "config",
		"db":        "database.path",
		"driver":    "database.driver",
		"log-level": "log.level",
		"log-json":  "log.json",
	}); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(migrateCmd, seedCmd, churnCmd, serveCmd, watchCmd, versionCmd)
}

// bindFlags binds flags to settings keys.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		if err := settings.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return errors.Wrapf(err, "bind flag %s", flag)
		}
	}
	return nil
}

// bindOnRun binds the local flags of a command when it runs. Several
// commands share flag names, and a key can only be bound to one flag.
func bindOnRun(keys map[string]string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), keys)
	}
}

// loadConfig reads the config file and applies every setting given by flag
// or environment on top of it.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, err
	}

	for key, field := range stringSettings(cfg) {
		if v.IsSet(key) {
			*field = v.GetString(key)
		}
	}
	for key, field := range boolSettings(cfg) {
		if v.IsSet(key) {
			*field = v.GetBool(key)
		}
	}
	for key, field := range durationSettings(cfg) {
		if v.IsSet(key) {
			*field = v.GetDuration(key)
		}
	}
	if v.IsSet("list.page_size") {
		cfg.List.PageSize = v.GetInt("list.page_size")
	}
	if v.IsSet("list.grouping_key") {
		cfg.List.GroupingKey = v.GetString("list.grouping_key")
		cfg.List.Grouping = cfg.List.GroupingKey != ""
		if !v.IsSet("list.order_by") {
			cfg.List.OrderBy = cfg.List.GroupingKey
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func stringSettings(cfg *config.Config) map[string]*string {
	return map[string]*string{
		"database.path":   &cfg.Database.Path,
		"database.driver": &cfg.Database.Driver,
		"server.address":  &cfg.Server.Address,
		"log.level":       &cfg.Log.Level,
		"list.order_by":   &cfg.List.OrderBy,
	}
}

func boolSettings(cfg *config.Config) map[string]*bool {
	return map[string]*bool{
		"log.json":              &cfg.Log.JSON,
		"server.tokens":         &cfg.Server.Tokens,
		"list.automatic_update": &cfg.List.AutomaticUpdate,
		"list.animate_changes":  &cfg.List.AnimateChanges,
		"list.fold_labels":      &cfg.List.FoldLabels,
		"list.load_more":        &cfg.List.LoadMore,
	}
}

func durationSettings(cfg *config.Config) map[string]*time.Duration {
	return map[string]*time.Duration{
		"database.debounce": &cfg.Database.Debounce,
		"server.token_ttl":  &cfg.Server.TokenTTL,
		"churn.interval":    &cfg.Churn.Interval,
	}
}

// setup loads the configuration and builds the logger. A non-empty logFile
// sends the log there instead of stderr.
func setup(logFile string) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(settings)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Options{JSON: cfg.Log.JSON, Level: cfg.Log.Level, File: logFile})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
