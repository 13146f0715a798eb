package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/tick/internal/config"
	"github.com/aretw0/tick/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "tick",
	Short: "Tick is a goal-driven dialog engine",
	Long: `Tick runs conversations described by a story: actions with input and output
contexts, intents that name goals and a state machine that routes them.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaults := config.Default()
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Host configuration file (YAML)")
	flags.String("handlers", "handlers.yaml", "Process handlers configuration (YAML or JSON)")
	flags.String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-format", defaults.LogFormat, "Log format (text, json)")
	flags.String("store", defaults.Store, "Session store (memory, file, redis, postgres, sqlite)")
	flags.String("dsn", defaults.DSN, "Session store location")
	flags.Duration("lock-ttl", defaults.LockTTL, "Expiry of distributed conversation locks")
	flags.Duration("session-ttl", defaults.SessionTTL, "Expiry of idle sessions (memory and redis)")
}

// hostConfig merges the config file, when given, with explicitly set flags.
func hostConfig(cmd *cobra.Command) (*config.Host, error) {
	h := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		h = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		h.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		h.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("store") {
		h.Store, _ = flags.GetString("store")
	}
	if flags.Changed("dsn") {
		h.DSN, _ = flags.GetString("dsn")
	}
	if flags.Changed("lock-ttl") {
		h.LockTTL, _ = flags.GetDuration("lock-ttl")
	}
	if flags.Changed("session-ttl") {
		h.SessionTTL, _ = flags.GetDuration("session-ttl")
	}
	if flags.Lookup("addr") != nil && flags.Changed("addr") {
		h.Addr, _ = flags.GetString("addr")
	}
	if flags.Lookup("metrics") != nil && flags.Changed("metrics") {
		h.Metrics, _ = flags.GetBool("metrics")
	}
	if key := os.Getenv("TICK_ENCRYPTION_KEY"); key != "" {
		h.EncryptionKey = key
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func newLogger(h *config.Host) *slog.Logger {
	return logging.New(h.Level(), logging.WithFormat(h.LogFormat))
}
