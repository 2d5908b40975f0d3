// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the m1 CLI, a command-line front end
// to the retrosynthesis batch-scoring service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/m1score/internal/ledger"
	"github.com/pdiddy/m1score/internal/secrets"
	"github.com/pdiddy/m1score/pkg/logger"
	"github.com/pdiddy/m1score/pkg/m1"
	"github.com/pdiddy/m1score/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// log is the CLI logger, built from log.level and log.format.
var log = logger.NewNop()

// rootCmd is the base command for the m1 CLI.
var rootCmd = &cobra.Command{
	Use:   "m1",
	Short: "Submit and track retrosynthesis batch searches",
	Long: `m1 talks to the Molecule One batch-scoring service. It submits batches of
target molecules, polls them until scoring finishes, fetches results, and
deletes searches that are no longer needed.

Searches submitted from this machine are remembered in a local ledger so
they can be listed and re-polled later (see m1 list --local).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(viper.GetString("secrets_dir"))
		if err != nil {
			return err
		}
		loadedSecrets = s

		l, err := logger.New(logger.Config{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		})
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		log = l

		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.Debug("loaded secrets", logger.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./m1.yaml or ~/.config/m1/m1.yaml)")
	pf.String("token", "", "API token (overrides M1_API_TOKEN and .secrets/m1-api-token)")
	pf.String("base-url", types.DefaultBaseURL, "service origin")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")
	pf.String("ledger", defaultLedgerPath(), "ledger database path (empty disables the ledger)")

	_ = viper.BindPFlag("base_url", pf.Lookup("base-url"))
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = viper.BindPFlag("ledger.path", pf.Lookup("ledger"))

	viper.SetDefault("secrets_dir", ".secrets/")
	viper.SetDefault("api_token", "")
	viper.SetDefault("api_version", types.DefaultAPIVersion)
	viper.SetDefault("token_version", types.DefaultTokenVersion)
	viper.SetDefault("poll_interval", types.DefaultPollInterval)
	viper.SetDefault("http.timeout", types.DefaultTimeout)
	viper.SetDefault("http.user_agent", "")
	viper.SetDefault("http.rate_limit", 0)
	viper.SetDefault("retry.total", types.DefaultRetryTotal)
	viper.SetDefault("retry.connect", types.DefaultRetryConnect)
	viper.SetDefault("retry.backoff_factor", types.DefaultBackoffFactor)
	viper.SetDefault("retry.max_backoff", types.DefaultMaxBackoff)
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("m1")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "m1"))
		}
	}

	viper.SetEnvPrefix("M1")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func defaultLedgerPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "m1", "ledger.db")
}

// clientConfig assembles the client configuration from viper and resolves
// the API token: --token, then M1_API_TOKEN or api_token in the config
// file, then .secrets/m1-api-token.
func clientConfig(cmd *cobra.Command) (types.ClientConfig, error) {
	var cfg types.ClientConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = viper.GetString("api_token")
	}
	cfg.Token = secrets.Lookup(loadedSecrets, secrets.APITokenKey, token)
	if cfg.Token == "" {
		return cfg, fmt.Errorf("no API token: pass --token, set M1_API_TOKEN, or write .secrets/%s", secrets.APITokenKey)
	}
	return cfg, nil
}

func newClient(cmd *cobra.Command) (*m1.Client, error) {
	cfg, err := clientConfig(cmd)
	if err != nil {
		return nil, err
	}
	return m1.NewClient(cfg, m1.WithLogger(log))
}

// openLedger opens the configured ledger. It returns nil without error when
// the ledger is disabled.
func openLedger() (*ledger.Ledger, error) {
	var cfg types.LedgerConfig
	if err := viper.UnmarshalKey("ledger", &cfg); err != nil {
		return nil, fmt.Errorf("reading ledger config: %w", err)
	}
	if cfg.Path == "" {
		return nil, nil
	}
	return ledger.Open(cfg)
}

// withLedger runs fn against the ledger when one is configured. Ledger
// failures are logged, never returned: the remote operation already
// happened.
func withLedger(fn func(*ledger.Ledger) error) {
	l, err := openLedger()
	if err != nil {
		log.Warn("ledger unavailable", logger.Error(err))
		return
	}
	if l == nil {
		return
	}
	defer l.Close()
	if err := fn(l); err != nil {
		log.Warn("ledger update failed", logger.Error(err))
	}
}

// commandContext returns a context cancelled on SIGINT or SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
