package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kneutral-org/ops-worker/internal/lock"
	"github.com/kneutral-org/ops-worker/internal/logging"
)

// Version can be overridden at build time with -ldflags "-X main.Version=v1.0.0".
var Version = "dev"

// cli holds state shared by subcommands.
type cli struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "lockctl",
		Short: "Run commands under a named advisory lock",
		Long: `lockctl runs a command only if the named lock can be acquired immediately,
so a cron entry installed on every worker host runs on at most one of them at a time.

Configuration is read from flags, LOCKCTL_* environment variables and an
optional YAML config file.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.lockctl.yaml)")
	flags.String("backend", string(lock.BackendPostgres), "lock backend: postgres, redis or file")
	flags.String("dsn", "", "postgres connection string, redis URL or lock directory")
	flags.Duration("statement-timeout", lock.DefaultStatementTimeout, "timeout for each lock service round trip")
	flags.Duration("redis-ttl", lock.DefaultRedisTTL, "safety expiry for redis locks")
	flags.String("log-level", "warn", "log level")

	for _, name := range []string{"backend", "dsn", "statement-timeout", "redis-ttl", "log-level"} {
		_ = c.v.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(newRunCmd(c), newKeyCmd())
	return rootCmd
}

// initConfig reads in config file and ENV variables if set.
func (c *cli) initConfig() error {
	c.v.SetEnvPrefix("LOCKCTL")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()
	_ = c.v.BindEnv("dsn", "LOCKCTL_DSN", "DATABASE_URL")

	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
		if err := c.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	c.v.AddConfigPath(home)
	c.v.SetConfigType("yaml")
	c.v.SetConfigName(".lockctl")

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func (c *cli) lockConfig() lock.Config {
	return lock.Config{
		Backend:          lock.Backend(c.v.GetString("backend")),
		DSN:              c.v.GetString("dsn"),
		StatementTimeout: c.v.GetDuration("statement-timeout"),
		RedisTTL:         c.v.GetDuration("redis-ttl"),
	}
}

func (c *cli) logger() zerolog.Logger {
	return logging.NewCLILogger("lockctl", c.v.GetString("log-level"))
}
