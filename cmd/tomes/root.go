package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/readwell/tomes"
	"github.com/readwell/tomes/pkg/config"
	"github.com/readwell/tomes/pkg/logger"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "tomes",
		Short: "Tomes: hybrid retrieval over a personal book library",
		Long: `Tomes indexes books into a chunked, embedded, concept-graphed library
and answers questions over it by combining semantic search with typed
graph traversal. Every answer cites the passages it came from.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tomes.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tomes")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// withLibrary loads configuration, opens the library, runs fn, and
// closes the library again. Every subcommand that touches the store goes
// through it.
func withLibrary(fn func(ctx context.Context, lib *tomes.Library) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	lib, err := tomes.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}
	defer lib.Close(ctx)

	return fn(ctx, lib)
}
