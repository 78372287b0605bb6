// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the digitize CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the digitize CLI.
var rootCmd = &cobra.Command{
	Use:   "digitize",
	Short: "Manage digitization projects for archival scans",
	Long: `digitize manages a digitization project: it lays out one directory per
catalogued item, renames raw page scans to the <item>_<NNN>.tif convention,
produces access derivatives (JP2 or JPG images and one searchable PDF per
item), and mirrors finished items to remote storage.

Every stage is idempotent. Re-running a command skips work that is already
done, so a batch can be restarted after a failure without redoing finished
items.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is normal.
		_ = godotenv.Load()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./digitize.yaml or ~/.config/digitize/digitize.yaml)")
	flags.String("base-dir", "", "output directory holding one subdirectory per collection")
	flags.String("metadata", "", "metadata CSV describing the collection's items")
	flags.String("remote-root", "", "existing directory that receives per-collection mirrors")
	flags.String("derivative", "", "access derivative format: jp2 or jpg (default jp2)")
	flags.Bool("strict", false, "match derivatives to scans by filename instead of by count")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")

	bindFlag("base_dir", "base-dir")
	bindFlag("metadata", "metadata")
	bindFlag("remote_root", "remote-root")
	bindFlag("derivative", "derivative")
	bindFlag("strict_derivatives", "strict")
	bindFlag("log.level", "log-level")
	bindFlag("log.format", "log-format")

	viper.SetEnvPrefix("DIGITIZE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("base_dir", ".")
	viper.SetDefault("derivative", "jp2")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag, err))
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("digitize")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "digitize"))
		}
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
