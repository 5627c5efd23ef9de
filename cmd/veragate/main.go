// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the veragate CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/veragate/internal/logging"
	"github.com/pdiddy/veragate/internal/secrets"
	"github.com/pdiddy/veragate/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// appCfg is the resolved configuration, filled in before any subcommand runs.
var appCfg types.AppConfig

// logger is the process logger built from appCfg.Logging.
var logger = zap.NewNop()

// closeLogger flushes logger and releases its log file.
var closeLogger = func() error { return nil }

// rootCmd is the base command for the veragate CLI.
var rootCmd = &cobra.Command{
	Use:   "veragate",
	Short: "Forensic audit of site video against a specification PDF",
	Long: `veragate cross-references a video recording against a PDF document.
A Watcher model extracts timestamped observations from the video, then an
Auditor model correlates them with the document and reports contradictions
and verified facts.

Use serve to expose the streaming HTTP API, analyze to audit a pair of
local files, and runs to inspect stored run history.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dirSecrets, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		dotenv, err := secrets.LoadEnvFile(".env")
		if err != nil {
			return err
		}
		if len(dirSecrets) > 0 {
			keys := make([]string, 0, len(dirSecrets))
			for k := range dirSecrets {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}

		appCfg = loadConfig()
		p := &appCfg.Pipeline.Provider
		p.APIKey = secrets.Resolve(p.APIKey, dirSecrets, secrets.GeminiAPIKey, dotenv, secrets.GeminiEnvVar)
		appCfg.Archive.AccessKey = secrets.Resolve(appCfg.Archive.AccessKey, dirSecrets, secrets.ArchiveAccessKey, dotenv, "")
		appCfg.Archive.SecretKey = secrets.Resolve(appCfg.Archive.SecretKey, dirSecrets, secrets.ArchiveSecretKey, dotenv, "")

		l, closeLog, err := logging.NewLogger(appCfg.Logging.Level, appCfg.Logging.File)
		if err != nil {
			return err
		}
		logger = l
		closeLogger = closeLog
		zap.ReplaceGlobals(logger)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./veragate.yaml or ~/.config/veragate/veragate.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default info)")
	rootCmd.PersistentFlags().String("log-file", "", "write JSON logs to this file instead of stderr")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("veragate")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "veragate"))
		}
	}

	viper.SetEnvPrefix("VERAGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	err := rootCmd.Execute()
	if cerr := closeLogger(); cerr != nil {
		fmt.Fprintf(os.Stderr, "closing log: %v\n", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}
