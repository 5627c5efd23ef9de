// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/veragate/internal/report"
	"github.com/pdiddy/veragate/internal/runstore"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored run history",
	Long: `Runs reads the SQLite run history written by serve. The store path comes
from --store, the store.path config key, or VERAGATE_STORE_PATH.`,
}

// --- list subcommand ---

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	format, err := runsFormat(cmd, "markdown")
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 && format == report.FormatMarkdown {
		fmt.Println("No runs recorded.")
		return nil
	}
	return report.WriteRunList(os.Stdout, format, runs)
}

// --- show subcommand ---

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its result and thinking log",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	format, err := runsFormat(cmd, "json")
	if err != nil {
		return err
	}

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Get(cmd.Context(), args[0])
	if errors.Is(err, runstore.ErrNotFound) {
		return fmt.Errorf("no run with id %s", args[0])
	}
	if err != nil {
		return err
	}
	return report.WriteRun(os.Stdout, format, run)
}

// --- shared helpers ---

func runsFormat(cmd *cobra.Command, fallback string) (report.Format, error) {
	name, _ := cmd.Flags().GetString("format")
	if name == "" {
		name = fallback
	}
	return report.ParseFormat(name)
}

func openHistory(cmd *cobra.Command) (*runstore.Store, error) {
	store, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("run history is not enabled: set --store or store.path")
	}
	return store, nil
}

func init() {
	runsCmd.PersistentFlags().String("store", "", "SQLite run history file")

	runsListCmd.Flags().Int("limit", 20, "maximum runs to list")
	runsListCmd.Flags().String("format", "", "output format: json, yaml, markdown (default markdown)")
	runsShowCmd.Flags().String("format", "", "output format: json, yaml, markdown (default json)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	rootCmd.AddCommand(runsCmd)
}
