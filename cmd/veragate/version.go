// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/veragate/internal/audit"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of veragate",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("veragate %s (prompts %s)\n", version, audit.PromptVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
