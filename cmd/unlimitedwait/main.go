// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Command unlimitedwait drives the wait engine and the one-shot wait with
// many simultaneously signalled objects and reports what was delivered.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "unlimitedwait",
	Short: "Stress driver for the unlimited wait engine",
	Long: `unlimitedwait registers far more kernel objects than a native
multi-object wait accepts, signals them at random and counts the
notifications delivered by the engine or the one-shot wait.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(engineCmd)
	rootCmd.AddCommand(oneshotCmd)
	rootCmd.AddCommand(reportCmd)

	rootCmd.PersistentFlags().String("config", "", "TOML settings file")
	rootCmd.PersistentFlags().String("backend", "", "platform backend (native|sim)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
