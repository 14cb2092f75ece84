// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the effective settings and platform probes",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, _ []string) error {
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "# effective settings")
	if err := toml.NewEncoder(out).Encode(sess.settings); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	fmt.Fprintln(out)
	printMap(out, "probes", sess.waiter.DebugState())
	return nil
}

func printMap(out io.Writer, title string, m map[string]any) {
	fmt.Fprintf(out, "# %s\n", title)
	for _, k := range slices.Sorted(maps.Keys(m)) {
		fmt.Fprintf(out, "%-32s %v\n", k, m[k])
	}
}
