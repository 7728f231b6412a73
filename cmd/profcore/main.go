// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

// Command profcore drives the profile model and symbolication engine
// from the command line: a symbolicate subcommand parses every binary
// under the given paths and reports its debug id and symbol count,
// serve exposes the Tecken-compatible HTTP API, and gc runs the
// cache's eviction pass (§2.4).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracewell/profcore/internal/xlog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "profcore",
		Short: "profcore symbolicates and inspects sampling profiles",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := xlog.LevelInfo
		if verbose {
			level = xlog.LevelDebug
		}
		rootLogger = xlog.NewFilter(xlog.NewStdLogger(os.Stderr), xlog.FilterLevel(level))
	}

	root.AddCommand(newSymbolicateCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newGCCmd())
	return root
}

// rootLogger is set by the root command's PersistentPreRun once flags
// are parsed, so subcommands pick up --verbose without threading a
// logger through cobra's RunE signature.
var rootLogger xlog.Logger = xlog.Nop
