// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"
)

// options holds the flag values shared by every command.
type options struct {
	configPath string
	logLevel   string
	logDir     string
	jsonLogs   bool
	cacheDir   string
	auto       []string

	// serve
	port       int
	watch      bool
	workspaces []string

	// run
	workspace string
	timeout   int
}

// newRootCommand builds the command tree with fresh flag state.
func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "workspaced",
		Short:         "Hosts workspace components behind an HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Global component configuration (YAML or JSON)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&opts.logDir, "log-dir", "", "Directory for daily JSON log files")
	pf.BoolVar(&opts.jsonLogs, "json", false, "Force JSON console logs")
	pf.StringVar(&opts.cacheDir, "cache-dir", "", "Persist lint results in a badger database at this directory")
	pf.StringSliceVar(&opts.auto, "auto", nil, "Components attached to every workspace automatically")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	serveCmd.Flags().IntVarP(&opts.port, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload --config when it changes")
	serveCmd.Flags().StringSliceVarP(&opts.workspaces, "workspace", "w", nil, "Workspace roots to open at startup")

	runCmd := &cobra.Command{
		Use:   "run <component> <method> [args...]",
		Short: "Call one component operation and print the result as JSON",
		Long: `Call one component operation and print the result as JSON.

Each argument is parsed as JSON when it is valid JSON and passed as a string
otherwise, so 'run lint lint app.d' and 'run lint lintFiles ["a.d","b.d"]'
both work. Without --workspace the operation runs in global scope.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, opts, args)
		},
	}
	runCmd.Flags().StringVarP(&opts.workspace, "workspace", "w", "", "Workspace root to open")
	runCmd.Flags().IntVar(&opts.timeout, "timeout", 60, "Seconds to wait for the result")

	componentsCmd := &cobra.Command{
		Use:   "components",
		Short: "List the registered components and their operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComponents(cmd, opts)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run:   runVersion,
	}

	rootCmd.AddCommand(serveCmd, runCmd, componentsCmd, versionCmd)
	return rootCmd
}
