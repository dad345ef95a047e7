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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/workspaced/pkg/logging"
	"github.com/AleutianAI/workspaced/services/workspaced"
)

// runOnce opens the workspace if one is given, calls one operation and
// prints its result.
func runOnce(cmd *cobra.Command, opts *options, args []string) error {
	comp, method := args[0], args[1]
	callArgs := make([]any, 0, len(args)-2)
	for _, raw := range args[2:] {
		callArgs = append(callArgs, parseArg(raw))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(opts.timeout)*time.Second)
	defer cancel()

	a, err := newApp(ctx, opts, cmd.ErrOrStderr(), logging.LevelWarn)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	var result any
	if opts.workspace == "" {
		result, err = a.host.RunGlobal(ctx, comp, method, callArgs).Await(ctx)
	} else {
		inst, aerr := a.host.AddInstance(ctx, opts.workspace, nil, []string{comp})
		if aerr != nil {
			return aerr
		}
		result, err = a.host.Run(ctx, inst.Root(), comp, method, callArgs).Await(ctx)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

// parseArg decodes raw as JSON, keeping integers distinct from floats.
// Anything that is not a single JSON value is passed as a string.
func parseArg(raw string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	if dec.More() {
		return raw
	}
	return v
}

// printJSON writes v indented when w is a terminal and compact otherwise.
func printJSON(w io.Writer, v any) error {
	var (
		data []byte
		err  error
	)
	if isTerminal(w) {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// =============================================================================
// COMPONENTS AND VERSION
// =============================================================================

// runComponents prints every registered component and its operations.
func runComponents(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts, cmd.ErrOrStderr(), logging.LevelWarn)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	out := cmd.OutOrStdout()
	for _, info := range a.host.Components() {
		fmt.Fprintf(out, "%s %s", info.Name, info.Version)
		if info.AutoRegister {
			fmt.Fprint(out, " (auto)")
		}
		fmt.Fprintf(out, "\n  %s\n", info.Description)
		w, ok := a.host.Global(info.Name)
		if !ok {
			fmt.Fprintln(out, "  not bound in global scope")
			continue
		}
		for _, m := range w.Operations().Methods() {
			for _, sig := range m.Signatures {
				fmt.Fprintf(out, "  %s\n", sig)
			}
		}
	}
	return nil
}

func runVersion(cmd *cobra.Command, _ []string) {
	fmt.Fprintf(cmd.OutOrStdout(), "workspaced %s\n", workspaced.ServiceVersion)
}
