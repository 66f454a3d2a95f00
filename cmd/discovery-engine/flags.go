// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

// runOptions holds the four value flags every subcommand shares
// (--help is handled by parseFlags and not stored), per spec.md §6's
// CLI contract.
type runOptions struct {
	configPath string
	dryRun     bool
	wetRun     bool
	verbose    bool
}

var errHelpRequested = errors.New("help requested")

// parseFlags builds a flag.FlagSet scoped to one subcommand. No
// spf13/cobra-style framework is used here: the example pack's own
// CLI tools (hack/ under the Karpenter example) reach for
// flag.NewFlagSet directly for this kind of small multi-command
// surface, and the one example repo that lists cobra in go.mod never
// actually imports it in any .go file — so there is nothing in the
// pack to ground a cobra-based CLI on.
func parseFlags(subcommand string, args []string) (runOptions, error) {
	fs := flag.NewFlagSet(subcommand, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts runOptions
	fs.StringVar(&opts.configPath, "config", "", "path to a JSON config file")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "skip persistence/promotion side effects")
	fs.BoolVar(&opts.wetRun, "wet-run", false, "(sync only) execute instead of preview")
	fs.BoolVar(&opts.verbose, "verbose", false, "raise log verbosity to debug")
	help := fs.Bool("help", false, "print usage and exit 0")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printSubcommandUsage(subcommand, fs)
			return opts, errHelpRequested
		}
		return opts, fmt.Errorf("parse flags: %w", err)
	}
	if *help {
		printSubcommandUsage(subcommand, fs)
		return opts, errHelpRequested
	}
	if opts.dryRun && opts.wetRun {
		return opts, errors.New("--dry-run and --wet-run are mutually exclusive")
	}
	return opts, nil
}

func printSubcommandUsage(subcommand string, fs *flag.FlagSet) {
	fmt.Printf("usage: discovery-engine %s [flags]\n\n", subcommand)
	fs.SetOutput(flagUsageWriter{})
	fs.PrintDefaults()
}

type flagUsageWriter struct{}

func (flagUsageWriter) Write(p []byte) (int, error) {
	fmt.Print(string(p))
	return len(p), nil
}
