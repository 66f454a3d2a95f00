// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

/*
Command discovery-engine is the batch CLI and daemon entrypoint for
the plant-based menu discovery engine.

Subcommands:

  - run: runs one pass (discovery, extraction and a sync preview in
    sequence), then hosts the HTTP API
    (GET /nearby, admin review/sync, /metrics) until interrupted.
  - discovery: runs one discovery pass and exits.
  - extraction: runs one extraction pass and exits.
  - review: applies the automated verifier to the pending queue and
    exits.
  - sync: previews (or, with --wet-run, executes) a sync pass and
    exits.

Flags (shared across every subcommand):

	--config string   path to a JSON config file (overrides CONFIG_PATH
	                  search order)
	--dry-run         skip persistence/promotion side effects
	--wet-run         (sync only) execute instead of preview
	--verbose         raise log verbosity to debug
	--help            print usage and exit 0

Exit codes: 0 success, 1 fatal run error, 2 misconfiguration.

Configuration layering, logging, and the supervisor tree follow the
same pattern as cmd/server: config.Load, then logging.Init, then a
suture-based supervisor tree for anything long-running.
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printTopLevelUsage()
		return 2
	}

	sub := args[0]
	if sub == "--help" || sub == "-h" {
		printTopLevelUsage()
		return 0
	}

	opts, err := parseFlags(sub, args[1:])
	if err == errHelpRequested {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "discovery-engine:", err)
		return 2
	}

	switch sub {
	case "run":
		return cmdRun(opts)
	case "discovery":
		return cmdDiscovery(opts)
	case "extraction":
		return cmdExtraction(opts)
	case "review":
		return cmdReview(opts)
	case "sync":
		return cmdSync(opts)
	default:
		fmt.Fprintf(os.Stderr, "discovery-engine: unknown subcommand %q\n", sub)
		printTopLevelUsage()
		return 2
	}
}

func printTopLevelUsage() {
	fmt.Fprintln(os.Stderr, `usage: discovery-engine <run|discovery|extraction|review|sync> [flags]

flags:
  --config string   path to a JSON config file
  --dry-run         skip persistence/promotion side effects
  --wet-run         (sync only) execute instead of preview
  --verbose         raise log verbosity to debug
  --help            print usage and exit 0`)
}
