// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/discovery"
	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/events"
	"github.com/plantedfoods/discovery-engine/internal/extraction"
	"github.com/plantedfoods/discovery-engine/internal/logging"
	"github.com/plantedfoods/discovery-engine/internal/review"
	"github.com/plantedfoods/discovery-engine/internal/supervisor"
	"github.com/plantedfoods/discovery-engine/internal/supervisor/services"
	"github.com/plantedfoods/discovery-engine/internal/syncengine"
)

func platformTags(raw []string) []domain.PlatformTag {
	tags := make([]domain.PlatformTag, len(raw))
	for i, p := range raw {
		tags[i] = domain.PlatformTag(p)
	}
	return tags
}

func discoveryRunConfig(a *app, opts runOptions) discovery.RunConfig {
	return discovery.RunConfig{
		Mode:       discovery.Mode(a.cfg.Discovery.Mode),
		Countries:  a.cfg.Discovery.Countries,
		Platforms:  platformTags(a.cfg.Discovery.Platforms),
		Chains:     a.cfg.Discovery.Chains,
		MaxQueries: a.cfg.Discovery.MaxQueries,
		DryRun:     opts.dryRun || a.cfg.Discovery.DryRun,
		Verbose:    opts.verbose,
	}
}

func extractionRunConfig(a *app, opts runOptions) extraction.RunConfig {
	return extraction.RunConfig{
		Target:    string(a.cfg.Extraction.Target),
		ChainID:   a.cfg.Extraction.ChainID,
		VenueIDs:  a.cfg.Extraction.VenueIDs,
		MaxVenues: a.cfg.Extraction.MaxVenues,
		DryRun:    opts.dryRun,
		Learn:     a.cfg.Extraction.Learn && !opts.dryRun,
	}
}

func cmdDiscovery(opts runOptions) int {
	ctx := context.Background()
	a, err := buildApp(ctx, opts)
	if err != nil {
		return misconfigured(err)
	}
	defer a.Close()

	plan, err := a.planner.Allocate(ctx, a.cfg.Discovery.MaxQueries, a.cfg.Discovery.Countries, platformTags(a.cfg.Discovery.Platforms))
	if err != nil {
		return fatal(err)
	}
	report, err := a.discovery.Run(ctx, plan, discoveryRunConfig(a, opts))
	if err != nil {
		return fatal(err)
	}
	printDiscoveryTable(plan, report)
	return exitForErrors(report.Errors)
}

func cmdExtraction(opts runOptions) int {
	ctx := context.Background()
	a, err := buildApp(ctx, opts)
	if err != nil {
		return misconfigured(err)
	}
	defer a.Close()

	report, err := a.extraction.Run(ctx, extractionRunConfig(a, opts))
	if err != nil {
		return fatal(err)
	}
	printExtractionTable(report)
	return exitForErrors(report.Errors)
}

func cmdReview(opts runOptions) int {
	ctx := context.Background()
	a, err := buildApp(ctx, opts)
	if err != nil {
		return misconfigured(err)
	}
	defer a.Close()

	pending, err := a.queue.ListPending(ctx, review.ListFilter{})
	if err != nil {
		return fatal(err)
	}

	var verified, rejected, needsReview int
	for _, venue := range pending {
		dishes, err := a.store.ListDiscoveredDishesByVenue(ctx, venue.ID)
		if err != nil {
			needsReview++
			continue
		}
		result, err := a.verifier.Apply(ctx, venue, dishes, opts.dryRun)
		if err != nil {
			needsReview++
			continue
		}
		switch result.Verdict {
		case review.VerdictVerify:
			verified++
		case review.VerdictReject:
			rejected++
		default:
			needsReview++
		}
	}
	printReviewTable(len(pending), verified, rejected, needsReview)
	return 0
}

func cmdSync(opts runOptions) int {
	ctx := context.Background()
	a, err := buildApp(ctx, opts)
	if err != nil {
		return misconfigured(err)
	}
	defer a.Close()

	preview, err := syncengine.Preview(ctx, a.store)
	if err != nil {
		return fatal(err)
	}

	if !opts.wetRun {
		printSyncPreviewTable(preview)
		return 0
	}

	ids := make([]string, 0, len(preview.Additions)+len(preview.Updates))
	for _, add := range preview.Additions {
		ids = append(ids, add.Venue.ID)
	}
	for _, upd := range preview.Updates {
		ids = append(ids, upd.Venue.ID)
	}
	record, err := a.sync.Execute(ctx, syncengine.ExecuteRequest{VenueIDs: ids, ActorID: "cli"})
	if err != nil {
		return fatal(err)
	}
	if emitErr := a.bus.Emit(ctx, events.TopicSyncExecuted, record); emitErr != nil {
		logging.Err(emitErr).Msg("sync event emit failed, continuing")
	}
	printSyncExecuteTable(record)
	return exitForEntityErrors(record.Errors)
}

func cmdRun(opts runOptions) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx, opts)
	if err != nil {
		return misconfigured(err)
	}
	defer a.Close()

	if code := runPipelinePass(ctx, a, opts); code != 0 {
		return code
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fatal(err)
	}
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler: a.server.SetupChi(),
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	logging.Info().Str("addr", server.Addr).Msg("discovery-engine serving")
	if err := tree.Serve(ctx); err != nil {
		return fatal(err)
	}
	return 0
}

// runPipelinePass runs discovery, extraction and a sync preview once,
// in sequence, before cmdRun starts serving HTTP.
func runPipelinePass(ctx context.Context, a *app, opts runOptions) int {
	plan, err := a.planner.Allocate(ctx, a.cfg.Discovery.MaxQueries, a.cfg.Discovery.Countries, platformTags(a.cfg.Discovery.Platforms))
	if err != nil {
		return fatal(err)
	}
	discReport, err := a.discovery.Run(ctx, plan, discoveryRunConfig(a, opts))
	if err != nil {
		return fatal(err)
	}
	printDiscoveryTable(plan, discReport)

	extReport, err := a.extraction.Run(ctx, extractionRunConfig(a, opts))
	if err != nil {
		return fatal(err)
	}
	printExtractionTable(extReport)

	preview, err := syncengine.Preview(ctx, a.store)
	if err != nil {
		return fatal(err)
	}
	printSyncPreviewTable(preview)
	return 0
}

func misconfigured(err error) int {
	fmt.Fprintln(os.Stderr, "discovery-engine: misconfiguration:", err)
	return 2
}

func fatal(err error) int {
	fmt.Fprintln(os.Stderr, "discovery-engine: fatal:", err)
	return 1
}

func exitForErrors(errs []string) int {
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "  -", e)
		}
	}
	return 0
}

func exitForEntityErrors(errs []domain.EntityError) int {
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  - %s: %s\n", e.EntityID, e.Message)
	}
	return 0
}
