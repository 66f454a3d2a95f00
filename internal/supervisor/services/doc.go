// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

/*
Package services provides suture.Service wrappers for discovery-engine
components.

This package adapts existing application components to the suture v4
supervision model, translating the ListenAndServe/Shutdown lifecycle
pattern into suture's context-aware Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

# Usage Example

	tree, _ := supervisor.NewSupervisorTree(logger, config)

	httpSvc := services.NewHTTPServerService(server, 10*time.Second)
	tree.AddAPIService(httpSvc)

	tree.Serve(ctx)

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
*/
package services
