// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

/*
Package services adapts epitrack components to suture.Service.

	type Service interface {
	    Serve(ctx context.Context) error
	}

  - SyncService: Start/Stop lifecycle of the sync manager
  - HTTPServerService: ListenAndServe/Shutdown of the API server
  - ImportService: periodic keywords CSV re-import

Every wrapper returns ctx.Err() on a clean shutdown and a wrapped error
when the component fails, which suture treats as a reason to restart.
*/
package services
