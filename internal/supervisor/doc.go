// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

/*
Package supervisor provides process supervision for epitrack using suture v4.

The tree restarts crashed services with backoff and shuts everything down in
order when the root context is canceled:

	RootSupervisor ("epitrack")
	├── SyncSupervisor ("sync-layer")
	│   ├── SyncService ("sync-manager")
	│   └── ImportService ("phrase-import", when a keywords CSV is configured)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService ("http-server")

Supervisor events (service start, failure, backoff) are logged through
log/slog via sutureslog; internal/logging provides the slog bridge so they
share the zerolog output.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddSyncService(services.NewSyncService(manager))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

See the services subpackage for the lifecycle adapters.
*/
package supervisor
