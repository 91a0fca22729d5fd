// Package async provides background task execution detached from request
// lifecycles.
//
// # Overview
//
// Side effects such as notification emails must never block, delay, or cancel
// the operation that triggered them. Instead of bare `go func()` calls, callers
// submit named tasks to a Runner, which supplies panic recovery, a bounded
// execution window, and a context that survives the originating request.
//
// # Implementations
//
// Spawner: one goroutine per task, for low-volume side effects
//
//	runner := async.NewSpawner(logger, 30*time.Second)
//	runner.Submit("invitation email", func(ctx context.Context) {
//		sender.SendInvitation(ctx, ...)
//	})
//
// Pool: bounded queue and fixed workers, for the daemon
//
//	pool := async.NewPool(4, 256, 30*time.Second, logger)
//	defer pool.Close()
//
// Sync: inline execution, for deterministic tests
//
//	svc := orgs.NewService(orgs.Config{..., Tasks: async.Sync{}})
//
// # Related Packages
//
//   - pkg/orgs: dispatches notification emails through a Runner
//   - pkg/email: the senders those tasks invoke
package async
