// Package async runs bounded batches of independent tasks.
//
// Batch fans items out over a fixed number of workers, gives each task its
// own timeout, and converts a task panic into a *PanicError instead of
// crashing the process:
//
//	errs := async.Batch(ctx, userIDs, 4, 30*time.Second, func(ctx context.Context, id string) error {
//		return exportOne(ctx, id)
//	})
//
// errs is aligned with the input; errs[i] is nil when item i succeeded.
// Items not started before ctx is canceled report ctx.Err().
package async
