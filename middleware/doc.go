// Package middleware provides composable middleware for task attempts.
//
// A [Middleware] wraps one attempt of a task handler. Middleware are
// composed into a chain using [Chain] and applied to every attempt,
// retries included. The first middleware in the slice is the outermost
// wrapper.
//
//	// logging → timeout → recover → handler
//	chain := middleware.Chain(
//	    middleware.Logging(logger),
//	    middleware.Timeout(logger),
//	    middleware.Recover(logger),
//	)
//
// # Built-in Middleware
//
//   - [Logging]: logs task key, run ID, attempt, duration, and outcome
//   - [Recover]: catches panics and converts them to errors
//   - [Timeout]: ends the attempt when the config's timeout elapses
//   - [Tracing]: wraps the attempt in an OpenTelemetry span
//   - [Metrics]: records attempt duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, a *task.Attempt, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
