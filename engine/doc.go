// Package engine wires all headless subsystems together and provides the
// application-level API for registering handlers and submitting task
// configs.
//
// The engine package sits above all subsystem packages (task, worker,
// dlq, throttle, ext) and below the application layer, so none of them
// import each other in a cycle.
//
// # Building an Engine
//
//	eng, err := engine.New(redisStore,
//	    engine.WithConfig(headless.NewConfig(headless.WithConcurrency(4))),
//	    engine.WithHostState(tracker),
//	    engine.WithExtension(audithook.New(recorder)),
//	    engine.WithThrottle(throttle.Rule{TaskKey: "UploadLogs", MaxConcurrency: 1}),
//	)
//
// # Registering Handlers
//
//	engine.Register(eng, task.NewDefinition("UploadLogs", uploadLogs))
//	engine.RegisterFunc(eng, "Sync", func(ctx context.Context, cfg task.Config) error { ... })
//
// # Submitting Work
//
//	runID, err := eng.Start(ctx, task.New("Sync", payload.Map{"account": id},
//	    task.WithTimeout(30*time.Second),
//	    task.WithRetries(2, time.Second),
//	))
//
//	run, err := eng.Run(ctx, cfg) // waits for the run to finish
//
// # Options
//
//   - [WithConfig]: engine-wide settings
//   - [WithLogger]: structured logger
//   - [WithExtension]: register a lifecycle extension
//   - [WithMiddleware]: add a middleware to the attempt chain
//   - [WithBackoff]: replace constant retry delays with a strategy
//   - [WithHostState]: host foreground state source
//   - [WithThrottle]: per task key concurrency and rate limits
//   - [WithDLQ]: toggle the dead letter queue
//   - [WithTracerProvider]: set the OpenTelemetry tracer provider
//   - [WithMeterProvider]: set the OpenTelemetry meter provider
package engine
