// Package headless provides launch configuration and execution for
// headless tasks: named units of background work that run without a
// visible screen.
//
// A task is described by a [task.Config] value: the key of a registered
// handler, a structured payload, and execution policies (timeout,
// foreground eligibility, retry count, retry delay). Configs are immutable;
// the executor hands each retry attempt its own deep copy so that handlers
// may mutate their payload without racing the submitter.
//
// # Quick Start
//
//	eng, err := engine.New(memory.New(),
//	    engine.WithHostState(tracker),
//	)
//	engine.RegisterFunc(eng, "UploadLogs", uploadLogs)
//
//	cfg := task.New("UploadLogs", payload.Map{"file": "a.log"},
//	    task.WithTimeout(30*time.Second),
//	    task.WithRetries(2, time.Second),
//	)
//	runID, err := eng.Start(ctx, cfg)
//
// # Architecture
//
// The root package holds shared configuration and sentinel errors. Each
// subsystem (task, dlq) defines its own store interface; the backends in
// store/ implement all of them.
package headless
