// Package throttle limits how many runs of a task key may execute at once
// and how fast new runs of that key are admitted.
//
// # Rules
//
// Use [Rule] to set a per-key concurrency cap and token bucket:
//
//	throttle.Rule{
//	    TaskKey:        "SyncContacts",
//	    MaxConcurrency: 1,   // never two syncs at once
//	    RateLimit:      0.2, // at most one new sync every five seconds
//	    RateBurst:      1,
//	}
//
// Pass rules when building the engine:
//
//	engine.New(store,
//	    engine.WithThrottle(
//	        throttle.Rule{TaskKey: "SyncContacts", MaxConcurrency: 1},
//	        throttle.Rule{TaskKey: "UploadLogs", RateLimit: 5, RateBurst: 10},
//	    ),
//	)
//
// # Manager
//
// [Manager] enforces the rules at submission time with a token-bucket
// limiter (golang.org/x/time/rate) and an active-count gate.
//
//	m := throttle.NewManager(rules...)
//	if m.Acquire(key) {
//	    defer m.Release(key)
//	    // run the task
//	}
//
// Keys without a [Rule] are never throttled.
package throttle
