// Package engine implements the orchestration layer of roundtable.
//
// A Controller owns one discussion session at a time. It receives commands
// from the surrounding application (submit a message, request the next bot
// turn, continue a resumed session, edit the roster, refresh the analysis,
// stop, leave) and drives the collaborators:
//
//   - transcript.Store holds the messages of the active session
//   - turn computes whose turn is next
//   - summary.Scheduler keeps the prompt context bounded
//   - analysis.Scheduler produces periodic structured analyses
//   - persist.Queue serializes writes to the core.SessionStore
//   - resume rebuilds state from a stored record
//
// # Concurrency Model
//
// Run executes a single loop goroutine that owns every piece of mutable
// state. Commands are closures posted to that loop. The only suspension
// points are the external calls (generation, summarization, analysis and
// persistence); they run on their own goroutines and post their completions
// back to the loop, so completions are applied in a well-defined order.
//
// At most one generation request is in flight. Summary and analysis jobs may
// overlap with it and with each other, each obeying its own single-flight
// rule. Nothing is cancelled mid-flight: Stop only prevents further chained
// turns once the current call resolves.
//
// Observers (Transcript, Cursor, Summary, ...) are answered by the loop too.
// Once Run has returned, commands fail with ErrClosed and observers return
// zero values; check Closed (or Done) to tell the two apart.
//
// # Failures
//
// Recoverable failures (generator errors, malformed analysis output, failed
// writes) never surface as command errors. They are emitted on Events. Only a
// malformed session record passed to Resume is returned as a hard error,
// because installing it would pair a roster with a transcript it does not
// describe.
//
// # Example
//
//	ctrl := engine.New(gen, func(o *engine.Options) {
//	    o.SessionStore = store
//	    o.Logger = logger
//	})
//	go ctrl.Run(ctx)
//
//	_ = ctrl.Start(ctx, "Should cities ban cars?", set)
//	_ = ctrl.SubmitUserMessage("Let's begin with safety.")
//	for ev := range ctrl.Events() {
//	    // render ev
//	}
package engine
