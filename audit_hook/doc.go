// Package audithook is a taskq extension that bridges queue lifecycle
// events to an audit trail backend.
//
// Every post, fetch, run, delete and release, plus every worker process
// exit, emits a structured audit event through the [Recorder] interface.
// Severity is info for normal operations, warning for rejected or
// released jobs and critical for failures.
//
// # Usage
//
//	q := queue.New(backend, queue.WithExtension(
//	    audithook.New(audithook.SlogRecorder(logger)),
//	))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionProcessFailed,
//	    ),
//	)
package audithook
