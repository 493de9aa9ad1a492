// Package job runs long-lived asynchronous work (chapter generation calls to
// an LLM) inside the process and tracks its lifecycle.
//
// A Processor owns a registry of Records keyed by caller-supplied ids. Submit
// schedules a WorkFunc on its own goroutine and returns immediately; callers
// then poll GetStatus/ListJobs, steer the job with Pause/Resume/Cancel, and
// remove finished jobs with CleanupCompleted.
//
// The processor performs no I/O of its own. Pause and Resume are bookkeeping
// only: the underlying work keeps running. Cancellation is cooperative: the
// record is marked cancelled immediately, but the work stops only when it
// observes its context.
package job
