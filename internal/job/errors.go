package job

import "errors"

// Common errors returned by the Processor
var (
	ErrEmptyJobID       = errors.New("job ID cannot be empty")
	ErrNilWork          = errors.New("work function cannot be nil")
	ErrInvalidStatus    = errors.New("invalid job status")
	ErrProcessorStopped = errors.New("job processor is stopped")
)

// Messages recorded on cancelled jobs.
const (
	// CancelledByUserMessage is recorded when Cancel marks a job.
	CancelledByUserMessage = "Job was cancelled by user"

	// CancelledMessage is recorded when the work itself stops on a cancelled context.
	CancelledMessage = "Job was cancelled"

	// SupersededMessage is carried on the cancellation event of a pending,
	// running or paused submission replaced by a new Submit with the same ID.
	SupersededMessage = "Job was superseded by a new submission"
)
