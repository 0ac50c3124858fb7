package domain

import "time"

// RetryPolicy bounds the retry loop around one source operation.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first; 1 means no retry
	Delay       time.Duration // fixed wait between attempts; <= 0 retries immediately
}

// DefaultRetryPolicy matches the operational default: three attempts with a
// fifteen-minute pause between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 15 * time.Minute}
}

// WorkflowSummary is the per-workflow result reported at the end of a run.
type WorkflowSummary struct {
	Source       Source
	Succeeded    bool
	RecordCount  int
	AttemptsUsed int
	Dropped      int    // records excluded by validation
	Err          string // last error on terminal failure, empty on success
}

// RunRecord is one persisted row of workflow run history.
type RunRecord struct {
	ID           string // uuid
	RunDate      time.Time
	Source       Source
	Succeeded    bool
	RecordCount  int
	AttemptsUsed int
	Dropped      int
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}
