package background_tasks

import (
	"context"
	"time"
)

// RetryPolicy defines how often a failed run is retried and how long to wait in between.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Execution records one run of a task, retries included.
type Execution struct {
	StartedAt time.Time
	EndedAt   time.Time
	Status    string
	Error     string
}

// Task is a function run by the scheduler whenever one of its triggers is ready.
type Task struct {
	ID          int
	Name        string
	Description string
	Triggers    []Trigger
	Function    func(ctx context.Context) error
	RetryPolicy RetryPolicy
	Enabled     bool
	// Higher priority tasks are considered first when the running limit is reached.
	Priority      int
	ExecutionHist []Execution
}
