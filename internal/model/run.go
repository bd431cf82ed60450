package model

import "time"

// RunStatus is the lifecycle state of one processed bulletin file.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusEmpty    RunStatus = "empty"
	RunStatusFailed   RunStatus = "failed"
)

// RunEntry is a row of the nav_runs log.
type RunEntry struct {
	ID          string     `json:"id" yaml:"id"`
	Source      string     `json:"source" yaml:"source"`
	Status      RunStatus  `json:"status" yaml:"status"`
	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	RowsParsed  int        `json:"rows_parsed" yaml:"rows_parsed"`
	RowsValid   int        `json:"rows_valid" yaml:"rows_valid"`
	Inserted    int64      `json:"inserted" yaml:"inserted"`
	Updated     int64      `json:"updated" yaml:"updated"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunResult holds the counts recorded when a run finishes.
type RunResult struct {
	RowsParsed int
	RowsValid  int
	Inserted   int64
	Updated    int64
}
