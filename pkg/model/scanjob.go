package model

import "time"

// ScanJob statuses. A job is immutable once terminal.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// FailureDetail preserves the causal error of a failed scan plus whatever
// output the remote side produced, verbatim, for operator diagnosis.
type FailureDetail struct {
	Error    string `json:"error"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// ScanJob is one lifecycle instance of collecting a Snapshot for a Host.
// Exactly one of Snapshot/Failure is set once the job is terminal.
type ScanJob struct {
	ID         uint           `json:"id"`
	HostID     uint           `json:"host_id"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Snapshot   *Snapshot      `json:"snapshot,omitempty"`
	Failure    *FailureDetail `json:"failure,omitempty"`
}

// Terminal reports whether the job reached a final state.
func (j *ScanJob) Terminal() bool {
	return j.Status == StatusSuccess || j.Status == StatusFailed
}

// ScanJobSummary is the list form of a job: status and timing without the
// embedded snapshot payload.
type ScanJobSummary struct {
	ID         uint       `json:"id"`
	HostID     uint       `json:"host_id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Summary strips the payload from a job.
func (j *ScanJob) Summary() ScanJobSummary {
	return ScanJobSummary{
		ID:         j.ID,
		HostID:     j.HostID,
		Status:     j.Status,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}
