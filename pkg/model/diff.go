package model

import "time"

// CategoryDiff captures the change in one category between two snapshots.
// Set-valued categories use Added/Removed only; ssh_keys additionally
// reports Changed users whose key text differs.
type CategoryDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Changed []string `json:"changed,omitempty"`
}

// Empty reports whether the diff carries no change.
func (d CategoryDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffResult is the categorized change set between a scan and the prior
// successful scan of the same host. Unchanged categories are omitted.
type DiffResult struct {
	HasPrevious       bool                    `json:"has_previous"`
	PreviousTimestamp *time.Time              `json:"previous_timestamp,omitempty"`
	Diff              map[string]CategoryDiff `json:"diff"`
}
