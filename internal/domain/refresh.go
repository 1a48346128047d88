package domain

import "time"

// RefreshReport summarizes one refresh of one snapshot.
type RefreshReport struct {
	RunID       string        `json:"runId"`
	Kind        SnapshotKind  `json:"kind"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
	Fetched     []ID          `json:"fetched"`
	Failed      []ID          `json:"failed"`
	Replaced    bool          `json:"replaced"`
	FirstLoad   bool          `json:"firstLoad"`
	Diff        *DiffResult   `json:"diff,omitempty"`
	Significant bool          `json:"significant"`
}
