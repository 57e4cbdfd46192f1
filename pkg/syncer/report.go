package syncer

import "time"

// ChildReport is the outcome of syncing one child
type ChildReport struct {
	ID          string
	Name        string
	Cutoff      *time.Time
	NewCutoff   *time.Time
	Found       int
	Downloaded  int
	Failed      int
	TagWarnings int
	Planned     []string // paths a dry run would write
	Interrupted bool
}

// Report summarises a run
type Report struct {
	RunID      string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Children   []ChildReport
}

// Downloaded returns the number of images written across all children
func (r *Report) Downloaded() int {
	n := 0
	for _, c := range r.Children {
		n += c.Downloaded
	}
	return n
}

// Failed returns the number of failed downloads across all children
func (r *Report) Failed() int {
	n := 0
	for _, c := range r.Children {
		n += c.Failed
	}
	return n
}
