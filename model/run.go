package model

import (
	"time"
)

// RunState is the lifecycle state of a run. A run starts at running and ends
// in exactly one of the terminal states. There is no persisted "paused"
// state: while a run is processing, it is the auto-run timer that reports
// itself paused, the run stays running.
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateCancelled RunState = "cancelled"
	RunStateFailed    RunState = "failed"
)

// IsTerminal returns true iff the state is one of the end states a run can
// settle into.
func (s RunState) IsTerminal() bool {
	return s == RunStateCompleted || s == RunStateCancelled || s == RunStateFailed
}

/*

Run is one end-to-end execution of the queue processing pipeline, either
timer triggered or manually triggered.

ProcessedCount: number of queue items that went through the decision engine
GeneratedCount: number of posts successfully created across all platforms
Tier1Count..Tier4Count: per tier breakdown of processed items. The four
	counters always sum up to ProcessedCount.
IntervalSeconds: the auto-run interval configured at the time this run was
	triggered, recorded for the run history view.
Error: populated iff State == failed.
*/

type Run struct {
	Id              string     `gorm:"primaryKey" json:"id"`
	State           RunState   `json:"state"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	ProcessedCount  int        `json:"processed_count"`
	GeneratedCount  int        `json:"generated_count"`
	Tier1Count      int        `json:"tier_1_count"`
	Tier2Count      int        `json:"tier_2_count"`
	Tier3Count      int        `json:"tier_3_count"`
	Tier4Count      int        `json:"tier_4_count"`
	IntervalSeconds int        `json:"interval_seconds"`
	Error           string     `json:"error,omitempty"`
}

// TierCount returns the counter of the given tier in [1, 4].
func (r *Run) TierCount(tier int) int {
	switch tier {
	case 1:
		return r.Tier1Count
	case 2:
		return r.Tier2Count
	case 3:
		return r.Tier3Count
	case 4:
		return r.Tier4Count
	}
	return 0
}

// BumpTierCount increments the counter of the given tier in [1, 4].
func (r *Run) BumpTierCount(tier int) {
	switch tier {
	case 1:
		r.Tier1Count++
	case 2:
		r.Tier2Count++
	case 3:
		r.Tier3Count++
	case 4:
		r.Tier4Count++
	}
}

// RunSettings carries the per-run knobs a trigger passes into the
// orchestrator.
type RunSettings struct {
	// The auto-run interval in effect when the run was triggered. Recorded
	// on the run itself, not interpreted by the orchestrator.
	IntervalSeconds int
	// Process queue items newest first when set, in submission order
	// otherwise.
	NewestFirst bool
}
