package model

import (
	"time"
)

// ActivityStep enumerates the per-step events a run emits into the activity
// log. Per-item steps appear once per queue item in a fixed order, run level
// steps frame the whole run.
type ActivityStep string

const (
	StepRunStarted       ActivityStep = "run_started"
	StepAnalyzingSnippet ActivityStep = "analyzing_snippet"
	StepReadingArticle   ActivityStep = "reading_article"
	StepDeciding         ActivityStep = "deciding"
	StepGeneratingPosts  ActivityStep = "generating_posts"
	StepItemDone         ActivityStep = "item_done"
	StepToolFailed       ActivityStep = "tool_failed"
	StepRunCompleted     ActivityStep = "run_completed"
	StepRunCancelled     ActivityStep = "run_cancelled"
	StepRunFailed        ActivityStep = "run_failed"
)

// ActivityLogEntry is one timestamped event in a run's append-only activity
// log. Sequence is monotonic per run starting at 1, entries are never
// mutated or reordered once appended.
type ActivityLogEntry struct {
	RunId     string       `json:"run_id"`
	Sequence  int64        `json:"sequence"`
	Timestamp time.Time    `json:"timestamp"`
	Step      ActivityStep `json:"step"`
	Message   string       `json:"message"`
	ArticleId string       `json:"article_id,omitempty"`
}
