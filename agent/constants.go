package agent

const (
	// Trigger requests published by the auto-run timer, consumed by the
	// dispatcher.
	TOPIC_RUN_TRIGGER = "topic.run_trigger"
	// Terminal run records published by the orchestrator, consumed by the
	// reporter.
	TOPIC_RUN_FINISHED = "topic.run_finished"

	DDOG_RUN_STATE_COUNTER     = "postmux.run.terminal_state"
	DDOG_RUN_PROCESSED_COUNTER = "postmux.run.processed_articles"
	DDOG_RUN_GENERATED_COUNTER = "postmux.run.generated_posts"
)

const (
	TriggerSourceTimer  = "timer"
	TriggerSourceManual = "manual"
)

// TriggerEvent is the bus payload asking the dispatcher to start a run.
type TriggerEvent struct {
	Source          string `json:"source"`
	IntervalSeconds int    `json:"interval_seconds"`
}
