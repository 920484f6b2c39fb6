package model

// TimerState is a read-only snapshot of the auto-run timer, as exposed on
// the control surface. CountdownSeconds only decrements while
// PausedForProcessing is false.
type TimerState struct {
	Enabled             bool `json:"enabled"`
	IntervalSeconds     int  `json:"interval_seconds"`
	CountdownSeconds    int  `json:"countdown_seconds"`
	PausedForProcessing bool `json:"paused_for_processing"`
}
