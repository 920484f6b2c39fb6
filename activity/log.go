package activity

import (
	"sync"
	"time"

	"github.com/postmux/postmux/model"
)

// Log is the process wide activity log, bucketed per run. Entries are
// append-only: once written they are never mutated, reordered or dropped.
// Sequence numbers are monotonic per run starting at 1, so consumers can
// poll with EntriesSince and are guaranteed a gap-free, duplicate-free view.
type Log struct {
	m       sync.RWMutex
	entries map[string][]model.ActivityLogEntry
}

func NewLog() *Log {
	return &Log{
		entries: make(map[string][]model.ActivityLogEntry),
	}
}

// Append adds one entry to the run's log and returns it with its assigned
// sequence number.
func (l *Log) Append(runId string, step model.ActivityStep, message string, articleId string) model.ActivityLogEntry {
	l.m.Lock()
	defer l.m.Unlock()

	entry := model.ActivityLogEntry{
		RunId:     runId,
		Sequence:  int64(len(l.entries[runId]) + 1),
		Timestamp: time.Now(),
		Step:      step,
		Message:   message,
		ArticleId: articleId,
	}
	l.entries[runId] = append(l.entries[runId], entry)
	return entry
}

// EntriesSince returns a copy of all entries of the run with sequence
// strictly greater than since, in sequence order.
func (l *Log) EntriesSince(runId string, since int64) []model.ActivityLogEntry {
	l.m.RLock()
	defer l.m.RUnlock()

	all := l.entries[runId]
	if since < 0 {
		since = 0
	}
	if since >= int64(len(all)) {
		return []model.ActivityLogEntry{}
	}

	out := make([]model.ActivityLogEntry, len(all)-int(since))
	copy(out, all[since:])
	return out
}

// Count returns the number of entries appended for the run so far.
func (l *Log) Count(runId string) int64 {
	l.m.RLock()
	defer l.m.RUnlock()
	return int64(len(l.entries[runId]))
}
