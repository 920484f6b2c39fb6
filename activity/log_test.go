package activity

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/postmux/postmux/model"
)

func TestAppend_SequencesStartAtOne(t *testing.T) {
	log := NewLog()

	first := log.Append("run-1", model.StepRunStarted, "run started", "")
	second := log.Append("run-1", model.StepAnalyzingSnippet, "analyzing", "article-1")

	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, int64(2), second.Sequence)
}

func TestEntriesSince_OffsetSemantics(t *testing.T) {
	log := NewLog()
	for i := 0; i < 5; i++ {
		log.Append("run-1", model.StepItemDone, fmt.Sprintf("item %d", i), "")
	}

	all := log.EntriesSince("run-1", 0)
	assert.Len(t, all, 5)

	tail := log.EntriesSince("run-1", 3)
	assert.Len(t, tail, 2)
	assert.Equal(t, int64(4), tail[0].Sequence)
	assert.Equal(t, int64(5), tail[1].Sequence)

	assert.Empty(t, log.EntriesSince("run-1", 5))
	assert.Empty(t, log.EntriesSince("run-1", 99))
	assert.Empty(t, log.EntriesSince("unknown-run", 0))
}

func TestEntriesSince_GapFreeUnderAnyOffset(t *testing.T) {
	log := NewLog()
	for i := 0; i < 10; i++ {
		log.Append("run-1", model.StepItemDone, fmt.Sprintf("item %d", i), "")
	}

	for offset := int64(0); offset <= 10; offset++ {
		entries := log.EntriesSince("run-1", offset)
		for idx, entry := range entries {
			assert.Equal(t, offset+int64(idx)+1, entry.Sequence)
		}
	}
}

func TestLog_RunsAreIsolated(t *testing.T) {
	log := NewLog()
	log.Append("run-1", model.StepRunStarted, "first run", "")
	log.Append("run-2", model.StepRunStarted, "second run", "")

	first := log.EntriesSince("run-1", 0)
	second := log.EntriesSince("run-2", 0)

	diff := cmp.Diff(first, second, cmpopts.IgnoreFields(model.ActivityLogEntry{}, "RunId", "Message", "Timestamp"))
	assert.Empty(t, diff)
	assert.Equal(t, "first run", first[0].Message)
	assert.Equal(t, "second run", second[0].Message)
}

// Readers polling concurrently with a writer must never observe gaps or
// duplicates.
func TestLog_ConcurrentReadersSeeConsistentSequences(t *testing.T) {
	log := NewLog()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			log.Append("run-1", model.StepItemDone, "tick", "")
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen := int64(0)
			for seen < 200 {
				for _, entry := range log.EntriesSince("run-1", seen) {
					seen++
					if entry.Sequence != seen {
						t.Errorf("gap or duplicate: got sequence %d, want %d", entry.Sequence, seen)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
}
