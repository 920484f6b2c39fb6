package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/postmux/postmux/activity"
	"github.com/postmux/postmux/decision"
	"github.com/postmux/postmux/dedup"
	"github.com/postmux/postmux/enrich"
	"github.com/postmux/postmux/generator"
	"github.com/postmux/postmux/history"
	"github.com/postmux/postmux/ingest"
	"github.com/postmux/postmux/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHarness struct {
	orchestrator *Orchestrator
	sink         *generator.FakeSink
	activityLog  *activity.Log
	history      *history.InMemoryStore
}

func newTestHarness(t *testing.T, tools ...enrich.Tool) *testHarness {
	if len(tools) == 0 {
		tools = []enrich.Tool{
			&enrich.FakeTool{ToolId: enrich.ToolContentFetch, Output: strings.Repeat("body ", 200)},
			&enrich.FakeTool{ToolId: enrich.ToolWebSearch, Output: strings.Repeat("search ", 150)},
			&enrich.FakeTool{ToolId: enrich.ToolSimilarityLookup, Output: "no similar recent titles"},
		}
	}
	registry, err := enrich.NewRegistry(500*time.Millisecond, tools...)
	require.NoError(t, err)
	engine, err := decision.NewEngine(registry, decision.DefaultPolicies())
	require.NoError(t, err)

	sink := &generator.FakeSink{}
	activityLog := activity.NewLog()
	historyStore := history.NewInMemoryStore()
	orchestrator := NewOrchestrator(
		OrchestratorConfig{Name: "orchestrator"},
		engine,
		generator.NewPostGenerator(),
		[]generator.PostSink{sink},
		activityLog,
		historyStore,
		nil,
	)
	return &testHarness{
		orchestrator: orchestrator,
		sink:         sink,
		activityLog:  activityLog,
		history:      historyStore,
	}
}

func makeArticle(title string, snippet string) model.Article {
	return model.Article{
		Id:          uuid.New().String(),
		Title:       title,
		Snippet:     snippet,
		SourceName:  "Test Wire",
		OriginUrl:   "https://example.com/" + uuid.New().String(),
		PublishedAt: time.Now(),
	}
}

func makeQueue(count int) []model.QueueItem {
	items := []model.QueueItem{}
	for idx := 0; idx < count; idx++ {
		items = append(items, model.QueueItem{
			Article: makeArticle("Headline "+uuid.New().String(), "short snippet"),
		})
	}
	return items
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestStatusAndCancelWithoutRun(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.orchestrator.Status()
	assert.ErrorIs(t, err, ErrNoActiveRun)
	assert.ErrorIs(t, h.orchestrator.Cancel(), ErrNoActiveRun)
	assert.False(t, h.orchestrator.IsRunning())
}

func TestRunCompletesWithConsistentCounters(t *testing.T) {
	h := newTestHarness(t)

	run, err := h.orchestrator.Start(makeQueue(4), model.RunSettings{IntervalSeconds: 900})
	require.NoError(t, err)
	assert.Equal(t, model.RunStateRunning, run.State)
	h.orchestrator.Wait()

	status, err := h.orchestrator.Status()
	require.NoError(t, err)
	assert.Equal(t, model.RunStateCompleted, status.State)
	assert.Equal(t, 4, status.ProcessedCount)
	assert.Equal(t,
		status.ProcessedCount,
		status.Tier1Count+status.Tier2Count+status.Tier3Count+status.Tier4Count)
	// Three platforms per article, all accepted by the sink.
	assert.Equal(t, 12, status.GeneratedCount)
	assert.Len(t, h.sink.Posts, 12)
	require.NotNil(t, status.EndedAt)
	assert.False(t, status.EndedAt.Before(status.StartedAt))

	runs, err := h.history.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, status.Id, runs[0].Id)
	assert.Equal(t, model.RunStateCompleted, runs[0].State)

	entries := h.activityLog.EntriesSince(status.Id, 0)
	require.NotEmpty(t, entries)
	assert.Equal(t, model.StepRunStarted, entries[0].Step)
	assert.Equal(t, model.StepRunCompleted, entries[len(entries)-1].Step)
}

func TestStartRejectsSecondRun(t *testing.T) {
	slow := []enrich.Tool{
		&enrich.FakeTool{ToolId: enrich.ToolContentFetch, Output: strings.Repeat("body ", 200), Delay: 50 * time.Millisecond},
		&enrich.FakeTool{ToolId: enrich.ToolWebSearch, Output: "context"},
		&enrich.FakeTool{ToolId: enrich.ToolSimilarityLookup, Output: "fresh"},
	}
	h := newTestHarness(t, slow...)

	_, err := h.orchestrator.Start(makeQueue(3), model.RunSettings{})
	require.NoError(t, err)

	_, err = h.orchestrator.Start(makeQueue(1), model.RunSettings{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	h.orchestrator.Wait()

	// The slot frees up once the run reaches a terminal state.
	_, err = h.orchestrator.Start(makeQueue(1), model.RunSettings{})
	require.NoError(t, err)
	h.orchestrator.Wait()

	runs, err := h.history.List()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestCancelStopsAtItemBoundary(t *testing.T) {
	slow := []enrich.Tool{
		&enrich.FakeTool{ToolId: enrich.ToolContentFetch, Output: strings.Repeat("body ", 200), Delay: 30 * time.Millisecond},
		&enrich.FakeTool{ToolId: enrich.ToolWebSearch, Output: "context"},
		&enrich.FakeTool{ToolId: enrich.ToolSimilarityLookup, Output: "fresh"},
	}
	h := newTestHarness(t, slow...)

	run, err := h.orchestrator.Start(makeQueue(50), model.RunSettings{})
	require.NoError(t, err)

	waitFor(t, func() bool {
		status, err := h.orchestrator.Status()
		return err == nil && status.ProcessedCount >= 1
	}, "run never made progress")
	require.NoError(t, h.orchestrator.Cancel())
	h.orchestrator.Wait()

	status, err := h.orchestrator.Status()
	require.NoError(t, err)
	assert.Equal(t, model.RunStateCancelled, status.State)
	assert.Less(t, status.ProcessedCount, 50)

	// Processed count matches the completed items: every processed item got
	// its item_done entry before the cancellation took effect.
	entries := h.activityLog.EntriesSince(run.Id, 0)
	itemDone := 0
	for _, entry := range entries {
		if entry.Step == model.StepItemDone {
			itemDone++
		}
	}
	assert.Equal(t, status.ProcessedCount, itemDone)
	assert.Equal(t, model.StepRunCancelled, entries[len(entries)-1].Step)

	// Nothing is appended after the terminal entry.
	before := h.activityLog.Count(run.Id)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, h.activityLog.Count(run.Id))

	runs, err := h.history.List()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

// A cancel acknowledged while the last queue item is still in flight must
// not be lost to the completed transition.
func TestCancelDuringFinalItemWins(t *testing.T) {
	slow := []enrich.Tool{
		&enrich.FakeTool{ToolId: enrich.ToolContentFetch, Output: strings.Repeat("body ", 200), Delay: 200 * time.Millisecond},
		&enrich.FakeTool{ToolId: enrich.ToolWebSearch, Output: "context"},
		&enrich.FakeTool{ToolId: enrich.ToolSimilarityLookup, Output: "fresh"},
	}
	h := newTestHarness(t, slow...)

	run, err := h.orchestrator.Start(makeQueue(1), model.RunSettings{})
	require.NoError(t, err)

	// Wait for the one and only item to be in flight, then cancel mid-item.
	waitFor(t, func() bool {
		return h.activityLog.Count(run.Id) >= 2
	}, "item never started")
	require.NoError(t, h.orchestrator.Cancel())
	h.orchestrator.Wait()

	status, err := h.orchestrator.Status()
	require.NoError(t, err)
	assert.Equal(t, model.RunStateCancelled, status.State)
	assert.Equal(t, 1, status.ProcessedCount)

	entries := h.activityLog.EntriesSince(run.Id, 0)
	assert.Equal(t, model.StepRunCancelled, entries[len(entries)-1].Step)
}

// A trigger rejected because a run is active must not consume any dedup
// fingerprint: the same articles enter the next accepted run.
func TestRejectedTriggerKeepsArticlesAdmittable(t *testing.T) {
	slow := []enrich.Tool{
		&enrich.FakeTool{ToolId: enrich.ToolContentFetch, Output: strings.Repeat("body ", 200), Delay: 50 * time.Millisecond},
		&enrich.FakeTool{ToolId: enrich.ToolWebSearch, Output: "context"},
		&enrich.FakeTool{ToolId: enrich.ToolSimilarityLookup, Output: "fresh"},
	}
	h := newTestHarness(t, slow...)

	_, err := h.orchestrator.Start(makeQueue(3), model.RunSettings{})
	require.NoError(t, err)

	source := &ingest.StaticSource{Articles: []model.Article{
		makeArticle("Unique orbital launch story", "short snippet"),
	}}
	dispatcher := NewDispatcher(
		DispatcherConfig{Name: "dispatcher"},
		source,
		dedup.NewInMemoryAdmissionTable(),
		h.orchestrator,
		nil,
	)

	_, err = dispatcher.TriggerRun(context.Background(), TriggerSourceTimer, model.RunSettings{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	h.orchestrator.Wait()

	run, err := dispatcher.TriggerRun(context.Background(), TriggerSourceTimer, model.RunSettings{})
	require.NoError(t, err)
	h.orchestrator.Wait()

	status, err := h.orchestrator.Status()
	require.NoError(t, err)
	assert.Equal(t, run.Id, status.Id)
	assert.Equal(t, model.RunStateCompleted, status.State)
	assert.Equal(t, 1, status.ProcessedCount)
}

func TestToolFailureDegradesGracefully(t *testing.T) {
	failing := []enrich.Tool{
		&enrich.FakeTool{ToolId: enrich.ToolContentFetch, Err: context.DeadlineExceeded},
		&enrich.FakeTool{ToolId: enrich.ToolWebSearch, Output: "context"},
		&enrich.FakeTool{ToolId: enrich.ToolSimilarityLookup, Output: "fresh"},
	}
	h := newTestHarness(t, failing...)

	run, err := h.orchestrator.Start(makeQueue(2), model.RunSettings{})
	require.NoError(t, err)
	h.orchestrator.Wait()

	status, err := h.orchestrator.Status()
	require.NoError(t, err)
	assert.Equal(t, model.RunStateCompleted, status.State)
	// The escalation tool failed, so every item stays at tier 1 but the run
	// still completes and generates posts.
	assert.Equal(t, 2, status.Tier1Count)
	assert.Equal(t, 2, status.ProcessedCount)
	assert.Equal(t, 6, status.GeneratedCount)

	entries := h.activityLog.EntriesSince(run.Id, 0)
	failed := 0
	for _, entry := range entries {
		if entry.Step == model.StepToolFailed {
			failed++
		}
	}
	assert.Equal(t, 2, failed)
}

func TestSinkFailureExcludedFromGeneratedCount(t *testing.T) {
	h := newTestHarness(t)
	h.sink.Fail = true

	_, err := h.orchestrator.Start(makeQueue(2), model.RunSettings{})
	require.NoError(t, err)
	h.orchestrator.Wait()

	status, err := h.orchestrator.Status()
	require.NoError(t, err)
	assert.Equal(t, model.RunStateCompleted, status.State)
	assert.Equal(t, 2, status.ProcessedCount)
	assert.Equal(t, 0, status.GeneratedCount)

	// Items whose posts were all rejected are marked failed, not done.
	for _, item := range h.orchestrator.queue {
		assert.Equal(t, model.QueueItemStateFailed, item.State)
	}
}

func TestNewestFirstOrdering(t *testing.T) {
	h := newTestHarness(t)

	older := makeArticle("Older story", strings.Repeat("x", 400))
	older.PublishedAt = time.Now().Add(-2 * time.Hour)
	newer := makeArticle("Newer story", strings.Repeat("x", 400))

	run, err := h.orchestrator.Start(
		[]model.QueueItem{{Article: older}, {Article: newer}},
		model.RunSettings{NewestFirst: true})
	require.NoError(t, err)
	h.orchestrator.Wait()

	entries := h.activityLog.EntriesSince(run.Id, 0)
	firstArticle := ""
	for _, entry := range entries {
		if entry.Step == model.StepAnalyzingSnippet {
			firstArticle = entry.ArticleId
			break
		}
	}
	assert.Equal(t, newer.Id, firstArticle)
}

func TestDispatcherFailsRunWhenSourceUnavailable(t *testing.T) {
	h := newTestHarness(t)
	dispatcher := NewDispatcher(
		DispatcherConfig{Name: "dispatcher"},
		&ingest.StaticSource{Err: context.DeadlineExceeded},
		dedup.NewInMemoryAdmissionTable(),
		h.orchestrator,
		nil,
	)

	run, err := dispatcher.TriggerRun(context.Background(), TriggerSourceManual, model.RunSettings{IntervalSeconds: 900})
	require.NoError(t, err)
	assert.Equal(t, model.RunStateFailed, run.State)
	assert.Contains(t, run.Error, ingest.ErrUnavailable.Error())
	assert.Equal(t, 0, run.ProcessedCount)

	runs, err := h.history.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStateFailed, runs[0].State)

	entries := h.activityLog.EntriesSince(run.Id, 0)
	assert.Equal(t, model.StepRunFailed, entries[len(entries)-1].Step)
}

func TestDispatcherSkipsDuplicates(t *testing.T) {
	h := newTestHarness(t)
	source := &ingest.StaticSource{Articles: []model.Article{
		makeArticle("Storm hits city", "snippet one"),
		makeArticle("Fresh headline", "snippet two"),
	}}
	// Same normalized title and source as the first article.
	duplicate := makeArticle(" STORM   hits city ", "snippet three")
	source.Articles = append(source.Articles, duplicate)

	dispatcher := NewDispatcher(
		DispatcherConfig{Name: "dispatcher"},
		source,
		dedup.NewInMemoryAdmissionTable(),
		h.orchestrator,
		nil,
	)

	_, err := dispatcher.TriggerRun(context.Background(), TriggerSourceManual, model.RunSettings{})
	require.NoError(t, err)
	h.orchestrator.Wait()

	status, err := h.orchestrator.Status()
	require.NoError(t, err)
	assert.Equal(t, model.RunStateCompleted, status.State)
	assert.Equal(t, 2, status.ProcessedCount)
}
