package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/postmux/postmux/activity"
	"github.com/postmux/postmux/decision"
	"github.com/postmux/postmux/generator"
	"github.com/postmux/postmux/history"
	"github.com/postmux/postmux/model"
	Logger "github.com/postmux/postmux/utils/log"
)

type OrchestratorConfig struct {
	Name string
}

// Orchestrator owns the single-active-run state machine. At most one run is
// in the running state at any time; Start performs an atomic check-and-begin
// under the orchestrator lock so concurrent callers race for exactly one
// slot. Each admitted queue item flows through the decision engine and the
// post generator, with every step mirrored into the activity log. A run
// reaches exactly one terminal state, at which point its record is appended
// to run history and announced on the event bus.
type Orchestrator struct {
	Config OrchestratorConfig

	engine      *decision.Engine
	generator   *generator.PostGenerator
	sinks       []generator.PostSink
	activityLog *activity.Log
	history     history.Store

	// EventBus is optional. When set, terminal run records are published to
	// TOPIC_RUN_FINISHED.
	EventBus *gochannel.GoChannel

	m               sync.Mutex
	current         *model.Run
	queue           []*model.QueueItem
	cancelRequested bool
	done            chan struct{}
}

func NewOrchestrator(
	config OrchestratorConfig,
	engine *decision.Engine,
	gen *generator.PostGenerator,
	sinks []generator.PostSink,
	activityLog *activity.Log,
	historyStore history.Store,
	eventBus *gochannel.GoChannel,
) *Orchestrator {
	return &Orchestrator{
		Config:      config,
		engine:      engine,
		generator:   gen,
		sinks:       sinks,
		activityLog: activityLog,
		history:     historyStore,
		EventBus:    eventBus,
	}
}

func (o *Orchestrator) Name() string {
	return o.Config.Name
}

// IsRunning reports whether a run is currently in the running state.
func (o *Orchestrator) IsRunning() bool {
	o.m.Lock()
	defer o.m.Unlock()
	return o.current != nil && o.current.State == model.RunStateRunning
}

// Status returns a snapshot of the most recent run, running or terminal.
// Returns ErrNoActiveRun if no run has ever been started.
func (o *Orchestrator) Status() (*model.Run, error) {
	o.m.Lock()
	defer o.m.Unlock()
	if o.current == nil {
		return nil, ErrNoActiveRun
	}
	return o.snapshotLocked(), nil
}

// Wait blocks until the current run reaches a terminal state. Returns
// immediately if no run is in flight. Intended for tests and shutdown.
func (o *Orchestrator) Wait() {
	o.m.Lock()
	done := o.done
	o.m.Unlock()
	if done == nil {
		return
	}
	<-done
}

// Start begins a new run over the given admitted queue items. It fails with
// ErrAlreadyRunning if another run is active. Item processing happens
// asynchronously; the returned run is a snapshot taken right after the
// transition into the running state.
func (o *Orchestrator) Start(items []model.QueueItem, settings model.RunSettings) (*model.Run, error) {
	return o.StartWith(settings, func() []model.QueueItem { return items })
}

// StartWith claims the single-run slot first and only then calls build to
// produce the queue. Callers with side effects that must not happen for a
// rejected trigger, such as dedup admission, put them inside build: when
// another run is active, build is never invoked.
func (o *Orchestrator) StartWith(settings model.RunSettings, build func() []model.QueueItem) (*model.Run, error) {
	run, err := o.begin(settings)
	if err != nil {
		return nil, err
	}

	items := build()
	queue := make([]*model.QueueItem, 0, len(items))
	for idx := range items {
		item := items[idx]
		item.State = model.QueueItemStatePending
		queue = append(queue, &item)
	}
	if settings.NewestFirst {
		sort.SliceStable(queue, func(i, j int) bool {
			return queue[i].Article.PublishedAt.After(queue[j].Article.PublishedAt)
		})
	}
	o.m.Lock()
	o.queue = queue
	o.m.Unlock()

	o.appendActivity(run.Id, model.StepRunStarted,
		fmt.Sprintf("run started with %d queued articles", len(queue)), "")
	go o.processQueue(run.Id)
	return run, nil
}

// StartFailed records a run that terminates immediately in the failed state,
// e.g. when the ingestion source is unavailable. It still occupies the
// single-run slot for the duration of the transition, so the failure shows
// up in status, activity and history exactly like any other terminal run.
func (o *Orchestrator) StartFailed(settings model.RunSettings, cause error) (*model.Run, error) {
	run, err := o.begin(settings)
	if err != nil {
		return nil, err
	}
	o.appendActivity(run.Id, model.StepRunStarted, "run started with 0 queued articles", "")
	o.finish(model.RunStateFailed, cause.Error())
	return o.Status()
}

// Cancel requests cooperative cancellation of the active run. The run keeps
// its running state until the in-flight item completes; the transition to
// cancelled happens at the next item boundary. Returns ErrNoActiveRun if no
// run is currently running.
func (o *Orchestrator) Cancel() error {
	o.m.Lock()
	defer o.m.Unlock()
	if o.current == nil || o.current.State != model.RunStateRunning {
		return ErrNoActiveRun
	}
	o.cancelRequested = true
	return nil
}

// begin atomically claims the single-run slot and initializes a new run.
func (o *Orchestrator) begin(settings model.RunSettings) (*model.Run, error) {
	o.m.Lock()
	defer o.m.Unlock()
	if o.current != nil && o.current.State == model.RunStateRunning {
		return nil, ErrAlreadyRunning
	}
	o.current = &model.Run{
		Id:              uuid.New().String(),
		State:           model.RunStateRunning,
		StartedAt:       time.Now(),
		IntervalSeconds: settings.IntervalSeconds,
	}
	o.queue = nil
	o.cancelRequested = false
	o.done = make(chan struct{})
	return o.snapshotLocked(), nil
}

func (o *Orchestrator) processQueue(runId string) {
	o.m.Lock()
	queue := o.queue
	o.m.Unlock()

	for _, item := range queue {
		if o.cancelPending() {
			o.finish(model.RunStateCancelled, "")
			return
		}
		o.processItem(runId, item)
	}
	// A cancel acknowledged while the last item was in flight still wins:
	// the item boundary after the final item is a checkpoint too.
	if o.cancelPending() {
		o.finish(model.RunStateCancelled, "")
		return
	}
	o.finish(model.RunStateCompleted, "")
}

func (o *Orchestrator) processItem(runId string, item *model.QueueItem) {
	article := &item.Article
	item.State = model.QueueItemStateInProgress

	o.appendActivity(runId, model.StepAnalyzingSnippet,
		fmt.Sprintf("analyzing snippet of %q from %s", article.Title, article.SourceName),
		article.Id)
	o.appendActivity(runId, model.StepReadingArticle,
		fmt.Sprintf("reading article %q", article.Title), article.Id)

	result := o.engine.Decide(context.Background(), article, article.Snippet)
	for _, tool := range result.FailedTools {
		o.appendActivity(runId, model.StepToolFailed,
			fmt.Sprintf("tool %s failed, staying at tier %d", tool, result.TierUsed),
			article.Id)
	}

	toolSummary := "no tools"
	if len(result.ToolsUsed) > 0 {
		toolSummary = strings.Join(result.ToolsUsed, ", ")
	}
	o.appendActivity(runId, model.StepDeciding,
		fmt.Sprintf("decided at tier %d (%s)", result.TierUsed, toolSummary), article.Id)

	o.appendActivity(runId, model.StepGeneratingPosts,
		fmt.Sprintf("generating posts for %q", article.Title), article.Id)
	posts := o.generator.Generate(runId, article, result.EnrichedText)

	generated := 0
	for idx := range posts {
		if o.pushPost(&posts[idx]) {
			generated++
		}
	}

	o.m.Lock()
	o.current.ProcessedCount++
	o.current.GeneratedCount += generated
	o.current.BumpTierCount(result.TierUsed)
	processed := o.current.ProcessedCount
	o.m.Unlock()

	item.State = model.QueueItemStateDone
	if len(posts) > 0 && generated == 0 {
		// Every post was rejected by a sink, the item produced nothing.
		item.State = model.QueueItemStateFailed
	}
	o.appendActivity(runId, model.StepItemDone,
		fmt.Sprintf("item done at tier %d, %d processed so far", result.TierUsed, processed),
		article.Id)
}

// pushPost delivers one post to every sink. A post counts as generated only
// when all sinks accept it.
func (o *Orchestrator) pushPost(post *model.GeneratedPost) bool {
	ok := true
	for _, sink := range o.sinks {
		if err := sink.Push(post); err != nil {
			Logger.Log.Errorf("failed to push post %s to sink: %v", post.Id, err)
			ok = false
		}
	}
	return ok
}

func (o *Orchestrator) cancelPending() bool {
	o.m.Lock()
	defer o.m.Unlock()
	return o.cancelRequested
}

// finish transitions the active run to a terminal state exactly once. It
// appends the terminal activity entry, records the run in history, publishes
// the record on the event bus and releases waiters.
func (o *Orchestrator) finish(state model.RunState, errMsg string) {
	o.m.Lock()
	if o.current == nil || o.current.State != model.RunStateRunning {
		o.m.Unlock()
		return
	}
	now := time.Now()
	o.current.State = state
	o.current.EndedAt = &now
	o.current.Error = errMsg
	snapshot := o.snapshotLocked()
	done := o.done
	o.m.Unlock()

	summary := fmt.Sprintf(
		"processed %d articles, generated %d posts (T1 %d / T2 %d / T3 %d / T4 %d)",
		snapshot.ProcessedCount, snapshot.GeneratedCount,
		snapshot.Tier1Count, snapshot.Tier2Count, snapshot.Tier3Count, snapshot.Tier4Count)
	if errMsg != "" {
		summary = summary + ", error: " + errMsg
	}
	o.appendActivity(snapshot.Id, terminalStep(state), summary, "")

	if err := o.history.Append(snapshot); err != nil {
		Logger.Log.Errorf("failed to append run %s to history: %v", snapshot.Id, err)
	}
	o.publishRunFinished(snapshot)
	close(done)
}

func (o *Orchestrator) appendActivity(runId string, step model.ActivityStep, msg string, articleId string) {
	o.activityLog.Append(runId, step, msg, articleId)
}

func (o *Orchestrator) snapshotLocked() *model.Run {
	out := &model.Run{}
	if err := copier.Copy(out, o.current); err != nil {
		Logger.Log.Errorf("failed to snapshot run: %v", err)
	}
	return out
}

func (o *Orchestrator) publishRunFinished(run *model.Run) {
	if o.EventBus == nil {
		return
	}
	data, err := json.Marshal(run)
	if err != nil {
		Logger.Log.Errorf("failed to marshal finished run %s: %v", run.Id, err)
		return
	}
	if err := o.EventBus.Publish(TOPIC_RUN_FINISHED, message.NewMessage(watermill.NewUUID(), data)); err != nil {
		Logger.Log.Errorf("failed to publish finished run %s: %v", run.Id, err)
	}
}

func terminalStep(state model.RunState) model.ActivityStep {
	switch state {
	case model.RunStateCancelled:
		return model.StepRunCancelled
	case model.RunStateFailed:
		return model.StepRunFailed
	default:
		return model.StepRunCompleted
	}
}
