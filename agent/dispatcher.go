package agent

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/postmux/postmux/dedup"
	"github.com/postmux/postmux/ingest"
	"github.com/postmux/postmux/model"
	Logger "github.com/postmux/postmux/utils/log"
)

type DispatcherConfig struct {
	Name string

	// NewestFirst orders the admitted queue by publication time, newest
	// article processed first.
	NewestFirst bool
}

// Dispatcher turns a trigger into a run. It fetches candidate articles from
// the ingestion source, pushes each through the admission table so duplicates
// never reach a run queue, and hands the admitted items to the orchestrator.
// It consumes TOPIC_RUN_TRIGGER so both the auto-run timer and the API
// surface start runs through the same path.
type Dispatcher struct {
	Config       DispatcherConfig
	Source       ingest.Source
	Table        dedup.AdmissionTable
	Orchestrator *Orchestrator
	EventBus     *gochannel.GoChannel
}

func NewDispatcher(
	config DispatcherConfig,
	source ingest.Source,
	table dedup.AdmissionTable,
	orchestrator *Orchestrator,
	eventBus *gochannel.GoChannel,
) *Dispatcher {
	return &Dispatcher{
		Config:       config,
		Source:       source,
		Table:        table,
		Orchestrator: orchestrator,
		EventBus:     eventBus,
	}
}

func (d *Dispatcher) Name() string {
	return d.Config.Name
}

// TriggerRun performs one fetch-admit-start cycle. An unavailable source
// still produces a run record, terminated in the failed state, so the outage
// is visible in history. Duplicate articles are skipped silently, never
// failing the run. Admission only happens once the run slot is claimed: a
// trigger rejected with ErrAlreadyRunning must not consume any fingerprint,
// otherwise its articles could never enter a later run.
func (d *Dispatcher) TriggerRun(ctx context.Context, source string, settings model.RunSettings) (*model.Run, error) {
	articles, err := d.Source.Fetch(ctx)
	if err != nil {
		Logger.Log.Errorf("ingestion source unavailable: %v", err)
		return d.Orchestrator.StartFailed(settings, errors.Wrap(ingest.ErrUnavailable, err.Error()))
	}

	return d.Orchestrator.StartWith(settings, func() []model.QueueItem {
		items := []model.QueueItem{}
		for idx := range articles {
			if err := d.Table.Admit(&articles[idx]); err != nil {
				if errors.Is(err, dedup.ErrDuplicateArticle) {
					Logger.Log.Infof("skip duplicate article %q from %s",
						articles[idx].Title, articles[idx].SourceName)
				} else {
					Logger.Log.Warnf("rejected article %q: %v", articles[idx].Title, err)
				}
				continue
			}
			items = append(items, model.QueueItem{
				Article: articles[idx],
				State:   model.QueueItemStatePending,
			})
		}
		Logger.Log.Infof("admitted %d of %d articles fetched for %s trigger",
			len(items), len(articles), source)
		return items
	})
}

// RunModule subscribes to run triggers and starts a run per trigger. A
// trigger arriving while a run is active is dropped, matching the
// single-active-run contract.
func (d *Dispatcher) RunModule(ctx context.Context) error {
	messages, err := d.EventBus.Subscribe(ctx, TOPIC_RUN_TRIGGER)
	if err != nil {
		return errors.Wrap(err, "dispatcher fails to subscribe to run triggers")
	}

	for msg := range messages {
		msg.Ack()
		if err := d.handleTrigger(ctx, msg); err != nil {
			Logger.Log.Errorf("failed to handle run trigger: %v", err)
		}
	}
	return nil
}

func (d *Dispatcher) handleTrigger(ctx context.Context, msg *message.Message) error {
	event := TriggerEvent{}
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return errors.Wrap(err, "malformed trigger event")
	}

	settings := model.RunSettings{
		IntervalSeconds: event.IntervalSeconds,
		NewestFirst:     d.Config.NewestFirst,
	}
	run, err := d.TriggerRun(ctx, event.Source, settings)
	if errors.Is(err, ErrAlreadyRunning) {
		Logger.Log.Infof("drop %s trigger, a run is already active", event.Source)
		return nil
	}
	if err != nil {
		return err
	}
	Logger.Log.Infof("started run %s from %s trigger", run.Id, event.Source)
	return nil
}
