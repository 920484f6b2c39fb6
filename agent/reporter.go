package agent

import (
	"context"
	"encoding/json"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/postmux/postmux/model"
	Logger "github.com/postmux/postmux/utils/log"
)

type ReporterConfig struct {
	Name string
}

// Reporter consumes terminal run records and flushes run metrics to statsd.
type Reporter struct {
	Config   ReporterConfig
	Statsd   *statsd.Client
	EventBus *gochannel.GoChannel
}

func NewReporter(config ReporterConfig, client *statsd.Client, eventBus *gochannel.GoChannel) *Reporter {
	return &Reporter{
		Config:   config,
		Statsd:   client,
		EventBus: eventBus,
	}
}

func (r *Reporter) Name() string {
	return r.Config.Name
}

func (r *Reporter) RunModule(ctx context.Context) error {
	messages, err := r.EventBus.Subscribe(ctx, TOPIC_RUN_FINISHED)
	if err != nil {
		return errors.Wrap(err, "reporter fails to subscribe to finished runs")
	}

	for msg := range messages {
		msg.Ack()
		run := model.Run{}
		if err := json.Unmarshal(msg.Payload, &run); err != nil {
			Logger.Log.Errorf("reporter receives malformed run record: %v", err)
			continue
		}
		ReportRunResult(&run, r.Statsd)
	}
	return nil
}

// ReportRunResult emits one terminal-state count plus processed and generated
// volumes for a finished run.
func ReportRunResult(run *model.Run, client *statsd.Client) {
	if client == nil {
		return
	}
	tags := []string{"state:" + string(run.State)}
	if err := client.Incr(DDOG_RUN_STATE_COUNTER, tags, 1); err != nil {
		Logger.Log.Errorf("fail to emit run state metric: %v", err)
	}
	if err := client.Count(DDOG_RUN_PROCESSED_COUNTER, int64(run.ProcessedCount), tags, 1); err != nil {
		Logger.Log.Errorf("fail to emit processed metric: %v", err)
	}
	if err := client.Count(DDOG_RUN_GENERATED_COUNTER, int64(run.GeneratedCount), tags, 1); err != nil {
		Logger.Log.Errorf("fail to emit generated metric: %v", err)
	}
}
