package agent

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/postmux/postmux/model"
	"github.com/postmux/postmux/utils"
	Logger "github.com/postmux/postmux/utils/log"
)

// AllowedIntervalSeconds is the closed set of auto-run intervals: 15 and 30
// minutes, then 1, 2, 3 and 4 hours.
var AllowedIntervalSeconds = []int{900, 1800, 3600, 7200, 10800, 14400}

// ValidateInterval returns ErrInvalidConfiguration for any interval outside
// the allowed set.
func ValidateInterval(seconds int) error {
	if !utils.ContainsInt(AllowedIntervalSeconds, seconds) {
		return errors.Wrapf(ErrInvalidConfiguration, "interval %d seconds is not allowed", seconds)
	}
	return nil
}

// TriggerDoer decouples the timer from trigger delivery so tests can capture
// triggers without an event bus.
type TriggerDoer interface {
	Trigger(event TriggerEvent) error
}

// EventBusTriggerDoer publishes triggers to TOPIC_RUN_TRIGGER.
type EventBusTriggerDoer struct {
	EventBus *gochannel.GoChannel
}

func (d *EventBusTriggerDoer) Trigger(event TriggerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "fail to marshal trigger event")
	}
	return d.EventBus.Publish(TOPIC_RUN_TRIGGER, message.NewMessage(watermill.NewUUID(), data))
}

// RunProbe exposes just enough of the orchestrator for the timer to know
// whether a run is active.
type RunProbe interface {
	IsRunning() bool
}

type TimerConfig struct {
	Name string
}

// AutoRunTimer counts down towards the next automatic run. While a run is
// active the countdown pauses and resumes where it left off once the run
// finishes. Reconfiguring the interval resets the countdown to the new
// interval; a manual run does not.
type AutoRunTimer struct {
	Config TimerConfig

	clock Clock
	probe RunProbe
	doer  TriggerDoer

	m     sync.RWMutex
	state model.TimerState
}

func NewAutoRunTimer(
	config TimerConfig,
	intervalSeconds int,
	enabled bool,
	clock Clock,
	probe RunProbe,
	doer TriggerDoer,
) (*AutoRunTimer, error) {
	if err := ValidateInterval(intervalSeconds); err != nil {
		return nil, err
	}
	return &AutoRunTimer{
		Config: config,
		clock:  clock,
		probe:  probe,
		doer:   doer,
		state: model.TimerState{
			Enabled:          enabled,
			IntervalSeconds:  intervalSeconds,
			CountdownSeconds: intervalSeconds,
		},
	}, nil
}

func (t *AutoRunTimer) Name() string {
	return t.Config.Name
}

// Configure replaces the timer interval and enablement, resetting the
// countdown to the new interval.
func (t *AutoRunTimer) Configure(intervalSeconds int, enabled bool) error {
	if err := ValidateInterval(intervalSeconds); err != nil {
		return err
	}
	t.m.Lock()
	defer t.m.Unlock()
	t.state.Enabled = enabled
	t.state.IntervalSeconds = intervalSeconds
	t.state.CountdownSeconds = intervalSeconds
	return nil
}

// State returns a snapshot of the timer.
func (t *AutoRunTimer) State() model.TimerState {
	t.m.RLock()
	defer t.m.RUnlock()
	return t.state
}

// RunModule advances the countdown once per second until the context is
// cancelled.
func (t *AutoRunTimer) RunModule(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.clock.After(time.Second):
			t.tick()
		}
	}
}

// tick advances the countdown by one second. While a run is active the timer
// only marks itself paused. When the countdown reaches zero it fires a
// trigger and rearms with the configured interval.
func (t *AutoRunTimer) tick() {
	t.m.Lock()
	defer t.m.Unlock()

	if t.probe.IsRunning() {
		t.state.PausedForProcessing = true
		return
	}
	t.state.PausedForProcessing = false

	if !t.state.Enabled {
		return
	}
	t.state.CountdownSeconds--
	if t.state.CountdownSeconds > 0 {
		return
	}
	t.state.CountdownSeconds = t.state.IntervalSeconds

	event := TriggerEvent{
		Source:          TriggerSourceTimer,
		IntervalSeconds: t.state.IntervalSeconds,
	}
	if err := t.doer.Trigger(event); err != nil {
		Logger.Log.Errorf("auto-run timer fails to fire trigger: %v", err)
	}
}
