package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	running bool
}

func (p *fakeProbe) IsRunning() bool {
	return p.running
}

type fakeDoer struct {
	events []TriggerEvent
	err    error
}

func (d *fakeDoer) Trigger(event TriggerEvent) error {
	d.events = append(d.events, event)
	return d.err
}

func newTestTimer(t *testing.T, intervalSeconds int, enabled bool) (*AutoRunTimer, *fakeProbe, *fakeDoer) {
	probe := &fakeProbe{}
	doer := &fakeDoer{}
	timer, err := NewAutoRunTimer(
		TimerConfig{Name: "timer"}, intervalSeconds, enabled, NewRealClock(), probe, doer)
	require.NoError(t, err)
	return timer, probe, doer
}

func TestTimerRejectsDisallowedInterval(t *testing.T) {
	probe := &fakeProbe{}
	doer := &fakeDoer{}

	for _, seconds := range []int{0, -900, 100, 901, 86400} {
		_, err := NewAutoRunTimer(TimerConfig{Name: "timer"}, seconds, true, NewRealClock(), probe, doer)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "interval %d", seconds)
	}

	timer, _, _ := newTestTimer(t, 900, true)
	assert.ErrorIs(t, timer.Configure(1000, true), ErrInvalidConfiguration)
	// A rejected configuration leaves the timer untouched.
	assert.Equal(t, 900, timer.State().IntervalSeconds)
}

func TestTimerFiresAtZeroAndRearms(t *testing.T) {
	timer, _, doer := newTestTimer(t, 900, true)

	for i := 0; i < 899; i++ {
		timer.tick()
	}
	assert.Equal(t, 1, timer.State().CountdownSeconds)
	assert.Empty(t, doer.events)

	timer.tick()
	require.Len(t, doer.events, 1)
	assert.Equal(t, TriggerSourceTimer, doer.events[0].Source)
	assert.Equal(t, 900, doer.events[0].IntervalSeconds)
	// The countdown rearms with the configured interval.
	assert.Equal(t, 900, timer.State().CountdownSeconds)
}

func TestTimerDisabledDoesNotCount(t *testing.T) {
	timer, _, doer := newTestTimer(t, 900, false)

	for i := 0; i < 1000; i++ {
		timer.tick()
	}
	assert.Equal(t, 900, timer.State().CountdownSeconds)
	assert.Empty(t, doer.events)
}

func TestTimerPausesWhileRunActiveAndResumes(t *testing.T) {
	timer, probe, doer := newTestTimer(t, 900, true)

	for i := 0; i < 100; i++ {
		timer.tick()
	}
	assert.Equal(t, 800, timer.State().CountdownSeconds)

	// While a run is active the countdown holds its value.
	probe.running = true
	for i := 0; i < 300; i++ {
		timer.tick()
	}
	state := timer.State()
	assert.True(t, state.PausedForProcessing)
	assert.Equal(t, 800, state.CountdownSeconds)
	assert.Empty(t, doer.events)

	// After the run finishes, the countdown resumes where it left off rather
	// than restarting.
	probe.running = false
	timer.tick()
	state = timer.State()
	assert.False(t, state.PausedForProcessing)
	assert.Equal(t, 799, state.CountdownSeconds)
}

func TestConfigureResetsCountdown(t *testing.T) {
	timer, _, _ := newTestTimer(t, 900, true)

	for i := 0; i < 500; i++ {
		timer.tick()
	}
	assert.Equal(t, 400, timer.State().CountdownSeconds)

	require.NoError(t, timer.Configure(3600, true))
	state := timer.State()
	assert.Equal(t, 3600, state.IntervalSeconds)
	assert.Equal(t, 3600, state.CountdownSeconds)
	assert.True(t, state.Enabled)
}
