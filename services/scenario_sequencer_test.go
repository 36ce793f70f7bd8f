package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordingEmitter struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingEmitter) emit(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
}

func (r *recordingEmitter) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func TestScenarioSequencer_FullRun(t *testing.T) {
	clock := newFakeClock()
	rec := &recordingEmitter{}
	seq := NewScenarioSequencer(clock, DefaultScenarioDelay, rec.emit)

	assert.False(t, seq.OnExchange(), "exchanges before start are ignored")

	require.True(t, seq.Start())
	assert.Equal(t, []string{scenarioScript[0]}, rec.Texts())
	assert.Equal(t, 0, seq.Index())
	assert.True(t, seq.Pending())

	clock.Advance(DefaultScenarioDelay - time.Millisecond)
	assert.Len(t, rec.Texts(), 1)

	clock.Advance(time.Millisecond)
	assert.Equal(t, scenarioScript[:2], rec.Texts())
	assert.Equal(t, 1, seq.Index())
	assert.False(t, seq.Pending())

	require.True(t, seq.OnExchange())
	clock.Advance(DefaultScenarioDelay)
	assert.Equal(t, 2, seq.Index())
	assert.Equal(t, scenarioScript[2], rec.Texts()[2])

	require.True(t, seq.OnExchange())
	clock.Advance(DefaultScenarioDelay)
	assert.Equal(t, 3, seq.Index())
	assert.True(t, seq.Exhausted())

	assert.False(t, seq.OnExchange())
	clock.Advance(time.Minute)
	assert.Equal(t, scenarioScript[:], rec.Texts())
	assert.Zero(t, clock.Pending())
}

func TestScenarioSequencer_StartIsOnce(t *testing.T) {
	clock := newFakeClock()
	rec := &recordingEmitter{}
	seq := NewScenarioSequencer(clock, time.Second, rec.emit)

	assert.True(t, seq.Start())
	assert.False(t, seq.Start())
	assert.Len(t, rec.Texts(), 1)
	assert.Equal(t, 1, clock.Pending())
}

func TestScenarioSequencer_IgnoresTriggerWhilePending(t *testing.T) {
	clock := newFakeClock()
	rec := &recordingEmitter{}
	seq := NewScenarioSequencer(clock, time.Second, rec.emit)
	seq.Start()
	clock.Advance(time.Second)

	assert.True(t, seq.OnExchange())
	assert.False(t, seq.OnExchange())
	assert.False(t, seq.OnExchange())
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(time.Second)
	assert.Equal(t, 2, seq.Index())
	assert.Len(t, rec.Texts(), 3)
}

func TestScenarioSequencer_ExchangeBeforeFirstScenarioDoesNothing(t *testing.T) {
	clock := newFakeClock()
	rec := &recordingEmitter{}
	seq := NewScenarioSequencer(clock, time.Second, rec.emit)
	seq.Start()

	assert.False(t, seq.OnExchange())
	clock.Advance(time.Second)
	assert.Equal(t, 1, seq.Index())
	assert.Len(t, rec.Texts(), 2)
}

func TestScenarioSequencer_StopCancelsPending(t *testing.T) {
	clock := newFakeClock()
	rec := &recordingEmitter{}
	seq := NewScenarioSequencer(clock, time.Second, rec.emit)
	seq.Start()

	seq.Stop()
	assert.False(t, seq.Pending())
	clock.Advance(time.Hour)
	assert.Len(t, rec.Texts(), 1)
	assert.Equal(t, 0, seq.Index())
	assert.False(t, seq.Start())
	assert.False(t, seq.OnExchange())
}

func TestScenarioSequencer_RealClockLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recordingEmitter{}
	seq := NewScenarioSequencer(RealClock(), 5*time.Millisecond, rec.emit)
	seq.Start()
	require.Eventually(t, func() bool { return seq.Index() == 1 }, time.Second, time.Millisecond)

	seq.OnExchange()
	require.Eventually(t, func() bool { return seq.Index() == 2 }, time.Second, time.Millisecond)

	seq.OnExchange()
	seq.Stop()
	assert.LessOrEqual(t, seq.Index(), 3)
}
