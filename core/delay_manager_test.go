package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scheduleEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return scheduleEpoch.Add(time.Duration(ms) * time.Millisecond) }

// TestDelaySchedule_Ordering verifies deadline order with FIFO tie-breaking
// Given: entries added out of deadline order, two with equal deadlines
// When: they are popped one by one
// Then: earlier deadlines come first and ties keep insertion order
func TestDelaySchedule_Ordering(t *testing.T) {
	s := newDelaySchedule()
	noop := func() {}

	s.add(at(30), TimerIDListenStreamIdle, noop)
	s.add(at(10), TimerIDWriteStreamIdle, noop)
	s.add(at(20), TimerIDOnlineStateTimeout, noop)
	s.add(at(10), TimerIDListenStreamConnectionBackoff, noop)

	want := []TimerID{
		TimerIDWriteStreamIdle,
		TimerIDListenStreamConnectionBackoff,
		TimerIDOnlineStateTimeout,
		TimerIDListenStreamIdle,
	}
	for i, id := range want {
		e := s.popNext()
		require.NotNil(t, e, "step %d", i)
		assert.Equal(t, id, e.timerID, "step %d", i)
		assert.False(t, e.live())
	}
	assert.Nil(t, s.popNext())
}

func TestDelaySchedule_PopDue(t *testing.T) {
	s := newDelaySchedule()
	noop := func() {}

	s.add(at(5), TimerIDWriteStreamIdle, noop)
	s.add(at(10), TimerIDListenStreamIdle, noop)
	s.add(at(15), TimerIDOnlineStateTimeout, noop)

	assert.Empty(t, s.popDue(at(4)))

	due := s.popDue(at(10))
	require.Len(t, due, 2)
	assert.Equal(t, TimerIDWriteStreamIdle, due[0].timerID)
	assert.Equal(t, TimerIDListenStreamIdle, due[1].timerID)
	assert.Equal(t, 1, s.Len())
}

// TestDelaySchedule_RemoveIsFirstWins verifies that removing an entry that
// already left the set reports false.
func TestDelaySchedule_RemoveIsFirstWins(t *testing.T) {
	s := newDelaySchedule()
	noop := func() {}

	a := s.add(at(1), TimerIDWriteStreamIdle, noop)
	b := s.add(at(2), TimerIDListenStreamIdle, noop)
	c := s.add(at(3), TimerIDOnlineStateTimeout, noop)

	assert.True(t, s.remove(b))
	assert.False(t, s.remove(b))

	fired := s.popNext()
	assert.Same(t, a, fired)
	assert.False(t, s.remove(a))

	assert.True(t, c.live())
	assert.Equal(t, 1, s.Len())
}

func TestDelaySchedule_Contains(t *testing.T) {
	s := newDelaySchedule()
	assert.False(t, s.contains(TimerIDAll))

	e := s.add(at(1), TimerIDOnlineStateTimeout, func() {})
	assert.True(t, s.contains(TimerIDAll))
	assert.True(t, s.contains(TimerIDOnlineStateTimeout))
	assert.False(t, s.contains(TimerIDWriteStreamIdle))

	s.remove(e)
	assert.False(t, s.contains(TimerIDOnlineStateTimeout))
}

func TestDelaySchedule_Clear(t *testing.T) {
	s := newDelaySchedule()
	a := s.add(at(1), TimerIDWriteStreamIdle, func() {})
	b := s.add(at(2), TimerIDListenStreamIdle, func() {})

	abandoned := s.clear()
	assert.Len(t, abandoned, 2)
	assert.False(t, a.live())
	assert.False(t, b.live())
	assert.False(t, s.remove(a))
	assert.Equal(t, 0, s.Len())

	s.add(at(3), TimerIDOnlineStateTimeout, func() {})
	assert.Equal(t, 1, s.Len())
}

// TestDelaySchedule_ManyEntries keeps heap indices consistent under a mix of
// removals from the middle and pops from the front.
func TestDelaySchedule_ManyEntries(t *testing.T) {
	s := newDelaySchedule()
	entries := make([]*delayedEntry, 0, 200)
	for i := range 200 {
		entries = append(entries, s.add(at(200-i), TimerIDOnlineStateTimeout, func() {}))
	}
	for i := 0; i < 200; i += 2 {
		require.True(t, s.remove(entries[i]))
	}

	var last time.Time
	for s.Len() > 0 {
		e := s.popNext()
		assert.False(t, e.deadline.Before(last))
		last = e.deadline
	}
}
