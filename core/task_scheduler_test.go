package core

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWorkScheduler_FIFO verifies posted work is handed out in order
func TestWorkScheduler_FIFO(t *testing.T) {
	s := NewWorkScheduler(1, nil)
	var order []int

	for i := range 3 {
		require.NoError(t, s.PostInternal(func() { order = append(order, i) }))
	}
	assert.Equal(t, 3, s.QueuedTaskCount())

	stop := make(chan struct{})
	for range 3 {
		task, ok := s.GetWork(stop)
		require.True(t, ok)
		task()
	}

	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Equal(t, 0, s.QueuedTaskCount())
}

func TestWorkScheduler_GetWorkBlocksUntilPosted(t *testing.T) {
	s := NewWorkScheduler(2, nil)
	stop := make(chan struct{})

	var ran atomic.Bool
	got := make(chan func(), 1)
	go func() {
		task, ok := s.GetWork(stop)
		if ok {
			got <- task
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.PostInternal(func() { ran.Store(true) }))

	select {
	case task := <-got:
		task()
	case <-time.After(time.Second):
		t.Fatal("GetWork did not return posted work")
	}
	assert.True(t, ran.Load())
}

func TestWorkScheduler_GetWorkReturnsOnStop(t *testing.T) {
	s := NewWorkScheduler(1, nil)
	stop := make(chan struct{})
	close(stop)

	_, ok := s.GetWork(stop)
	assert.False(t, ok)
}

// TestWorkScheduler_Shutdown verifies immediate shutdown
// Main test items:
// 1. Shutdown drops the backlog
// 2. PostInternal after shutdown returns ErrPoolNotRunning
func TestWorkScheduler_Shutdown(t *testing.T) {
	s := NewWorkScheduler(1, nil)
	require.NoError(t, s.PostInternal(func() {}))
	require.NoError(t, s.PostInternal(func() {}))

	s.Shutdown()

	assert.Equal(t, 0, s.QueuedTaskCount())
	assert.ErrorIs(t, s.PostInternal(func() {}), ErrPoolNotRunning)
	assert.Equal(t, 0, s.QueuedTaskCount())
}

// TestWorkScheduler_ShutdownGraceful_EmptyQueue tests graceful shutdown with no pending work
func TestWorkScheduler_ShutdownGraceful_EmptyQueue(t *testing.T) {
	s := NewWorkScheduler(2, nil)

	require.NoError(t, s.ShutdownGraceful(time.Second))
	assert.ErrorIs(t, s.PostInternal(func() {}), ErrPoolNotRunning)
}

// TestWorkScheduler_ShutdownGraceful_WithActiveTasks tests graceful shutdown with active work
// Main test items:
// 1. ShutdownGraceful waits for active work to complete
// 2. ActiveTaskCount is 0 afterwards
func TestWorkScheduler_ShutdownGraceful_WithActiveTasks(t *testing.T) {
	s := NewWorkScheduler(2, nil)

	// Simulate work that workers already picked up
	for range 3 {
		s.OnTaskStart()
	}
	require.Equal(t, 3, s.ActiveTaskCount())

	go func() {
		for range 3 {
			time.Sleep(20 * time.Millisecond)
			s.OnTaskEnd()
		}
	}()

	require.NoError(t, s.ShutdownGraceful(time.Second))
	assert.Equal(t, 0, s.ActiveTaskCount())
}

// TestWorkScheduler_ShutdownGraceful_Timeout tests graceful shutdown timeout behavior
// Main test items:
// 1. ShutdownGraceful returns an error when the timeout expires
// 2. The backlog is cleared anyway
func TestWorkScheduler_ShutdownGraceful_Timeout(t *testing.T) {
	s := NewWorkScheduler(1, nil)
	require.NoError(t, s.PostInternal(func() {}))
	s.OnTaskStart() // never ends

	err := s.ShutdownGraceful(50 * time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, 0, s.QueuedTaskCount())
}
