package core

import (
	"container/heap"
	"time"
)

// delayedEntry is one member of the pending delayed set. It is live while it
// sits in the heap (index >= 0). Firing and cancelling both remove it under
// the owning queue's mutex, so whichever happens first wins.
type delayedEntry struct {
	deadline time.Time
	seq      uint64
	timerID  TimerID
	op       Operation
	timer    Timer
	index    int // for heap interface
}

func (e *delayedEntry) live() bool { return e.index >= 0 }

// delayedHeap implements heap.Interface ordered by deadline, then insertion.
type delayedHeap []*delayedEntry

func (h delayedHeap) Len() int { return len(h) }
func (h delayedHeap) Less(i, j int) bool {
	if !h[i].deadline.Equal(h[j].deadline) {
		return h[i].deadline.Before(h[j].deadline)
	}
	return h[i].seq < h[j].seq
}
func (h delayedHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedHeap) Push(x any) {
	n := len(*h)
	item := x.(*delayedEntry)
	item.index = n
	*h = append(*h, item)
}

func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *delayedHeap) Peek() *delayedEntry {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// delaySchedule is the pending delayed set of one AsyncQueue. Callers hold
// the queue mutex.
type delaySchedule struct {
	pq      delayedHeap
	nextSeq uint64
}

func newDelaySchedule() delaySchedule {
	s := delaySchedule{pq: make(delayedHeap, 0)}
	heap.Init(&s.pq)
	return s
}

func (s *delaySchedule) add(deadline time.Time, timerID TimerID, op Operation) *delayedEntry {
	entry := &delayedEntry{
		deadline: deadline,
		seq:      s.nextSeq,
		timerID:  timerID,
		op:       op,
	}
	s.nextSeq++
	heap.Push(&s.pq, entry)
	return entry
}

// remove takes a live entry out of the set. It returns false if the entry
// already fired or was cancelled.
func (s *delaySchedule) remove(entry *delayedEntry) bool {
	if !entry.live() {
		return false
	}
	heap.Remove(&s.pq, entry.index)
	return true
}

// popNext removes and returns the earliest live entry, or nil.
func (s *delaySchedule) popNext() *delayedEntry {
	if s.pq.Len() == 0 {
		return nil
	}
	return heap.Pop(&s.pq).(*delayedEntry)
}

// popThrough removes entries in order up to and including the first one
// tagged timerID, or every entry for TimerIDAll.
func (s *delaySchedule) popThrough(timerID TimerID) []*delayedEntry {
	var out []*delayedEntry
	for s.pq.Len() > 0 {
		e := s.popNext()
		out = append(out, e)
		if timerID != TimerIDAll && e.timerID == timerID {
			break
		}
	}
	return out
}

// popDue removes every entry whose deadline is not after now, in order.
func (s *delaySchedule) popDue(now time.Time) []*delayedEntry {
	var due []*delayedEntry
	for {
		next := s.pq.Peek()
		if next == nil || next.deadline.After(now) {
			return due
		}
		due = append(due, s.popNext())
	}
}

// contains reports whether a live entry carries timerID. TimerIDAll matches
// any entry.
func (s *delaySchedule) contains(timerID TimerID) bool {
	if timerID == TimerIDAll {
		return s.pq.Len() > 0
	}
	for _, e := range s.pq {
		if e.timerID == timerID {
			return true
		}
	}
	return false
}

// clear abandons every entry and returns them so their timers can be stopped.
func (s *delaySchedule) clear() []*delayedEntry {
	abandoned := make([]*delayedEntry, 0, len(s.pq))
	for _, e := range s.pq {
		e.index = -1
		abandoned = append(abandoned, e)
	}
	s.pq = make(delayedHeap, 0)
	heap.Init(&s.pq)
	return abandoned
}

func (s *delaySchedule) Len() int { return s.pq.Len() }

// =============================================================================
// DelayedOperation: caller-held handle
// =============================================================================

// DelayedOperation is a handle to an operation scheduled with
// EnqueueAfterDelay. The zero value is valid and does nothing.
type DelayedOperation struct {
	queue *AsyncQueue
	entry *delayedEntry
}

// Cancel prevents the operation from running if it has not started yet.
// Cancelling an operation that already ran, was already cancelled, or was
// never scheduled is a no-op.
func (d DelayedOperation) Cancel() {
	if d.queue == nil || d.entry == nil {
		return
	}
	d.queue.cancelDelayed(d.entry)
}

// TimerID returns the tag the operation was scheduled with.
func (d DelayedOperation) TimerID() TimerID {
	if d.entry == nil {
		return TimerIDAll
	}
	return d.entry.timerID
}

// IsPending reports whether the operation is still waiting to fire.
func (d DelayedOperation) IsPending() bool {
	if d.queue == nil || d.entry == nil {
		return false
	}
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	return d.entry.live()
}
