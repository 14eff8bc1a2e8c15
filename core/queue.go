package core

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// delayedKind labels ready items that came from the pending delayed set.
const delayedKind = "delayed"

// readyItem is one entry of the ready FIFO.
type readyItem struct {
	op Operation
	// kind labels metrics and history: "ordinary", "exempt" or "delayed".
	kind string
	// timerID is set for delayed operations only.
	timerID TimerID
	// onComplete, if set, runs once the operation finished and was recorded.
	onComplete func()
	// onDiscard, if set, runs when Stop drops the item unexecuted.
	onDiscard func()
}

// operationQueue is the ready FIFO. It is not safe for concurrent use; the
// owning AsyncQueue guards it with its mutex.
type operationQueue struct {
	items []readyItem
}

func newOperationQueue() *operationQueue {
	return &operationQueue{
		items: make([]readyItem, 0, defaultQueueCap),
	}
}

func (q *operationQueue) Push(item readyItem) {
	q.items = append(q.items, item)
}

func (q *operationQueue) Pop() (readyItem, bool) {
	if len(q.items) == 0 {
		return readyItem{}, false
	}

	item := q.items[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.items[0] = readyItem{}
	q.items = q.items[1:]
	q.maybeCompact()

	return item, true
}

func (q *operationQueue) maybeCompact() {
	n := len(q.items)
	c := cap(q.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.items = make([]readyItem, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]readyItem, n, newCap)
	copy(newSlice, q.items)
	q.items = newSlice
}

func (q *operationQueue) Len() int {
	return len(q.items)
}

func (q *operationQueue) IsEmpty() bool {
	return len(q.items) == 0
}

// Clear drops every pending operation and returns them.
func (q *operationQueue) Clear() []readyItem {
	dropped := q.items
	q.items = make([]readyItem, 0, defaultQueueCap)
	return dropped
}

// indexOfDelayed returns the position of the first delayed item tagged
// timerID, or of the last delayed item for TimerIDAll. It returns -1 if
// there is none.
func (q *operationQueue) indexOfDelayed(timerID TimerID) int {
	found := -1
	for i, item := range q.items {
		if item.kind != delayedKind {
			continue
		}
		if timerID == TimerIDAll {
			found = i
			continue
		}
		if item.timerID == timerID {
			return i
		}
	}
	return found
}

// notifyAt chains release onto the completion and discard hooks of the item
// at position i.
func (q *operationQueue) notifyAt(i int, release func()) {
	item := &q.items[i]
	onComplete, onDiscard := item.onComplete, item.onDiscard
	item.onComplete = func() {
		if onComplete != nil {
			onComplete()
		}
		release()
	}
	item.onDiscard = func() {
		if onDiscard != nil {
			onDiscard()
		}
		release()
	}
}
