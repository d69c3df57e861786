package scheduler

import "time"

// onceEntry is a queued one-time task. Entries are ordered by run time,
// then by priority (higher first), then by insertion order.
type onceEntry struct {
	runAt    time.Time
	priority int
	taskID   string
	task     string
	params   map[string]any
	seq      uint64
}

// onceHeap is a min-heap over onceEntry used with container/heap.
type onceHeap []*onceEntry

func (h onceHeap) Len() int { return len(h) }

func (h onceHeap) Less(i, j int) bool {
	if !h[i].runAt.Equal(h[j].runAt) {
		return h[i].runAt.Before(h[j].runAt)
	}
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h onceHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *onceHeap) Push(x any) { *h = append(*h, x.(*onceEntry)) }

func (h *onceHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
