// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import "container/heap"

// fiberHeap is the per-vcpu sleep-queue: a container/heap min-heap of fibers
// keyed on deadline_us, carrying fiber pointers directly and supporting
// O(log n) removal via each fiber's heapIndex (needed for cancellation and
// for the interrupt path pulling a SLEEPING fiber out early).
type fiberHeap []*Fiber

func (h fiberHeap) Len() int { return len(h) }

func (h fiberHeap) Less(i, j int) bool { return h[i].deadline < h[j].deadline }

func (h fiberHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *fiberHeap) Push(x any) {
	f := x.(*Fiber)
	f.heapIndex = len(*h)
	*h = append(*h, f)
}

func (h *fiberHeap) Pop() any {
	old := *h
	n := len(old)
	f := old[n-1]
	old[n-1] = nil
	f.heapIndex = -1
	*h = old[:n-1]
	return f
}

// timerQueue wraps fiberHeap with the insert/remove/peek operations the
// scheduler loop actually calls, keeping container/heap bookkeeping local
// to this file.
type timerQueue struct {
	h fiberHeap
}

func (q *timerQueue) insert(f *Fiber, deadlineUS int64) {
	f.deadline = deadlineUS
	heap.Push(&q.h, f)
}

// remove pulls f out of the timer heap early (cancellation, or interrupt
// arriving while SLEEPING). No-op if f isn't currently in the heap.
func (q *timerQueue) remove(f *Fiber) bool {
	if f.heapIndex < 0 || f.heapIndex >= len(q.h) || q.h[f.heapIndex] != f {
		return false
	}
	heap.Remove(&q.h, f.heapIndex)
	return true
}

func (q *timerQueue) empty() bool { return len(q.h) == 0 }

// peekDeadline returns the earliest deadline in the heap and true, or
// (0, false) if the heap is empty.
func (q *timerQueue) peekDeadline() (int64, bool) {
	if len(q.h) == 0 {
		return 0, false
	}
	return q.h[0].deadline, true
}

// popExpired removes and returns every fiber whose deadline has passed,
// invoking fn for each in deadline order. The heap compares deadlines only,
// so the order among fibers with equal deadlines is not defined.
func (q *timerQueue) popExpired(now int64, fn func(*Fiber)) {
	for len(q.h) > 0 && q.h[0].deadline <= now {
		f := heap.Pop(&q.h).(*Fiber)
		fn(f)
	}
}
