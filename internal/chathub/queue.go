package chathub

import (
	"container/list"
	"sync"
	"time"

	"strangerchat/backend/internal/models"
)

// WaitingEntry is a participant sitting in the MatchQueue.
type WaitingEntry struct {
	ParticipantID int64
	Since         time.Time
}

// MatchQueue is the in-memory FIFO of participants awaiting a partner.
// It is not persisted: a restart drops every entry.
type MatchQueue struct {
	mu      sync.Mutex
	order   *list.List
	entries map[int64]*list.Element
	now     func() time.Time
}

func NewMatchQueue() *MatchQueue {
	return &MatchQueue{
		order:   list.New(),
		entries: make(map[int64]*list.Element),
		now:     time.Now,
	}
}

// Enqueue appends id to the back of the queue.
func (q *MatchQueue) Enqueue(id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[id]; ok {
		return models.ErrAlreadyWaiting
	}
	q.entries[id] = q.order.PushBack(WaitingEntry{ParticipantID: id, Since: q.now()})
	return nil
}

// DequeueIfAvailable pops the longest-waiting entry.
func (q *MatchQueue) DequeueIfAvailable() (WaitingEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	front := q.order.Front()
	if front == nil {
		return WaitingEntry{}, false
	}
	entry := q.order.Remove(front).(WaitingEntry)
	delete(q.entries, entry.ParticipantID)
	return entry, true
}

// Remove drops id from the queue and reports whether it was waiting.
func (q *MatchQueue) Remove(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	el, ok := q.entries[id]
	if !ok {
		return false
	}
	q.order.Remove(el)
	delete(q.entries, id)
	return true
}

func (q *MatchQueue) Contains(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[id]
	return ok
}

func (q *MatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.order.Len()
}

// Snapshot returns the waiting ids, front first.
func (q *MatchQueue) Snapshot() []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]int64, 0, q.order.Len())
	for el := q.order.Front(); el != nil; el = el.Next() {
		ids = append(ids, el.Value.(WaitingEntry).ParticipantID)
	}
	return ids
}

// requeue puts a dequeued entry back at the front, keeping its original wait time.
func (q *MatchQueue) requeue(entry WaitingEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[entry.ParticipantID]; ok {
		return
	}
	q.entries[entry.ParticipantID] = q.order.PushFront(entry)
}
