package buffer

import (
	"container/list"
	"sync"
)

// memoryLane is the ordered queue of values staged in memory, guarded by
// its own mutex and condition variable. Entries are appended at the back on
// Store and always scanned front-to-back (insertion order) when looking for
// an eviction candidate or the oldest not-yet-transferred entry.
//
// Structure mirrors zephyrcache's kv.Store (container/list + map for O(1)
// lookup), generalized with a per-entry transfer-state tag instead of an
// LRU touch on Get, since this lane's eviction order is FIFO-by-disk-state,
// not recency.
type memoryLane[K comparable] struct {
	mu   sync.Mutex
	cond *sync.Cond

	ll   *list.List               // of *memoryEntry[K], oldest at Front
	byID map[K]*list.Element

	current uint64
	max     uint64
}

func newMemoryLane[K comparable](max uint64) *memoryLane[K] {
	m := &memoryLane[K]{
		ll:   list.New(),
		byID: make(map[K]*list.Element),
		max:  max,
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// get returns the value stored for key, if present.
func (m *memoryLane[K]) get(key K) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.byID[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*memoryEntry[K]).value, true
}

// findOldestNotStarted returns the oldest entry whose diskState is
// notStarted, or nil.
func (m *memoryLane[K]) findOldestNotStarted() *memoryEntry[K] {
	for e := m.ll.Front(); e != nil; e = e.Next() {
		me := e.Value.(*memoryEntry[K])
		if me.diskState == notStarted {
			return me
		}
	}
	return nil
}

// waitNextNotStarted blocks until an entry is available to transfer, or
// stopped() reports true (in which case it returns nil).
func (m *memoryLane[K]) waitNextNotStarted(stopped func() bool) *memoryEntry[K] {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if me := m.findOldestNotStarted(); me != nil {
			return me
		}
		if stopped() {
			return nil
		}
		m.cond.Wait()
	}
}

// findRemovalCandidate returns the oldest entry whose diskState is
// completed (safe to evict, since it is already durable on disk).
func (m *memoryLane[K]) findRemovalCandidate() *list.Element {
	for e := m.ll.Front(); e != nil; e = e.Next() {
		if e.Value.(*memoryEntry[K]).diskState == completed {
			return e
		}
	}
	return nil
}

func (m *memoryLane[K]) hasSpace(required uint64) bool {
	return m.current+required <= m.max
}

// waitForSpace blocks until there is room for required bytes, evicting
// completed-on-disk entries as they become available. Returns false if the
// lane is stopping and the caller should abort.
func (m *memoryLane[K]) waitForSpace(required uint64, stopped func() bool) bool {
	for !m.hasSpace(required) {
		for {
			if cand := m.findRemovalCandidate(); cand != nil {
				me := cand.Value.(*memoryEntry[K])
				m.current -= uint64(len(me.value))
				delete(m.byID, me.key)
				m.ll.Remove(cand)
				break
			}
			if m.hasSpace(required) || stopped() {
				break
			}
			m.cond.Wait()
		}
		if stopped() {
			return false
		}
	}
	return true
}

// store inserts a new entry at the back, blocking via waitForSpace if
// necessary. required is len(value). Returns false if the lane stopped
// while waiting.
func (m *memoryLane[K]) store(key K, value []byte, stopped func() bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.waitForSpace(uint64(len(value)), stopped) {
		return false
	}
	el := m.ll.PushBack(&memoryEntry[K]{key: key, value: value, diskState: notStarted})
	m.byID[key] = el
	m.current += uint64(len(value))
	m.cond.Broadcast()
	return true
}

// remove deletes key's entry if present, returning its last-known
// diskState and whether it was found.
func (m *memoryLane[K]) remove(key K) (transferState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.byID[key]
	if !ok {
		return notStarted, false
	}
	me := el.Value.(*memoryEntry[K])
	state := me.diskState
	m.current -= uint64(len(me.value))
	delete(m.byID, key)
	m.ll.Remove(el)
	m.cond.Broadcast()
	return state, true
}

// markStarted flips key's diskState to started and returns its value, or
// ok=false if the key is no longer present.
func (m *memoryLane[K]) markStarted(key K) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.byID[key]
	if !ok {
		return nil, false
	}
	me := el.Value.(*memoryEntry[K])
	me.diskState = started
	return me.value, true
}

// markCompleted flips key's diskState to completed if the entry is still
// present (it may have been deleted while the transfer was in flight).
func (m *memoryLane[K]) markCompleted(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.byID[key]; ok {
		el.Value.(*memoryEntry[K]).diskState = completed
	}
	m.cond.Broadcast()
}

// snapshotState reports key's current diskState, if present.
func (m *memoryLane[K]) snapshotState(key K) (transferState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.byID[key]
	if !ok {
		return notStarted, false
	}
	return el.Value.(*memoryEntry[K]).diskState, true
}

func (m *memoryLane[K]) setMax(max uint64) {
	m.mu.Lock()
	increased := max > m.max
	m.max = max
	m.mu.Unlock()
	if increased {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	}
}

func (m *memoryLane[K]) currentUsage() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *memoryLane[K]) maxUsage() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max
}

// broadcastStop wakes every goroutine blocked on this lane's condition so
// they can observe the stopping flag and return.
func (m *memoryLane[K]) broadcastStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cond.Broadcast()
}
