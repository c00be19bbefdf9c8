package buffer

import (
	"container/list"
	"sync"
)

// diskLane tracks which keys have been, or are being, written to the
// filesystem sink, and how many bytes are currently accounted for on disk.
// Like memoryLane it is a container/list + map structure guarded by its own
// mutex/condition, kept deliberately separate from the memory lane's lock so
// a Get on an in-memory entry never has to wait on disk I/O.
//
// Unlike the memory lane, a disk entry's own state (started/completed/
// cancelled) is authoritative for in-flight writes: both the transfer
// worker's memory-routed writes and Store's inline bypass writes (for
// values too large for the memory lane) register a started placeholder
// here before touching the filesystem, so Delete and Get have one place to
// observe and react to an in-flight write regardless of which path started
// it.
type diskLane[K comparable] struct {
	mu   sync.Mutex
	cond *sync.Cond

	ll   *list.List // of *diskEntry[K], oldest at Front
	byID map[K]*list.Element

	current uint64
	max     uint64
}

func newDiskLane[K comparable](max uint64) *diskLane[K] {
	d := &diskLane[K]{
		ll:   list.New(),
		byID: make(map[K]*list.Element),
		max:  max,
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

func (d *diskLane[K]) hasSpace(required uint64) bool {
	return d.current+required <= d.max
}

// oldestEvictableLocked returns the oldest entry whose write has already
// completed; in-flight (started) entries are never eviction candidates.
// Caller must hold d.mu.
func (d *diskLane[K]) oldestEvictableLocked() *diskEntry[K] {
	for e := d.ll.Front(); e != nil; e = e.Next() {
		de := e.Value.(*diskEntry[K])
		if de.state == completed {
			return de
		}
	}
	return nil
}

// reserveDiskSpace registers key's Started placeholder unconditionally,
// before waiting for room, then blocks until size bytes of headroom exist,
// consulting policy to decide whether the oldest completed entry should
// instead be evicted. Registering first (rather than only once room is
// available) means a concurrent Delete can observe and cancel this key's
// own entry while the caller is still blocked waiting for space, per
// SPEC_FULL.md §4.1.3.
//
// Returns ready=true once there is room and the entry is still Started.
// Returns wasCancelled=true if a concurrent Delete cancelled this key's
// entry while waiting; the entry has already been removed in that case. If
// neither is true, either size alone exceeds the disk lane's capacity (no
// placeholder is registered then), or stopped() became true while waiting
// (the placeholder is left in the lane's bookkeeping for the caller to
// remove).
//
// Eviction (policy.evict) runs with d.mu released, since it may perform
// filesystem I/O and invoke an arbitrary caller-supplied callback; only the
// list/map bookkeeping itself is done under lock.
func (d *diskLane[K]) reserveDiskSpace(key K, size uint64, policy diskFullPolicy[K], stopped func() bool) (ready, wasCancelled bool) {
	d.mu.Lock()
	if size > d.max {
		d.mu.Unlock()
		return false, false
	}

	el := d.ll.PushBack(&diskEntry[K]{key: key, size: size, state: started})
	d.byID[key] = el
	d.current += size

	for {
		de := el.Value.(*diskEntry[K])
		if de.state == cancelled {
			d.ll.Remove(el)
			delete(d.byID, key)
			if d.current >= size {
				d.current -= size
			} else {
				d.current = 0
			}
			d.cond.Broadcast()
			d.mu.Unlock()
			return false, true
		}
		if d.current <= d.max {
			d.mu.Unlock()
			return true, false
		}
		victim := d.oldestEvictableLocked()
		if victim == nil {
			if stopped() {
				d.mu.Unlock()
				return false, false
			}
			d.cond.Wait()
			continue
		}
		d.mu.Unlock()

		evicted := policy.evict(d, victim)

		d.mu.Lock()
		if !evicted {
			if stopped() {
				d.mu.Unlock()
				return false, false
			}
			// Nothing changed: the victim refused eviction (e.g. the
			// backpressure policy) and this key's own entry is still
			// started. Wait for an external change — a Delete, a
			// newly-completed entry, or a raised limit — instead of
			// immediately retrying against the same victim.
			if d.current > d.max && el.Value.(*diskEntry[K]).state != cancelled {
				d.cond.Wait()
			}
		}
	}
}

// markCompleted flips key's entry to completed, if it is still present and
// started, and wakes anyone waiting on it (Get, or another reserve call
// that can now see it as an eviction candidate).
func (d *diskLane[K]) markCompleted(key K) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.byID[key]; ok {
		el.Value.(*diskEntry[K]).state = completed
	}
	d.cond.Broadcast()
}

// markCancelledIfStarted flips key's entry to cancelled if it is currently
// started (an in-flight write), so the writer undoes it instead of
// publishing it. Returns whether the entry was in a cancellable state.
func (d *diskLane[K]) markCancelledIfStarted(key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.byID[key]
	if !ok {
		return false
	}
	de := el.Value.(*diskEntry[K])
	if de.state != started {
		return false
	}
	de.state = cancelled
	d.cond.Broadcast()
	return true
}

// snapshotState reports key's current state, if present.
func (d *diskLane[K]) snapshotState(key K) (transferState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.byID[key]
	if !ok {
		return notStarted, false
	}
	return el.Value.(*diskEntry[K]).state, true
}

// awaitSettled blocks while key's entry exists and is started, returning
// once it is either gone or has moved past started (completed or
// cancelled), or stopped() reports true.
func (d *diskLane[K]) awaitSettled(key K, stopped func() bool) (found bool, state transferState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		el, ok := d.byID[key]
		if !ok {
			return false, notStarted
		}
		de := el.Value.(*diskEntry[K])
		if de.state != started {
			return true, de.state
		}
		if stopped() {
			return true, de.state
		}
		d.cond.Wait()
	}
}

// insert is a test convenience for registering an already-completed write
// without going through reserveDiskSpace's wait loop.
func (d *diskLane[K]) insert(key K, size uint64) {
	d.mu.Lock()
	el := d.ll.PushBack(&diskEntry[K]{key: key, size: size, state: completed})
	d.byID[key] = el
	d.current += size
	d.mu.Unlock()
}

// remove deletes key's disk entry, if present, and returns its size.
func (d *diskLane[K]) remove(key K) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.byID[key]
	if !ok {
		return 0, false
	}
	de := el.Value.(*diskEntry[K])
	d.ll.Remove(el)
	delete(d.byID, key)
	if d.current >= de.size {
		d.current -= de.size
	} else {
		d.current = 0
	}
	d.cond.Broadcast()
	return de.size, true
}

func (d *diskLane[K]) contains(key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.byID[key]
	return ok
}

func (d *diskLane[K]) setMax(max uint64) {
	d.mu.Lock()
	d.max = max
	d.cond.Broadcast()
	d.mu.Unlock()
}

func (d *diskLane[K]) currentUsage() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *diskLane[K]) maxUsage() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.max
}

func (d *diskLane[K]) broadcastStop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cond.Broadcast()
}
