package buffer

import (
	"go.uber.org/zap"

	"github.com/anovak/databuf/internal/metrics"
)

// diskFullPolicy decides what happens when the disk lane has no room for a
// pending write. It is chosen once, at construction, from Config.PopCallback
// — never re-evaluated per call — so a buffer's overfill behaviour is fixed
// for its lifetime.
type diskFullPolicy[K comparable] interface {
	// evict is offered the oldest completed disk entry and may remove it (and
	// report true), or decline (return false) and let the caller block.
	// Called with the disk lane's mutex released.
	evict(d *diskLane[K], victim *diskEntry[K]) bool
}

// backpressurePolicy never evicts: Store blocks until an external Delete (or
// a raised disk limit) frees enough space. This is the default when no
// PopCallback is configured.
type backpressurePolicy[K comparable] struct{}

func (backpressurePolicy[K]) evict(*diskLane[K], *diskEntry[K]) bool {
	return false
}

// popCallbackPolicy evicts the oldest completed disk entry to make room,
// handing its key and value to the configured callback before the space is
// reused.
type popCallbackPolicy[K comparable] struct {
	sink     *sink[K]
	callback PopCallback[K]
	metrics  *metrics.Collector
}

func (p *popCallbackPolicy[K]) evict(d *diskLane[K], victim *diskEntry[K]) bool {
	value, err := p.sink.read(victim.key)
	if err != nil {
		// File already gone or unreadable; drop the stale accounting entry
		// so the caller's next reserve attempt doesn't spin on it forever.
		d.remove(victim.key)
		return true
	}
	if _, ok := d.remove(victim.key); !ok {
		// Raced with an explicit Delete of the same key; nothing to pop.
		return true
	}
	if _, err := p.sink.remove(victim.key); err != nil {
		p.sink.log.Warn("pop eviction could not remove scratch file", zap.Error(err))
	}
	p.metrics.IncEviction(metrics.EvictionPopCallback)
	p.callback(victim.key, value)
	return true
}
