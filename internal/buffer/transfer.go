package buffer

import (
	"github.com/anovak/databuf/internal/metrics"
)

// transferToDisk registers key's Started placeholder, reserves room for
// value, writes it through sink, and publishes the result to disk. It is
// the single code path both the background worker (for memory-routed
// entries) and Store's inline bypass (for values too large to ever stage
// in memory) use to talk to the disk lane, so Delete only ever needs to
// reason about one kind of in-flight disk write.
//
// Because the placeholder is registered before waiting for disk room, a
// concurrent Delete can cancel this key's transfer even while it is still
// blocked on space, not only once the write has started.
//
// Returns committed=false with a nil error when the write was either
// cancelled (by a concurrent Delete) or abandoned because the buffer is
// stopping; callers should treat that as "nothing more to do", not as a
// failure to propagate.
func transferToDisk[K comparable](disk *diskLane[K], sink *sink[K], policy diskFullPolicy[K], mtr *metrics.Collector, key K, value []byte, stopped func() bool) (committed bool, err error) {
	size := uint64(len(value))

	ready, wasCancelled := disk.reserveDiskSpace(key, size, policy, stopped)
	if wasCancelled {
		return false, nil
	}
	if !ready {
		disk.remove(key)
		if stopped() {
			return false, nil
		}
		return false, ErrCannotExceedLimit
	}

	if err := sink.write(key, value); err != nil {
		disk.remove(key)
		return false, err
	}

	if state, ok := disk.snapshotState(key); !ok || state == cancelled {
		// Only the disk entry is dropped; the written file is left in
		// place, uncounted and unreachable through Get.
		disk.remove(key)
		return false, nil
	}

	disk.markCompleted(key)
	mtr.SetDiskBytes(disk.currentUsage())
	return true, nil
}
